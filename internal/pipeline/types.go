package pipeline

import (
	"github.com/wegman-software/chainmerge/internal/point"
)

// Datasets holds both inputs of a merge, as normalized points
type Datasets struct {
	Reference []point.Point
	Vendor    []point.Point
	Filtered  int // reference points rejected by the profile filter or bbox
}

// CachedFile describes one response written to the fetch cache
type CachedFile struct {
	Name string
	Path string
	Size int64
}
