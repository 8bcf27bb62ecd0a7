package reference

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/paulmach/osm/osmxml"

	"github.com/wegman-software/chainmerge/internal/point"
)

// FileSource reads an .osm (XML) or .osm.pbf extract
type FileSource struct {
	Path    string
	Workers int // PBF decoder goroutines
}

// NewFileSource creates a file source
func NewFileSource(path string, workers int) *FileSource {
	if workers < 1 {
		workers = runtime.GOMAXPROCS(-1)
	}
	return &FileSource{Path: path, Workers: workers}
}

// IsPBF reports whether path names a PBF file
func IsPBF(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".pbf")
}

// Fetch reads and normalizes every tagged node and every way in the file
func (s *FileSource) Fetch(ctx context.Context) ([]point.Point, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open reference file: %w", err)
	}
	defer f.Close()

	var scanner osm.Scanner
	if IsPBF(s.Path) {
		scanner = osmpbf.New(ctx, f, s.Workers)
	} else {
		scanner = osmxml.New(ctx, f)
	}

	o, err := scanOSM(scanner)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Path, err)
	}
	return normalize(o, s.Path), nil
}
