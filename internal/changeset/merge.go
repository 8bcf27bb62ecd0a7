package changeset

import (
	"strings"
	"unicode"

	"github.com/wegman-software/chainmerge/internal/point"
)

// Address tag keys
const (
	KeyFullAddress = "addr:full"
	KeyHouseNumber = "addr:housenumber"
	KeyStreet      = "addr:street"
)

// SplitAddress returns a copy of tags with a composite addr:full value
// "<number> <street...>" decomposed into addr:housenumber and addr:street.
// The value is split at its first whitespace run; surrounding whitespace of
// both parts is trimmed. The addr:full key is removed. When the value has no
// internal whitespace it becomes the house number, addr:street is removed,
// and ok is false.
func SplitAddress(tags point.Tags) (out point.Tags, ok bool) {
	out = tags.Clone()
	full, present := out[KeyFullAddress]
	if !present {
		return out, true
	}
	delete(out, KeyFullAddress)

	full = strings.TrimSpace(full)
	if full == "" {
		return out, true
	}

	i := strings.IndexFunc(full, unicode.IsSpace)
	if i < 0 {
		out[KeyHouseNumber] = full
		delete(out, KeyStreet)
		return out, false
	}

	out[KeyHouseNumber] = full[:i]
	if street := strings.TrimSpace(full[i:]); street != "" {
		out[KeyStreet] = street
	}
	return out, true
}

// MergeTags layers vendor tags over reference tags. Vendor values win for
// every key they carry; reference-only keys are kept. Neither input is modified.
func MergeTags(reference, vendor point.Tags) point.Tags {
	merged := reference.Clone()
	for k, v := range vendor {
		merged[k] = v
	}
	return merged
}
