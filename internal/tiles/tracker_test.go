package tiles

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/wegman-software/chainmerge/internal/changeset"
	"github.com/wegman-software/chainmerge/internal/logger"
	"github.com/wegman-software/chainmerge/internal/point"
)

func init() {
	logger.Set(zap.NewNop())
}

func TestAddPoint(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon float64
		zoom     int
		want     string
	}{
		{"London at zoom 10", 51.5074, -0.1278, 10, "10/511/340"},
		{"Monaco at zoom 12", 43.7384, 7.4246, 12, "12/2132/1493"},
		{"New York at zoom 10", 40.7128, -74.0060, 10, "10/301/385"},
		{"Origin at zoom 0", 0, 0, 0, "0/0/0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := NewTracker(tt.zoom, tt.zoom)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tr.AddPoint(orb.Point{tt.lon, tt.lat})

			tiles := tr.Tiles()
			if len(tiles) != 1 {
				t.Fatalf("got %d tiles, want 1", len(tiles))
			}
			if got := Format(tiles[0]); got != tt.want {
				t.Errorf("tile = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNewTrackerInvalidRange(t *testing.T) {
	tests := []struct{ min, max int }{
		{-1, 5},
		{10, 5},
		{0, 21},
	}
	for _, tt := range tests {
		if _, err := NewTracker(tt.min, tt.max); err == nil {
			t.Errorf("NewTracker(%d, %d): expected error but got none", tt.min, tt.max)
		}
	}
}

func TestAddOperationsDeduplicates(t *testing.T) {
	tr, _ := NewTracker(14, 16)
	ops := []changeset.Operation{
		{Action: changeset.ActionModify, Point: point.Point{Location: orb.Point{-86.7816, 36.1627}}},
		{Action: changeset.ActionCreate, Point: point.Point{Location: orb.Point{-86.78161, 36.16271}}},
	}
	tr.AddOperations(ops)

	if tr.Count() != 3 {
		t.Errorf("count = %d, want 3 (one tile per zoom)", tr.Count())
	}
	counts := tr.CountByZoom()
	for z := 14; z <= 16; z++ {
		if counts[z] != 1 {
			t.Errorf("zoom %d count = %d, want 1", z, counts[z])
		}
	}
}

func TestAddBound(t *testing.T) {
	tr, _ := NewTracker(1, 1)
	tr.AddBound(orb.Bound{Min: orb.Point{-10, -10}, Max: orb.Point{10, 10}})

	if tr.Count() != 4 {
		t.Errorf("count = %d, want all 4 zoom 1 tiles", tr.Count())
	}
}

func TestWriteSorted(t *testing.T) {
	tr, _ := NewTracker(1, 2)
	tr.AddPoint(orb.Point{100, -40})
	tr.AddPoint(orb.Point{-100, 40})

	var buf bytes.Buffer
	if err := tr.Write(&buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "1/0/0\n1/1/1\n2/0/1\n2/3/2\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}

	path := filepath.Join(t.TempDir(), "tiles.txt")
	if err := tr.WriteFile(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read tile list: %v", err)
	}
	if strings.Count(string(data), "\n") != 4 {
		t.Errorf("file = %q", data)
	}
}
