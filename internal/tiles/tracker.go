// Package tiles tracks the map tiles touched by a changeset, so a reviewer
// can download exactly those areas before checking the edits.
package tiles

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"go.uber.org/zap"

	"github.com/wegman-software/chainmerge/internal/changeset"
	"github.com/wegman-software/chainmerge/internal/logger"
)

// MaxZoom is the deepest zoom level tracked
const MaxZoom = 20

// Tracker collects deduplicated tiles over a zoom range
type Tracker struct {
	mu      sync.Mutex
	tiles   map[maptile.Tile]struct{}
	minZoom maptile.Zoom
	maxZoom maptile.Zoom
}

// NewTracker creates a tracker for zoom levels minZoom..maxZoom
func NewTracker(minZoom, maxZoom int) (*Tracker, error) {
	if minZoom < 0 || maxZoom > MaxZoom || minZoom > maxZoom {
		return nil, fmt.Errorf("invalid zoom range %d-%d (0-%d)", minZoom, maxZoom, MaxZoom)
	}
	return &Tracker{
		tiles:   make(map[maptile.Tile]struct{}),
		minZoom: maptile.Zoom(minZoom),
		maxZoom: maptile.Zoom(maxZoom),
	}, nil
}

// AddPoint marks the tiles containing p (lon, lat) at every tracked zoom
func (t *Tracker) AddPoint(p orb.Point) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for z := t.minZoom; z <= t.maxZoom; z++ {
		t.tiles[maptile.At(p, z)] = struct{}{}
	}
}

// AddBound marks every tile intersecting b at every tracked zoom
func (t *Tracker) AddBound(b orb.Bound) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for z := t.minZoom; z <= t.maxZoom; z++ {
		// Tile rows grow southwards
		topLeft := maptile.At(orb.Point{b.Min.Lon(), b.Max.Lat()}, z)
		bottomRight := maptile.At(orb.Point{b.Max.Lon(), b.Min.Lat()}, z)
		for x := topLeft.X; x <= bottomRight.X; x++ {
			for y := topLeft.Y; y <= bottomRight.Y; y++ {
				t.tiles[maptile.New(x, y, z)] = struct{}{}
			}
		}
	}
}

// AddOperations marks the location of every operation
func (t *Tracker) AddOperations(ops []changeset.Operation) {
	for _, op := range ops {
		t.AddPoint(op.Point.Location)
	}
}

// Count returns the number of unique tiles
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.tiles)
}

// CountByZoom returns the count of tiles at each zoom level
func (t *Tracker) CountByZoom() map[int]int {
	t.mu.Lock()
	defer t.mu.Unlock()

	counts := make(map[int]int)
	for tile := range t.tiles {
		counts[int(tile.Z)]++
	}
	return counts
}

// Tiles returns all tiles ordered by zoom, x, y
func (t *Tracker) Tiles() []maptile.Tile {
	t.mu.Lock()
	tiles := make([]maptile.Tile, 0, len(t.tiles))
	for tile := range t.tiles {
		tiles = append(tiles, tile)
	}
	t.mu.Unlock()

	sort.Slice(tiles, func(i, j int) bool {
		if tiles[i].Z != tiles[j].Z {
			return tiles[i].Z < tiles[j].Z
		}
		if tiles[i].X != tiles[j].X {
			return tiles[i].X < tiles[j].X
		}
		return tiles[i].Y < tiles[j].Y
	})
	return tiles
}

// Format renders a tile as z/x/y
func Format(tile maptile.Tile) string {
	return fmt.Sprintf("%d/%d/%d", tile.Z, tile.X, tile.Y)
}

// Write writes one z/x/y line per tile
func (t *Tracker) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, tile := range t.Tiles() {
		fmt.Fprintln(bw, Format(tile))
	}
	return bw.Flush()
}

// WriteFile writes the tile list to filename and logs a per-zoom summary
func (t *Tracker) WriteFile(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create tile list: %w", err)
	}
	defer f.Close()

	if err := t.Write(f); err != nil {
		return fmt.Errorf("failed to write tile list: %w", err)
	}

	counts := t.CountByZoom()
	zooms := make([]int, 0, len(counts))
	for z := range counts {
		zooms = append(zooms, z)
	}
	sort.Ints(zooms)

	fields := []zap.Field{zap.String("file", filename)}
	for _, z := range zooms {
		fields = append(fields, zap.Int(fmt.Sprintf("z%d", z), counts[z]))
	}
	fields = append(fields, zap.Int("total", t.Count()))
	logger.Get().Info("Wrote review tiles", fields...)

	return f.Close()
}
