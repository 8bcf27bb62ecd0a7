package point

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/osm"
)

// CoordLookup resolves a node id to its (lon, lat) location
type CoordLookup func(id osm.NodeID) (orb.Point, bool)

// FromNode normalizes an OSM node
func FromNode(n *osm.Node) (Point, error) {
	if err := ValidateCoords(n.Lat, n.Lon); err != nil {
		return Point{}, fmt.Errorf("node %d: %w", n.ID, err)
	}
	return Point{
		Location: orb.Point{n.Lon, n.Lat},
		Ref: &Reference{
			ID:        int64(n.ID),
			Version:   n.Version,
			Timestamp: n.Timestamp,
			User:      n.User,
			UID:       int64(n.UserID),
			Changeset: int64(n.ChangesetID),
		},
		Tags: Tags(n.Tags.Map()),
		Kind: KindNode,
	}, nil
}

// FromWay normalizes an OSM way, locating it at the centroid of its geometry.
// Node coordinates embedded in the way are used first, then lookup.
func FromWay(w *osm.Way, lookup CoordLookup) (Point, error) {
	if len(w.Nodes) == 0 {
		return Point{}, fmt.Errorf("way %d: %w: no nodes", w.ID, ErrMalformedPoint)
	}

	ls := make(orb.LineString, 0, len(w.Nodes))
	refs := make([]int64, 0, len(w.Nodes))
	for _, wn := range w.Nodes {
		refs = append(refs, int64(wn.ID))
		if wn.Lat != 0 || wn.Lon != 0 {
			ls = append(ls, orb.Point{wn.Lon, wn.Lat})
			continue
		}
		if lookup == nil {
			return Point{}, fmt.Errorf("way %d: %w: node %d has no location", w.ID, ErrMalformedPoint, wn.ID)
		}
		p, ok := lookup(wn.ID)
		if !ok {
			return Point{}, fmt.Errorf("way %d: %w: node %d not found", w.ID, ErrMalformedPoint, wn.ID)
		}
		ls = append(ls, p)
	}

	c := Centroid(ls, isClosed(w.Nodes))
	if err := ValidateCoords(c.Lat(), c.Lon()); err != nil {
		return Point{}, fmt.Errorf("way %d: %w", w.ID, err)
	}

	return Point{
		Location: c,
		Ref: &Reference{
			ID:        int64(w.ID),
			Version:   w.Version,
			Timestamp: w.Timestamp,
			User:      w.User,
			UID:       int64(w.UserID),
			Changeset: int64(w.ChangesetID),
		},
		Tags:     Tags(w.Tags.Map()),
		Kind:     KindWay,
		WayNodes: refs,
	}, nil
}

// Centroid returns the area-weighted centroid of a closed ring or the
// length-weighted centroid of an open line. Degenerate shapes fall back to
// the center of their bound.
func Centroid(ls orb.LineString, closed bool) orb.Point {
	if len(ls) == 1 {
		return ls[0]
	}

	var g orb.Geometry = ls
	if closed && len(ls) >= 4 {
		g = orb.Polygon{orb.Ring(ls)}
	}

	c, _ := planar.CentroidArea(g)
	if math.IsNaN(c[0]) || math.IsNaN(c[1]) {
		return ls.Bound().Center()
	}
	return c
}

func isClosed(nodes osm.WayNodes) bool {
	return len(nodes) > 2 && nodes[0].ID == nodes[len(nodes)-1].ID
}

// Stats counts what FromOSM kept and skipped
type Stats struct {
	Nodes     int
	Ways      int
	Malformed int
}

// FromOSM normalizes every tagged node and every way of an OSM document.
// Untagged nodes only serve as way geometry. Malformed entities are passed
// to onSkip (when non-nil) and left out.
func FromOSM(o *osm.OSM, onSkip func(error)) ([]Point, Stats) {
	var stats Stats

	coords := make(map[osm.NodeID]orb.Point, len(o.Nodes))
	for _, n := range o.Nodes {
		coords[n.ID] = orb.Point{n.Lon, n.Lat}
	}
	lookup := func(id osm.NodeID) (orb.Point, bool) {
		p, ok := coords[id]
		return p, ok
	}

	points := make([]Point, 0, len(o.Ways)+len(o.Nodes)/4)
	for _, n := range o.Nodes {
		if len(n.Tags) == 0 {
			continue
		}
		p, err := FromNode(n)
		if err != nil {
			stats.Malformed++
			if onSkip != nil {
				onSkip(err)
			}
			continue
		}
		points = append(points, p)
		stats.Nodes++
	}

	for _, w := range o.Ways {
		p, err := FromWay(w, lookup)
		if err != nil {
			stats.Malformed++
			if onSkip != nil {
				onSkip(err)
			}
			continue
		}
		points = append(points, p)
		stats.Ways++
	}

	return points, stats
}
