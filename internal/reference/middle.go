package reference

import (
	"context"
	"fmt"
	"sort"

	"github.com/paulmach/osm"

	"github.com/wegman-software/chainmerge/internal/config"
	"github.com/wegman-software/chainmerge/internal/middle"
	"github.com/wegman-software/chainmerge/internal/point"
	"github.com/wegman-software/chainmerge/internal/style"
)

// MiddleSource reads candidate features from osm2pgsql middle tables.
// Middle tables carry no edit metadata, so the points have version 0.
type MiddleSource struct {
	Store *middle.Store
	Rules style.Rules
	BBox  *config.BBox
}

// NewMiddleSource creates a middle-table source
func NewMiddleSource(store *middle.Store, rules style.Rules, bbox *config.BBox) *MiddleSource {
	return &MiddleSource{Store: store, Rules: rules, BBox: bbox}
}

func (s *MiddleSource) query() middle.Query {
	q := middle.Query{
		NamePattern: s.Rules.NamePattern,
		RequireAny:  s.Rules.RequireAny,
		BBox:        s.BBox,
	}
	if len(s.Rules.NameKeys) > 0 {
		q.NameKey = s.Rules.NameKeys[0]
	}
	return q
}

// Fetch loads matching nodes and ways and their way node locations
func (s *MiddleSource) Fetch(ctx context.Context) ([]point.Point, error) {
	q := s.query()

	nodes, err := s.Store.FindNodes(ctx, q)
	if err != nil {
		return nil, err
	}
	ways, err := s.Store.FindWays(ctx, q)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]bool)
	var ids []int64
	for _, w := range ways {
		for _, id := range w.Nodes {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	coords, err := s.Store.NodeCoords(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to locate way nodes: %w", err)
	}

	o := &osm.OSM{}
	for _, n := range nodes {
		o.Nodes = append(o.Nodes, &osm.Node{
			ID:      osm.NodeID(n.ID),
			Lat:     middle.UnscaleCoord(n.Lat),
			Lon:     middle.UnscaleCoord(n.Lon),
			Tags:    tagsFromMap(n.Tags),
			Visible: true,
		})
	}
	for _, w := range ways {
		way := &osm.Way{
			ID:      osm.WayID(w.ID),
			Tags:    tagsFromMap(w.Tags),
			Visible: true,
		}
		for _, id := range w.Nodes {
			wn := osm.WayNode{ID: osm.NodeID(id)}
			if c, ok := coords[id]; ok {
				wn.Lat = middle.UnscaleCoord(c[0])
				wn.Lon = middle.UnscaleCoord(c[1])
			}
			way.Nodes = append(way.Nodes, wn)
		}
		o.Ways = append(o.Ways, way)
	}

	return normalize(o, "middle"), nil
}

func tagsFromMap(m map[string]string) osm.Tags {
	tags := make(osm.Tags, 0, len(m))
	for k, v := range m {
		tags = append(tags, osm.Tag{Key: k, Value: v})
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].Key < tags[j].Key })
	return tags
}
