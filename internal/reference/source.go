// Package reference loads the existing map features of a chain.
package reference

import (
	"context"
	"fmt"
	"io"

	"github.com/paulmach/osm"
	"go.uber.org/zap"

	"github.com/wegman-software/chainmerge/internal/logger"
	"github.com/wegman-software/chainmerge/internal/point"
)

// Source produces reference points
type Source interface {
	Fetch(ctx context.Context) ([]point.Point, error)
}

// scanOSM drains a scanner into an OSM document. Relations are ignored.
func scanOSM(scanner osm.Scanner) (*osm.OSM, error) {
	defer scanner.Close()

	o := &osm.OSM{}
	for scanner.Scan() {
		switch e := scanner.Object().(type) {
		case *osm.Node:
			o.Nodes = append(o.Nodes, e)
		case *osm.Way:
			o.Ways = append(o.Ways, e)
		}
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read OSM data: %w", err)
	}
	return o, nil
}

// normalize converts a document to points, logging skipped entities
func normalize(o *osm.OSM, source string) []point.Point {
	log := logger.Named("reference")
	points, stats := point.FromOSM(o, func(err error) {
		log.Warn("Skipping malformed reference feature", zap.String("source", source), zap.Error(err))
	})

	log.Info("Reference data loaded",
		zap.String("source", source),
		zap.Int("nodes", stats.Nodes),
		zap.Int("ways", stats.Ways),
		zap.Int("malformed", stats.Malformed))
	return points
}
