package middle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/wegman-software/chainmerge/internal/config"
	"github.com/wegman-software/chainmerge/internal/logger"
)

// Querier is the subset of pgxpool.Pool used by Store
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store reads the raw "middle tables" written by an osm2pgsql-style
// import in slim mode (planet_osm_nodes, planet_osm_ways)
type Store struct {
	db     Querier
	schema string
}

// NewStore creates a store reading from schema
func NewStore(db Querier, schema string) *Store {
	if schema == "" {
		schema = "public"
	}
	return &Store{db: db, schema: schema}
}

// Connect opens a connection pool for the configured database
func Connect(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// Query selects candidate features. NamePattern is matched case-insensitively
// against NameKey with the PostgreSQL ~* operator; RequireAny keeps rows having
// at least one of the keys.
type Query struct {
	NameKey     string
	NamePattern string
	RequireAny  []string
	BBox        *config.BBox // nodes only; ways are located after their nodes load
}

// where renders the WHERE clause and its arguments
func (q Query) where(nodes bool) (string, []any) {
	conds := []string{"tags IS NOT NULL"}
	var args []any

	if q.NamePattern != "" {
		key := q.NameKey
		if key == "" {
			key = "name"
		}
		args = append(args, key, q.NamePattern)
		conds = append(conds, fmt.Sprintf("tags->>$%d ~* $%d", len(args)-1, len(args)))
	}
	if len(q.RequireAny) > 0 {
		args = append(args, q.RequireAny)
		conds = append(conds, fmt.Sprintf("tags ?| $%d", len(args)))
	}
	if nodes && q.BBox != nil && q.BBox.IsSet {
		args = append(args,
			ScaleCoord(q.BBox.MinLat), ScaleCoord(q.BBox.MaxLat),
			ScaleCoord(q.BBox.MinLon), ScaleCoord(q.BBox.MaxLon))
		n := len(args)
		conds = append(conds, fmt.Sprintf("lat BETWEEN $%d AND $%d AND lon BETWEEN $%d AND $%d", n-3, n-2, n-1, n))
	}
	return strings.Join(conds, " AND "), args
}

// FindNodes returns the tagged nodes matching q, ordered by id
func (s *Store) FindNodes(ctx context.Context, q Query) ([]RawNode, error) {
	where, args := q.where(true)
	sql := fmt.Sprintf("SELECT id, lat, lon, tags FROM %s.planet_osm_nodes WHERE %s ORDER BY id", s.schema, where)

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	var nodes []RawNode
	for rows.Next() {
		var node RawNode
		var tagsJSON []byte
		if err := rows.Scan(&node.ID, &node.Lat, &node.Lon, &tagsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		if node.Tags, err = decodeTags(tagsJSON); err != nil {
			return nil, fmt.Errorf("node %d: %w", node.ID, err)
		}
		nodes = append(nodes, node)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read nodes: %w", err)
	}

	logger.Get().Debug("Loaded middle nodes", zap.Int("count", len(nodes)))
	return nodes, nil
}

// FindWays returns the ways matching q, ordered by id
func (s *Store) FindWays(ctx context.Context, q Query) ([]RawWay, error) {
	where, args := q.where(false)
	sql := fmt.Sprintf("SELECT id, nodes, tags FROM %s.planet_osm_ways WHERE %s ORDER BY id", s.schema, where)

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ways: %w", err)
	}
	defer rows.Close()

	var ways []RawWay
	for rows.Next() {
		var way RawWay
		var tagsJSON []byte
		if err := rows.Scan(&way.ID, &way.Nodes, &tagsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan way: %w", err)
		}
		if way.Tags, err = decodeTags(tagsJSON); err != nil {
			return nil, fmt.Errorf("way %d: %w", way.ID, err)
		}
		ways = append(ways, way)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ways: %w", err)
	}

	logger.Get().Debug("Loaded middle ways", zap.Int("count", len(ways)))
	return ways, nil
}

// NodeCoords loads the scaled coordinates of the given nodes
func (s *Store) NodeCoords(ctx context.Context, ids []int64) (map[int64][2]int32, error) {
	coords := make(map[int64][2]int32, len(ids))
	if len(ids) == 0 {
		return coords, nil
	}

	rows, err := s.db.Query(ctx,
		fmt.Sprintf("SELECT id, lat, lon FROM %s.planet_osm_nodes WHERE id = ANY($1)", s.schema),
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query node locations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var lat, lon int32
		if err := rows.Scan(&id, &lat, &lon); err != nil {
			return nil, fmt.Errorf("failed to scan node location: %w", err)
		}
		coords[id] = [2]int32{lat, lon}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read node locations: %w", err)
	}
	return coords, nil
}

func decodeTags(data []byte) (map[string]string, error) {
	if len(data) == 0 {
		return map[string]string{}, nil
	}
	var tags map[string]string
	if err := json.Unmarshal(data, &tags); err != nil {
		return nil, fmt.Errorf("invalid tags: %w", err)
	}
	return tags, nil
}
