package config

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// BBox represents a geographic bounding box
type BBox struct {
	MinLon, MinLat, MaxLon, MaxLat float64
	IsSet                          bool
}

// Contains checks if a point is within the bounding box
func (b *BBox) Contains(lat, lon float64) bool {
	if b == nil || !b.IsSet {
		return true
	}
	return lon >= b.MinLon && lon <= b.MaxLon && lat >= b.MinLat && lat <= b.MaxLat
}

// Overpass renders the box in Overpass QL order: south,west,north,east
func (b *BBox) Overpass() string {
	return strconv.FormatFloat(b.MinLat, 'f', -1, 64) + "," +
		strconv.FormatFloat(b.MinLon, 'f', -1, 64) + "," +
		strconv.FormatFloat(b.MaxLat, 'f', -1, 64) + "," +
		strconv.FormatFloat(b.MaxLon, 'f', -1, 64)
}

// ParseBBox parses a bbox string in format "minlon,minlat,maxlon,maxlat"
func ParseBBox(s string) (*BBox, error) {
	if s == "" {
		return &BBox{IsSet: false}, nil
	}

	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("bbox must have 4 values: minlon,minlat,maxlon,maxlat")
	}

	var coords [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid bbox coordinate %q: %w", p, err)
		}
		coords[i] = v
	}

	bbox := &BBox{
		MinLon: coords[0],
		MinLat: coords[1],
		MaxLon: coords[2],
		MaxLat: coords[3],
		IsSet:  true,
	}

	if bbox.MinLon > bbox.MaxLon {
		return nil, fmt.Errorf("minlon (%f) must be <= maxlon (%f)", bbox.MinLon, bbox.MaxLon)
	}
	if bbox.MinLat > bbox.MaxLat {
		return nil, fmt.Errorf("minlat (%f) must be <= maxlat (%f)", bbox.MinLat, bbox.MaxLat)
	}

	return bbox, nil
}

// Reference source kinds
const (
	ReferenceOverpass = "overpass"
	ReferenceFile     = "file"
	ReferenceMiddle   = "middle"
)

// Output formats
const (
	FormatJOSM = "josm"
	FormatOSC  = "osc"
)

// Config holds the global configuration for a merge run
type Config struct {
	// Chain profile (built-in name or YAML path)
	Profile string

	// Matching
	ThresholdM float64 // overrides the profile threshold when > 0
	BBox       *BBox   // overrides the profile bounding box when set

	// Reference dataset
	ReferenceSource string // overpass, file or middle
	ReferenceFile   string // .osm or .osm.pbf when ReferenceSource is file
	OverpassURL     string
	OverpassTimeout time.Duration

	// Vendor feed
	VendorFile string // local feed file, bypasses the HTTP fetch

	// Fetching
	CacheDir   string
	Offline    bool // only read previously cached responses
	MaxRetries int
	RetryDelay time.Duration
	UserAgent  string

	// Output
	OutputFile string // "-" writes to stdout
	Format     string // josm or osc

	// Review tiles: z/x/y list of the tiles touched by the changeset
	TilesOutput  string
	TilesMinZoom int
	TilesMaxZoom int

	// Database settings for the middle-table reference source
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBSchema   string

	Workers int // PBF decoder goroutines

	// Logging and metrics
	Verbose         bool
	LogFile         string        // Path to log file (empty = no file logging)
	MetricsInterval time.Duration // Interval for system metrics logging (0 = off)
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		ReferenceSource: ReferenceOverpass,
		OverpassURL:     "https://overpass-api.de/api/interpreter",
		OverpassTimeout: 300 * time.Second,
		CacheDir:        "./chainmerge_cache",
		MaxRetries:      3,
		RetryDelay:      5 * time.Second,
		UserAgent:       "chainmerge/1.0",
		Format:          FormatJOSM,
		TilesMinZoom:    16,
		TilesMaxZoom:    16,
		DBHost:          "localhost",
		DBPort:          5432,
		DBName:          "osm",
		DBUser:          "postgres",
		DBSchema:        "public",
		Workers:         4,
	}
}

// ConnectionString returns a PostgreSQL connection string
func (c *Config) ConnectionString() string {
	connStr := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBName, c.DBUser,
	)
	if c.DBPassword != "" {
		connStr += fmt.Sprintf(" password=%s", c.DBPassword)
	}
	return connStr
}

// DefaultOutputFile names the changeset after the profile, e.g. culvers_modified.osm
func (c *Config) DefaultOutputFile(profileName string) string {
	ext := ".osm"
	if c.Format == FormatOSC {
		ext = ".osc"
	}
	return filepath.Clean(profileName + "_modified" + ext)
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Profile == "" {
		return fmt.Errorf("profile is required")
	}
	if c.ThresholdM < 0 {
		return fmt.Errorf("threshold must be positive, got %f", c.ThresholdM)
	}
	switch c.ReferenceSource {
	case ReferenceOverpass:
		if c.OverpassURL == "" && !c.Offline {
			return fmt.Errorf("overpass URL is required")
		}
	case ReferenceFile:
		if c.ReferenceFile == "" {
			return fmt.Errorf("reference file is required for the file source")
		}
	case ReferenceMiddle:
		if c.DBName == "" {
			return fmt.Errorf("database name is required for the middle source")
		}
	default:
		return fmt.Errorf("unknown reference source %q (overpass, file, middle)", c.ReferenceSource)
	}
	switch c.Format {
	case FormatJOSM, FormatOSC:
	default:
		return fmt.Errorf("unknown output format %q (josm, osc)", c.Format)
	}
	if c.TilesOutput != "" && (c.TilesMinZoom < 0 || c.TilesMinZoom > c.TilesMaxZoom) {
		return fmt.Errorf("invalid tile zoom range %d-%d", c.TilesMinZoom, c.TilesMaxZoom)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative")
	}
	return nil
}
