// Package pipeline wires the sources, the matcher, the changeset builder and
// the document writers into a merge run.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wegman-software/chainmerge/internal/changeset"
	"github.com/wegman-software/chainmerge/internal/config"
	"github.com/wegman-software/chainmerge/internal/fetch"
	"github.com/wegman-software/chainmerge/internal/flex"
	"github.com/wegman-software/chainmerge/internal/logger"
	"github.com/wegman-software/chainmerge/internal/match"
	"github.com/wegman-software/chainmerge/internal/metrics"
	"github.com/wegman-software/chainmerge/internal/middle"
	"github.com/wegman-software/chainmerge/internal/osc"
	"github.com/wegman-software/chainmerge/internal/osmfile"
	"github.com/wegman-software/chainmerge/internal/point"
	"github.com/wegman-software/chainmerge/internal/profile"
	"github.com/wegman-software/chainmerge/internal/reference"
	"github.com/wegman-software/chainmerge/internal/style"
	"github.com/wegman-software/chainmerge/internal/tiles"
	"github.com/wegman-software/chainmerge/internal/vendor"
)

// Coordinator runs a merge for one chain profile
type Coordinator struct {
	cfg       *config.Config
	profile   *profile.Profile
	client    *fetch.Client
	filter    *style.Filter
	bbox      *config.BBox
	script    *flex.Runtime
	pool      *pgxpool.Pool
	reference reference.Source
	vendor    *vendor.FeedSource
}

// NewCoordinator loads the configured profile and creates a coordinator for it
func NewCoordinator(ctx context.Context, cfg *config.Config) (*Coordinator, error) {
	p, err := profile.Load(cfg.Profile)
	if err != nil {
		return nil, err
	}
	return NewCoordinatorForProfile(ctx, cfg, p)
}

// NewCoordinatorForProfile creates a coordinator for an already loaded profile
func NewCoordinatorForProfile(ctx context.Context, cfg *config.Config, p *profile.Profile) (*Coordinator, error) {
	filter, err := style.NewFilter(p.Reference.Filter)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", p.Name, err)
	}

	bbox := cfg.BBox
	if bbox == nil || !bbox.IsSet {
		if bbox, err = config.ParseBBox(p.Reference.BBox); err != nil {
			return nil, fmt.Errorf("profile %s: %w", p.Name, err)
		}
	}

	c := &Coordinator{
		cfg:     cfg,
		profile: p,
		filter:  filter,
		bbox:    bbox,
		client: fetch.NewClient(fetch.Options{
			CacheDir:   cfg.CacheDir,
			Offline:    cfg.Offline,
			MaxRetries: cfg.MaxRetries,
			RetryDelay: cfg.RetryDelay,
			Timeout:    cfg.OverpassTimeout + 30*time.Second,
			UserAgent:  cfg.UserAgent,
		}),
	}

	var transformer vendor.Transformer
	if p.Vendor.Script != "" {
		c.script = flex.NewRuntime(p.Name)
		if err := c.script.LoadFile(p.Vendor.Script); err != nil {
			c.Close()
			return nil, fmt.Errorf("profile %s: %w", p.Name, err)
		}
		transformer = c.script
	}
	c.vendor = vendor.NewFeedSource(p, c.client, cfg.VendorFile, transformer)

	if err := c.setupReference(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Coordinator) setupReference(ctx context.Context) error {
	switch c.cfg.ReferenceSource {
	case config.ReferenceFile:
		c.reference = reference.NewFileSource(c.cfg.ReferenceFile, c.cfg.Workers)
	case config.ReferenceMiddle:
		pool, err := middle.Connect(ctx, c.cfg)
		if err != nil {
			return err
		}
		c.pool = pool
		store := middle.NewStore(pool, c.cfg.DBSchema)
		c.reference = reference.NewMiddleSource(store, c.profile.Reference.Filter, c.bbox)
	default:
		c.reference = reference.NewOverpassSource(c.profile.Name, c.cfg.OverpassURL, c.overpassQuery(), c.client)
	}
	return nil
}

// overpassQuery returns the profile's own query or one built from its filter
func (c *Coordinator) overpassQuery() string {
	if c.profile.Reference.Query != "" {
		return c.profile.Reference.Query
	}
	return reference.BuildQuery(c.profile.Reference.Filter, c.bbox, c.cfg.OverpassTimeout)
}

// Close releases the Lua runtime and the database pool
func (c *Coordinator) Close() error {
	if c.script != nil {
		c.script.Close()
		c.script = nil
	}
	if c.pool != nil {
		c.pool.Close()
		c.pool = nil
	}
	return nil
}

// Profile returns the chain profile being merged
func (c *Coordinator) Profile() *profile.Profile {
	return c.profile
}

// Load fetches both datasets concurrently and applies the reference filter
func (c *Coordinator) Load(ctx context.Context) (*Datasets, error) {
	log := logger.Get()
	ds := &Datasets{}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		st := startStage(log, "reference")
		points, err := c.reference.Fetch(gctx)
		if err != nil {
			return fmt.Errorf("failed to load reference data: %w", err)
		}
		ds.Reference = c.selectReference(points)
		ds.Filtered = len(points) - len(ds.Reference)
		st.done(len(points))
		return nil
	})

	g.Go(func() error {
		st := startStage(log, "vendor")
		points, err := c.vendor.Fetch(gctx)
		if err != nil {
			return fmt.Errorf("failed to load vendor feed: %w", err)
		}
		ds.Vendor = points
		st.done(len(points))
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Info("Datasets loaded",
		zap.String("profile", c.profile.Name),
		zap.Int("reference", len(ds.Reference)),
		zap.Int("filtered", ds.Filtered),
		zap.Int("vendor", len(ds.Vendor)))
	return ds, nil
}

// selectReference keeps the points accepted by the profile filter and inside the bbox
func (c *Coordinator) selectReference(points []point.Point) []point.Point {
	points = c.filter.Apply(points)
	if c.bbox == nil || !c.bbox.IsSet {
		return points
	}
	out := points[:0:0]
	for _, p := range points {
		if c.bbox.Contains(p.Lat(), p.Lon()) {
			out = append(out, p)
		}
	}
	return out
}

// Merge matches the datasets and builds the changeset. Negative reference
// ids and way node refs, as found in unsaved editor documents, are never
// reused for creates.
func Merge(ds *Datasets, thresholdM float64) (*match.Result, *changeset.Changeset, error) {
	log := logger.Named("match")

	result := match.Match(ds.Reference, ds.Vendor, thresholdM, match.WithObserver(func(p match.Pair) {
		log.Debug("Matched",
			zap.Stringer("reference", *p.Reference),
			zap.Float64("distance_m", p.DistanceM))
	}))

	ids := changeset.NewIDAllocator()
	for _, p := range ds.Reference {
		ids.Reserve(p.ID())
		for _, ref := range p.WayNodes {
			ids.Reserve(ref)
		}
	}

	cs, err := changeset.Build(result.Pairs, ids)
	if err != nil {
		return &result, nil, fmt.Errorf("failed to build changeset: %w", err)
	}
	return &result, cs, nil
}

// Run executes the whole merge and writes the changeset document
func (c *Coordinator) Run(ctx context.Context) (*metrics.Report, error) {
	log := logger.Get()
	start := time.Now()

	var collector *metrics.Collector
	if c.cfg.MetricsInterval > 0 {
		metricsCtx, cancelMetrics := context.WithCancel(ctx)
		defer cancelMetrics()

		collector = metrics.NewCollector(c.cfg.MetricsInterval, log)
		go collector.Start(metricsCtx)
		log.Info("System metrics collection started",
			zap.Duration("interval", c.cfg.MetricsInterval))
	}

	ds, err := c.Load(ctx)
	if err != nil {
		return nil, err
	}
	fetchTime := time.Since(start)

	threshold := c.profile.Threshold(c.cfg.ThresholdM)
	st := startStage(log, "merge")
	result, cs, err := Merge(ds, threshold)
	if err != nil {
		return nil, err
	}
	mergeTime := st.done(len(ds.Vendor))

	output := c.cfg.OutputFile
	if output == "" {
		output = c.cfg.DefaultOutputFile(c.profile.Name)
	}
	if err := WriteChangeset(output, c.cfg.Format, cs.Operations); err != nil {
		return nil, err
	}

	if c.cfg.TilesOutput != "" {
		tracker, err := tiles.NewTracker(c.cfg.TilesMinZoom, c.cfg.TilesMaxZoom)
		if err != nil {
			return nil, err
		}
		tracker.AddOperations(cs.Operations)
		if err := tracker.WriteFile(c.cfg.TilesOutput); err != nil {
			return nil, err
		}
	}

	report := &metrics.Report{
		Profile:   c.profile.Name,
		Output:    output,
		Reference: len(ds.Reference),
		Filtered:  ds.Filtered,
		Vendor:    c.vendor.Stats(),
		Match:     result.Stats,
		Changeset: cs.Stats,
		FetchTime: fetchTime,
		MergeTime: mergeTime,
		TotalTime: time.Since(start),
	}
	if collector != nil {
		report.System = collector.GetMetrics()
	}
	return report, nil
}

// FetchCache downloads the remote datasets into the cache without merging.
// Local files and database sources have nothing to cache and are skipped.
func (c *Coordinator) FetchCache(ctx context.Context) ([]CachedFile, error) {
	log := logger.Get()
	if c.cfg.CacheDir == "" {
		return nil, fmt.Errorf("a cache directory is required to fetch")
	}

	var reqs []fetch.Request
	if src, ok := c.reference.(*reference.OverpassSource); ok {
		reqs = append(reqs, src.Request())
	} else {
		log.Info("Reference source is local, nothing to fetch", zap.String("source", c.cfg.ReferenceSource))
	}
	if c.cfg.VendorFile == "" {
		reqs = append(reqs, c.vendor.Request())
	}

	files := make([]CachedFile, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			path, err := c.client.Fetch(gctx, req)
			if err != nil {
				return fmt.Errorf("failed to fetch %s: %w", req.Name, err)
			}
			fi, err := os.Stat(path)
			if err != nil {
				return err
			}
			files[i] = CachedFile{Name: req.Name, Path: path, Size: fi.Size()}
			log.Info("Cached",
				zap.String("name", req.Name),
				zap.String("path", path),
				zap.String("size", FormatBytes(fi.Size())))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

// WriteChangeset writes ops to path in the given format; "-" writes to stdout.
// Files are written to a temporary name and renamed into place.
func WriteChangeset(path, format string, ops []changeset.Operation) error {
	if path == "-" {
		return encode(os.Stdout, format, ops)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set output file mode: %w", err)
	}
	if err := encode(tmp, format, ops); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close output file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move output file into place: %w", err)
	}

	logger.Get().Info("Changeset written",
		zap.String("path", path),
		zap.String("format", format),
		zap.Int("operations", len(ops)))
	return nil
}

func encode(w io.Writer, format string, ops []changeset.Operation) error {
	switch format {
	case config.FormatOSC:
		return osc.Write(w, ops)
	case config.FormatJOSM, "":
		return osmfile.Write(w, ops, osmfile.Options{})
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
