package metrics

import (
	"time"

	"go.uber.org/zap"

	"github.com/wegman-software/chainmerge/internal/changeset"
	"github.com/wegman-software/chainmerge/internal/match"
	"github.com/wegman-software/chainmerge/internal/vendor"
)

// Report summarizes one merge run
type Report struct {
	Profile   string
	Output    string
	Reference int // points after filtering
	Filtered  int // reference points rejected by the tag filter
	Vendor    vendor.Stats
	Match     match.Stats
	Changeset changeset.Stats
	FetchTime time.Duration
	MergeTime time.Duration
	TotalTime time.Duration
	System    *SystemMetrics // last sample of the periodic collector
}

// Log writes the report as a single structured log entry
func (r *Report) Log(logger *zap.Logger) {
	fields := []zap.Field{
		zap.String("profile", r.Profile),
		zap.String("output", r.Output),
		zap.Int("reference", r.Reference),
		zap.Int("filtered", r.Filtered),
		zap.Int("vendor_records", r.Vendor.Records),
		zap.Int("vendor_points", r.Vendor.Points),
		zap.Int("vendor_malformed", r.Vendor.Malformed),
		zap.Int("vendor_skipped", r.Vendor.Skipped),
		zap.Int("hours_unparsed", r.Vendor.HoursUnparsed),
		zap.Int("matched", r.Match.Matched),
		zap.Int("unmatched_reference", r.Match.UnmatchedReference),
		zap.Float64("max_distance_m", r.Match.MaxDistanceM),
		zap.Int("modify", r.Changeset.Modified),
		zap.Int("create", r.Changeset.Created),
		zap.Int("ambiguous_addresses", r.Changeset.AmbiguousAddresses),
		zap.Duration("fetch_time", r.FetchTime),
		zap.Duration("merge_time", r.MergeTime),
		zap.Duration("total_time", r.TotalTime),
	}
	if r.System != nil {
		fields = append(fields,
			zap.String("proc_rss", formatMB(r.System.ProcessRSSMB)),
			zap.Float64("proc_cpu", r.System.ProcessCPUPercent))
	}
	logger.Info("Merge complete", fields...)
}
