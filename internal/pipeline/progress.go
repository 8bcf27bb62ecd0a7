package pipeline

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// stage times one step of a run and logs its throughput
type stage struct {
	name  string
	start time.Time
	log   *zap.Logger
}

func startStage(log *zap.Logger, name string) *stage {
	log.Debug("Stage started", zap.String("stage", name))
	return &stage{name: name, start: time.Now(), log: log}
}

// done logs the elapsed time and the rate at which count items were handled
func (s *stage) done(count int) time.Duration {
	elapsed := time.Since(s.start)
	var throughput float64
	if elapsed.Seconds() > 0 {
		throughput = float64(count) / elapsed.Seconds()
	}
	s.log.Info("Stage complete",
		zap.String("stage", s.name),
		zap.Int("items", count),
		zap.Duration("elapsed", elapsed.Round(time.Millisecond)),
		zap.String("rate", FormatThroughput(throughput)))
	return elapsed
}

// FormatThroughput formats throughput as human-readable items per second
func FormatThroughput(itemsPerSec float64) string {
	if itemsPerSec >= 1_000_000 {
		return fmt.Sprintf("%.1fM/s", itemsPerSec/1_000_000)
	}
	if itemsPerSec >= 1_000 {
		return fmt.Sprintf("%.1fK/s", itemsPerSec/1_000)
	}
	return fmt.Sprintf("%.0f/s", itemsPerSec)
}

// FormatBytes formats bytes in a human-readable format
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
