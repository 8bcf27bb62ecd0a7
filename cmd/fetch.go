package cmd

import (
	"go.uber.org/zap"

	"github.com/spf13/cobra"
	"github.com/wegman-software/chainmerge/internal/logger"
	"github.com/wegman-software/chainmerge/internal/pipeline"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <profile>",
	Short: "Download a chain's reference data and vendor feed into the cache",
	Long: `Download the Overpass result and the vendor feed of a profile into the
cache directory without merging. A later merge with --offline reads them
from the cache.`,
	Args: cobra.ExactArgs(1),
	Run:  runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	addSourceFlags(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) {
	prepareConfig(cmd, args[0])
	log := logger.Get()

	ctx, cancel := signalContext()
	defer cancel()

	coord, err := pipeline.NewCoordinator(ctx, cfg)
	if err != nil {
		exitWithError("Failed to set up fetch", err)
	}
	defer coord.Close()

	files, err := coord.FetchCache(ctx)
	if err != nil {
		coord.Close()
		exitWithError("Fetch failed", err)
	}

	var total int64
	for _, f := range files {
		total += f.Size
	}
	log.Info("Fetch complete",
		zap.String("profile", coord.Profile().Name),
		zap.Int("files", len(files)),
		zap.String("size", pipeline.FormatBytes(total)),
		zap.String("cache_dir", cfg.CacheDir))
}
