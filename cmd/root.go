package cmd

import (
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/spf13/cobra"
	"github.com/wegman-software/chainmerge/internal/config"
	"github.com/wegman-software/chainmerge/internal/logger"
)

var (
	cfg             = config.DefaultConfig()
	verbose         bool
	quiet           bool
	logFile         string
	metricsInterval time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "chainmerge",
	Short: "Merge chain store locator feeds into OpenStreetMap changesets",
	Long: `chainmerge reconciles a chain's store locator feed with the features
already mapped in OpenStreetMap and writes a changeset for review in JOSM.

Features:
  - Reference data from Overpass, .osm/.osm.pbf extracts or osm2pgsql middle tables
  - XML, CSV and XLSX vendor feeds with optional Lua transform scripts
  - Greedy nearest-neighbor matching with a per-chain distance threshold
  - Vendor-wins tag merge with address splitting and opening hours
  - JOSM .osm or osmChange output`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg.Verbose = verbose
		cfg.LogFile = logFile
		cfg.MetricsInterval = metricsInterval

		logger.InitWithOptions(logger.Options{
			Debug:   verbose,
			LogFile: logFile,
			Quiet:   quiet,
		})
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only log warnings and errors to the console")
	rootCmd.PersistentFlags().StringVar(&cfg.CacheDir, "cache-dir", cfg.CacheDir, "Directory for downloaded feeds and query results")
	rootCmd.PersistentFlags().BoolVar(&cfg.Offline, "offline", false, "Only use cached downloads")
	rootCmd.PersistentFlags().IntVar(&cfg.MaxRetries, "retries", cfg.MaxRetries, "Retries for failed downloads")
	rootCmd.PersistentFlags().DurationVar(&cfg.RetryDelay, "retry-delay", cfg.RetryDelay, "Delay between download retries")
	rootCmd.PersistentFlags().StringVar(&cfg.UserAgent, "user-agent", cfg.UserAgent, "HTTP User-Agent header")
	rootCmd.PersistentFlags().IntVarP(&cfg.Workers, "workers", "j", cfg.Workers, "PBF decoder goroutines")

	// Logging and metrics flags
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Path to log file for persistent logging (JSON format)")
	rootCmd.PersistentFlags().DurationVar(&metricsInterval, "metrics-interval", 0, "Interval for system metrics logging, 0 disables (e.g. 10s, 1m)")

	// Database flags for the middle-table reference source
	rootCmd.PersistentFlags().StringVar(&cfg.DBHost, "db-host", cfg.DBHost, "PostgreSQL host")
	rootCmd.PersistentFlags().IntVar(&cfg.DBPort, "db-port", cfg.DBPort, "PostgreSQL port")
	rootCmd.PersistentFlags().StringVarP(&cfg.DBName, "db-name", "d", cfg.DBName, "PostgreSQL database name")
	rootCmd.PersistentFlags().StringVarP(&cfg.DBUser, "db-user", "U", cfg.DBUser, "PostgreSQL user")
	rootCmd.PersistentFlags().StringVarP(&cfg.DBPassword, "db-password", "W", cfg.DBPassword, "PostgreSQL password")
	rootCmd.PersistentFlags().StringVar(&cfg.DBSchema, "db-schema", cfg.DBSchema, "PostgreSQL schema holding the middle tables")
}

func exitWithError(msg string, err error) {
	log := logger.Get()
	if err != nil {
		log.Error(msg, zap.Error(err))
	} else {
		log.Error(msg)
	}
	logger.Sync()
	os.Exit(1)
}
