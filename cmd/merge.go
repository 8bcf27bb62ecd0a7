package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/spf13/cobra"
	"github.com/wegman-software/chainmerge/internal/config"
	"github.com/wegman-software/chainmerge/internal/logger"
	"github.com/wegman-software/chainmerge/internal/pipeline"
)

var bboxStr string

var mergeCmd = &cobra.Command{
	Use:   "merge <profile>",
	Short: "Match a chain's feed against OSM and write a changeset",
	Long: `Run the full merge for a chain profile (built-in name or YAML file):

  1. Load the reference features and the vendor feed concurrently
  2. Keep the reference features accepted by the profile filter
  3. Match every vendor location to its nearest unmatched feature
  4. Write matched features as modify and new locations as create

Features that have no vendor location are left untouched.`,
	Args: cobra.ExactArgs(1),
	Run:  runMerge,
}

func init() {
	rootCmd.AddCommand(mergeCmd)
	addSourceFlags(mergeCmd)

	mergeCmd.Flags().Float64VarP(&cfg.ThresholdM, "threshold", "t", 0, "Match distance in meters (default: profile threshold)")
	mergeCmd.Flags().StringVarP(&cfg.OutputFile, "output", "O", "", "Output file, - for stdout (default: <profile>_modified.osm)")
	mergeCmd.Flags().StringVarP(&cfg.Format, "format", "f", cfg.Format, "Output format: josm or osc")
	mergeCmd.Flags().StringVar(&cfg.TilesOutput, "tiles-output", "", "Write the z/x/y tiles touched by the changeset to this file")
	mergeCmd.Flags().IntVar(&cfg.TilesMinZoom, "tiles-min-zoom", cfg.TilesMinZoom, "Minimum zoom of the tile list")
	mergeCmd.Flags().IntVar(&cfg.TilesMaxZoom, "tiles-max-zoom", cfg.TilesMaxZoom, "Maximum zoom of the tile list")
}

// addSourceFlags registers the flags selecting where both datasets come from
func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&cfg.ReferenceSource, "reference", "r", cfg.ReferenceSource, "Reference source: overpass, file or middle")
	cmd.Flags().StringVar(&cfg.ReferenceFile, "reference-file", "", "Reference .osm or .osm.pbf file (implies --reference file)")
	cmd.Flags().StringVar(&cfg.OverpassURL, "overpass-url", cfg.OverpassURL, "Overpass API interpreter URL")
	cmd.Flags().DurationVar(&cfg.OverpassTimeout, "overpass-timeout", cfg.OverpassTimeout, "Overpass query timeout")
	cmd.Flags().StringVar(&cfg.VendorFile, "vendor-file", "", "Read the vendor feed from a local file")
	cmd.Flags().StringVarP(&bboxStr, "bbox", "b", "", "Bounding box override: minlon,minlat,maxlon,maxlat")
}

// prepareConfig applies positional arguments and derived settings, then validates
func prepareConfig(cmd *cobra.Command, profileName string) {
	cfg.Profile = profileName

	if bboxStr != "" {
		bbox, err := config.ParseBBox(bboxStr)
		if err != nil {
			exitWithError("Invalid bounding box", err)
		}
		cfg.BBox = bbox
	}
	if cfg.ReferenceFile != "" && !cmd.Flags().Changed("reference") {
		cfg.ReferenceSource = config.ReferenceFile
	}

	if err := cfg.Validate(); err != nil {
		exitWithError("Invalid configuration", err)
	}
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runMerge(cmd *cobra.Command, args []string) {
	prepareConfig(cmd, args[0])
	log := logger.Get()

	ctx, cancel := signalContext()
	defer cancel()

	coord, err := pipeline.NewCoordinator(ctx, cfg)
	if err != nil {
		exitWithError("Failed to set up merge", err)
	}
	defer coord.Close()

	p := coord.Profile()
	log.Info("Starting merge",
		zap.String("profile", p.Name),
		zap.Float64("threshold_m", p.Threshold(cfg.ThresholdM)),
		zap.String("reference", cfg.ReferenceSource),
		zap.String("format", cfg.Format))

	report, err := coord.Run(ctx)
	if err != nil {
		coord.Close()
		exitWithError("Merge failed", err)
	}
	report.Log(log)
}
