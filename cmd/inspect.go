package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/paulmach/orb"
	"github.com/spf13/cobra"
	"github.com/wegman-software/chainmerge/internal/osc"
	"github.com/wegman-software/chainmerge/internal/tiles"
)

var (
	inspectTagKey string
	inspectZoom   int
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.osm|file.osc>",
	Short: "Summarize a written changeset document",
	Long: `Read a JOSM .osm or osmChange document (optionally gzip compressed) and
print the number of elements per action, plus the distribution of one tag.`,
	Args: cobra.ExactArgs(1),
	Run:  runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().StringVar(&inspectTagKey, "tag", "addr:street", "Count elements missing this tag")
	inspectCmd.Flags().IntVar(&inspectZoom, "tiles", -1, "Also list the tiles touched by edited nodes at this zoom")
}

func runInspect(cmd *cobra.Command, args []string) {
	parser := osc.NewParser()
	changes, err := osc.Collect(parser.ParseFile(context.Background(), args[0]))
	if err != nil {
		exitWithError("Failed to read changeset", err)
	}

	var tracker *tiles.Tracker
	if inspectZoom >= 0 {
		if tracker, err = tiles.NewTracker(inspectZoom, inspectZoom); err != nil {
			exitWithError("Invalid tile zoom", err)
		}
	}

	stats := parser.Stats()
	missing := 0
	keys := make(map[string]int)
	for _, c := range changes {
		if c.Action != osc.ActionCreate && c.Action != osc.ActionModify {
			continue
		}
		if _, ok := c.Tags[inspectTagKey]; !ok {
			missing++
		}
		for k := range c.Tags {
			keys[k]++
		}
		if tracker != nil && c.Type == "node" {
			tracker.AddPoint(orb.Point{c.Lon, c.Lat})
		}
	}

	w := os.Stdout
	fmt.Fprintf(w, "%s\n", args[0])
	fmt.Fprintf(w, "  nodes:     %d created, %d modified, %d deleted\n", stats.NodesCreated, stats.NodesModified, stats.NodesDeleted)
	fmt.Fprintf(w, "  ways:      %d created, %d modified, %d deleted\n", stats.WaysCreated, stats.WaysModified, stats.WaysDeleted)
	fmt.Fprintf(w, "  unchanged: %d\n", stats.Unchanged)
	if stats.Relations > 0 {
		fmt.Fprintf(w, "  relations: %d (ignored)\n", stats.Relations)
	}
	fmt.Fprintf(w, "  missing %s: %d\n", inspectTagKey, missing)

	names := make([]string, 0, len(keys))
	for k := range keys {
		names = append(names, k)
	}
	sort.Slice(names, func(i, j int) bool {
		if keys[names[i]] != keys[names[j]] {
			return keys[names[i]] > keys[names[j]]
		}
		return names[i] < names[j]
	})
	fmt.Fprintln(w, "  tags:")
	for _, k := range names {
		fmt.Fprintf(w, "    %-20s %d\n", k, keys[k])
	}

	if tracker != nil {
		fmt.Fprintf(w, "  tiles (z%d): %d\n", inspectZoom, tracker.Count())
		for _, tile := range tracker.Tiles() {
			fmt.Fprintf(w, "    %s\n", tiles.Format(tile))
		}
	}
}
