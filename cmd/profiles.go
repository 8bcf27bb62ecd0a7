package cmd

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/spf13/cobra"
	"github.com/wegman-software/chainmerge/internal/profile"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles [name]",
	Short: "List built-in chain profiles, or print one as YAML",
	Long: `Without arguments, list the built-in chain profiles. With a profile name
or file, print the resolved profile as YAML, a starting point for a new chain.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runProfiles,
}

func init() {
	rootCmd.AddCommand(profilesCmd)
}

func runProfiles(cmd *cobra.Command, args []string) {
	if len(args) == 1 {
		p, err := profile.Load(args[0])
		if err != nil {
			exitWithError("Failed to load profile", err)
		}
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		if err := enc.Encode(p); err != nil {
			exitWithError("Failed to print profile", err)
		}
		enc.Close()
		return
	}

	for _, name := range profile.Builtin() {
		p, err := profile.Load(name)
		if err != nil {
			exitWithError("Built-in profile is invalid", err)
		}
		fmt.Printf("%-16s %-8s %6.0f m  %s\n", p.Name, p.Vendor.Format, p.ThresholdM, p.Description)
	}
}
