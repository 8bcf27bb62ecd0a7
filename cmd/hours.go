package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/wegman-software/chainmerge/internal/hours"
)

var hoursLayout string

var hoursCmd = &cobra.Command{
	Use:   "hours <sun> <mon> <tue> <wed> <thu> <fri> <sat>",
	Short: "Derive an opening_hours value from seven daily intervals",
	Long: `Derive an opening_hours value from seven daily intervals, Sunday first.
Each interval is open-close in the --layout time format:

  chainmerge hours 07:00-22:00 07:00-22:00 07:00-22:00 07:00-22:00 07:00-22:00 07:00-23:00 07:00-23:00
  Su-Th 07:00-22:00; Fr-Sa 07:00-23:00

  chainmerge hours --layout "3:04 PM" "7:00 AM-10:00 PM" ...`,
	Args: cobra.ExactArgs(7),
	Run:  runHours,
}

func init() {
	rootCmd.AddCommand(hoursCmd)
	hoursCmd.Flags().StringVar(&hoursLayout, "layout", "15:04", "Time layout of the intervals (Go reference time)")
}

func runHours(cmd *cobra.Command, args []string) {
	var week hours.Week
	for i, arg := range args {
		iv, err := parseDay(arg)
		if err != nil {
			exitWithError(fmt.Sprintf("Invalid interval for day %d", i+1), err)
		}
		week[i] = iv
	}
	fmt.Println(hours.Derive(week))
}

// parseDay splits "open-close" on the dash between the two times
func parseDay(s string) (hours.Interval, error) {
	if hoursLayout == "15:04" {
		return hours.ParseInterval(s)
	}
	for i := 0; i < len(s); i++ {
		if s[i] != '-' {
			continue
		}
		open, err := hours.ParseClock(s[:i], hoursLayout)
		if err != nil {
			continue
		}
		closeAt, err := hours.ParseClock(s[i+1:], hoursLayout)
		if err != nil {
			continue
		}
		return hours.Interval{Open: open, Close: closeAt}, nil
	}
	return hours.Interval{}, fmt.Errorf("%q is not an open-close interval in layout %q", s, hoursLayout)
}
