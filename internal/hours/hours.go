// Package hours derives OSM opening_hours values from per-day vendor intervals.
package hours

import (
	"fmt"
	"strings"
	"time"
)

// AllDay is the interval vendors use to publish round-the-clock locations
const AllDay = "07:00-07:00"

// Interval is a single day's open and close time in HH:MM
type Interval struct {
	Open  string
	Close string
}

// String renders the interval as HH:MM-HH:MM
func (i Interval) String() string {
	return i.Open + "-" + i.Close
}

// Week holds one interval per day, Sunday first
type Week [7]Interval

// Run is a sequence of consecutive days sharing the same hours
type Run struct {
	From  string
	To    string
	Hours string
}

// dayAbbrev returns the two-letter day abbreviation, Sunday = 0
func dayAbbrev(d time.Weekday) string {
	return d.String()[:2]
}

// Runs collapses consecutive days with identical hours. There is no
// wrap-around between Saturday and Sunday.
func Runs(week Week) []Run {
	runs := make([]Run, 0, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		h := week[d].String()
		day := dayAbbrev(d)
		if n := len(runs); n > 0 && runs[n-1].Hours == h {
			runs[n-1].To = day
			continue
		}
		runs = append(runs, Run{From: day, To: day, Hours: h})
	}
	return runs
}

// Derive renders a week as an opening_hours value, e.g.
// "Su 08:00-21:00; Mo-Sa 06:00-22:00", or "24/7".
func Derive(week Week) string {
	runs := Runs(week)
	if len(runs) == 1 && runs[0].Hours == AllDay {
		return "24/7"
	}

	parts := make([]string, 0, len(runs))
	for _, r := range runs {
		if r.From == r.To {
			parts = append(parts, r.From+" "+r.Hours)
		} else {
			parts = append(parts, r.From+"-"+r.To+" "+r.Hours)
		}
	}
	return strings.Join(parts, "; ")
}

// ParseClock converts a feed time such as "7:00 AM" (layout "3:04 PM") to HH:MM
func ParseClock(value, layout string) (string, error) {
	t, err := time.Parse(layout, strings.TrimSpace(value))
	if err != nil {
		return "", fmt.Errorf("invalid time %q: %w", value, err)
	}
	return t.Format("15:04"), nil
}

// ParseInterval parses an "HH:MM-HH:MM" string
func ParseInterval(s string) (Interval, error) {
	from, to, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return Interval{}, fmt.Errorf("interval %q must be HH:MM-HH:MM", s)
	}
	var iv Interval
	var err error
	if iv.Open, err = ParseClock(from, "15:04"); err != nil {
		return Interval{}, err
	}
	if iv.Close, err = ParseClock(to, "15:04"); err != nil {
		return Interval{}, err
	}
	return iv, nil
}
