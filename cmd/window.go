package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"thornfield.dev/daybook/pkg/activity"
	"thornfield.dev/daybook/pkg/config"
	dberrors "thornfield.dev/daybook/pkg/errors"
)

const dateLayout = "2006-01-02"

// windowFlags holds the shared reporting-window flags registered on the
// generate, journal, and context commands.
type windowFlags struct {
	date string
	from string
	to   string
	full bool
}

func (f *windowFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.date, "date", "", "report a single day: YYYY-MM-DD, today, or yesterday")
	cmd.Flags().StringVar(&f.from, "from", "", "report from this day (YYYY-MM-DD, inclusive)")
	cmd.Flags().StringVar(&f.to, "to", "", "report through this day (YYYY-MM-DD, inclusive)")
	cmd.Flags().BoolVar(&f.full, "full", false, "use the full lookback window, ignoring stored state")
}

// explicit reports whether the user asked for a specific window rather
// than the incremental default.
func (f *windowFlags) explicit() bool {
	return f.date != "" || f.from != "" || f.to != ""
}

// resolve turns the flags into a reporting window. The boolean result is
// true when the window was explicitly requested; incremental state is only
// advanced for non-explicit runs.
func (f *windowFlags) resolve(cfg *config.Config, agg *activity.Aggregator) (activity.Window, bool, error) {
	loc, err := activity.LoadLocation(cfg.Git.Timezone)
	if err != nil {
		return activity.Window{}, false, err
	}

	if f.date != "" && (f.from != "" || f.to != "") {
		return activity.Window{}, false, dberrors.New("--date cannot be combined with --from/--to")
	}

	switch {
	case f.date != "":
		day, err := parseDay(f.date, loc)
		if err != nil {
			return activity.Window{}, false, err
		}
		return activity.DayWindow(day, loc), true, nil

	case f.from != "" || f.to != "":
		if f.from == "" || f.to == "" {
			return activity.Window{}, false, dberrors.New("--from and --to must be supplied together")
		}
		from, err := parseDay(f.from, loc)
		if err != nil {
			return activity.Window{}, false, err
		}
		to, err := parseDay(f.to, loc)
		if err != nil {
			return activity.Window{}, false, err
		}
		window := activity.RangeWindow(from, to, loc)
		if !window.Valid() {
			return activity.Window{}, false, dberrors.Newf("--from %s is after --to %s", f.from, f.to)
		}
		return window, true, nil

	case f.full:
		return activity.LookbackWindow(time.Now(), cfg.Lookback()), true, nil

	default:
		return agg.ResolveWindow(cfg.Workspace.Root), false, nil
	}
}

// parseDay accepts YYYY-MM-DD plus the today/yesterday shorthands.
func parseDay(s string, loc *time.Location) (time.Time, error) {
	switch s {
	case "today":
		return time.Now().In(loc), nil
	case "yesterday":
		return time.Now().In(loc).AddDate(0, 0, -1), nil
	}
	day, err := time.ParseInLocation(dateLayout, s, loc)
	if err != nil {
		return time.Time{}, dberrors.Newf("invalid date %q: want YYYY-MM-DD, today, or yesterday", s)
	}
	return day, nil
}

// dateLabel names the day a window ends in, used for output file names.
// The window is half-open, so the instant before End is the last covered
// moment.
func dateLabel(window activity.Window, loc *time.Location) string {
	return window.End.Add(-time.Second).In(loc).Format(dateLayout)
}
