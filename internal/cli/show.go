package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"daycal/internal/calendar"
	"daycal/internal/textview"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	Year  int
	Month int
	Day   int
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show <username>",
		Short: "Print a month grid with upcoming events",
		Long: `Print a user's month as a text grid. Today is bracketed and days
with events are marked with '*'. With --day the day's events are listed.

Examples:
  daycal show alice
  daycal show alice --year 2024 --month 2 --day 29`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd, opts, args[0])
		},
	}

	cmd.Flags().IntVar(&opts.Year, "year", 0, "year to show (default: current)")
	cmd.Flags().IntVar(&opts.Month, "month", 0, "month to show, 1-12 (default: current)")
	cmd.Flags().IntVar(&opts.Day, "day", 0, "day whose events to list")
	return cmd
}

func runShow(cmd *cobra.Command, opts *ShowOptions, username string) error {
	cfg := opts.Config()
	today := calendar.DayKeyOf(time.Now().In(cfg.Location()))

	year, month := today.Year, today.Month
	if opts.Year != 0 {
		year = opts.Year
	}
	if opts.Month != 0 {
		if opts.Month < 1 || opts.Month > 12 {
			return NewExitError(ExitCommandError, fmt.Sprintf("invalid month %d", opts.Month))
		}
		month = time.Month(opts.Month)
	}
	if year < 1 || year > 9999 {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid year %d", year))
	}
	if opts.Day < 0 || opts.Day > calendar.DaysInMonth(year, month) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid day %d", opts.Day))
	}

	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	u, err := lookupUser(cmd, st, username)
	if err != nil {
		return err
	}
	events, err := st.ListMonth(cmd.Context(), u.ID, year, month)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to load month", err)
	}

	cells := calendar.BuildGrid(year, month, today, opts.Day, events)
	from := calendar.DayKey{Year: year, Month: month, Day: today.Day}
	upcoming := calendar.UpcomingEvents(events, from, cfg.UpcomingLimit)

	out := cmd.OutOrStdout()
	if err := textview.Month(out, year, month, cells, upcoming); err != nil {
		return WrapExitError(ExitFailure, "failed to render", err)
	}

	if opts.Day != 0 {
		key := calendar.DayKey{Year: year, Month: month, Day: opts.Day}
		fmt.Fprintf(out, "\n%s %d:\n", month, opts.Day)
		selected := calendar.SelectedDayEvents(events, key)
		if len(selected) == 0 {
			fmt.Fprintln(out, "  (no events)")
		}
		for i, text := range selected {
			fmt.Fprintf(out, "  %d. %s\n", i+1, text)
		}
	}
	return nil
}
