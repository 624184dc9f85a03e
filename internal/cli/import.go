package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"daycal/internal/feeds"
	"daycal/internal/ics"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	From   string
	To     string
	Source string
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <username> <file.ics>",
		Short: "Import events from an ICS file",
		Long: `Expand the events of an ICS file over a date window and append each
occurrence's summary to its day. Re-importing the same file with the same
--source adds nothing new. Use "-" to read from stdin.

Examples:
  daycal import alice holidays.ics --from 2024-01-01 --to 2024-12-31
  curl -s https://example.com/team.ics | daycal import alice - --source team`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, opts, args[0], args[1])
		},
	}

	cmd.Flags().StringVar(&opts.From, "from", "", "window start, YYYY-MM-DD (default: feed backfill)")
	cmd.Flags().StringVar(&opts.To, "to", "", "window end inclusive, YYYY-MM-DD (default: feed horizon)")
	cmd.Flags().StringVar(&opts.Source, "source", "file", "source id used to skip already imported occurrences")
	return cmd
}

func runImport(cmd *cobra.Command, opts *ImportOptions, username, path string) error {
	cfg := opts.Config()

	var (
		body []byte
		err  error
	)
	if path == "-" {
		body, err = io.ReadAll(cmd.InOrStdin())
	} else {
		body, err = os.ReadFile(path)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read ICS", err)
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

	syncer := feeds.NewSyncer(st, ics.NewFetcher(cfg.CacheDir, nil), cfg)
	from, to := syncer.Window()
	if opts.From != "" {
		if from, err = time.ParseInLocation(time.DateOnly, opts.From, cfg.Location()); err != nil {
			return WrapExitError(ExitCommandError, "invalid --from", err)
		}
	}
	if opts.To != "" {
		if to, err = time.ParseInLocation(time.DateOnly, opts.To, cfg.Location()); err != nil {
			return WrapExitError(ExitCommandError, "invalid --to", err)
		}
		to = to.AddDate(0, 0, 1).Add(-time.Second)
	}
	if to.Before(from) {
		return NewExitError(ExitCommandError, "--to is before --from")
	}

	res, err := syncer.ImportBody(cmd.Context(), u.ID, opts.Source, body, from, to)
	if err != nil {
		return WrapExitError(ExitFailure, "import failed", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d of %d occurrence(s)\n", res.Imported, res.Occurrences)
	return nil
}
