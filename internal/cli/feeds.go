package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"daycal/internal/feeds"
	"daycal/internal/ics"
)

// NewFeedsCommand creates the feeds command group.
func NewFeedsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feeds",
		Short: "Work with configured ICS feeds",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "sync",
		Short: "Fetch every configured feed once and import new occurrences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFeedsSync(cmd, rootOpts)
		},
	})
	return cmd
}

func runFeedsSync(cmd *cobra.Command, opts *RootOptions) error {
	cfg := opts.Config()
	out := cmd.OutOrStdout()
	if len(cfg.Feeds) == 0 {
		fmt.Fprintln(out, "no feeds configured")
		return nil
	}

	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	syncer := feeds.NewSyncer(st, ics.NewFetcher(cfg.CacheDir, nil), cfg)
	results, syncErr := syncer.SyncAll(cmd.Context(), cfg.Feeds)
	for _, r := range results {
		cached := ""
		if r.FromCache {
			cached = " (cached)"
		}
		fmt.Fprintf(out, "%s: imported %d of %d occurrence(s)%s\n", r.SourceID, r.Imported, r.Occurrences, cached)
	}
	if syncErr != nil {
		return WrapExitError(ExitFailure, "feed sync failed", syncErr)
	}
	return nil
}
