package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"daycal/internal/ics"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Output string
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export <username>",
		Short: "Export a user's events as ICS",
		Long: `Write every stored event as an all-day VEVENT.

Examples:
  daycal export alice > alice.ics
  daycal export alice -o alice.ics`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file (default: stdout)")
	return cmd
}

func runExport(cmd *cobra.Command, opts *ExportOptions, username string) error {
	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	u, err := lookupUser(cmd, st, username)
	if err != nil {
		return err
	}
	docs, err := st.ListAll(cmd.Context(), u.ID)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to load events", err)
	}
	body := ics.Export(u.Username, docs, time.Now())

	if opts.Output == "" {
		_, err = io.WriteString(cmd.OutOrStdout(), body)
		return err
	}
	if err := os.WriteFile(opts.Output, []byte(body), 0o644); err != nil {
		return WrapExitError(ExitFailure, "failed to write output", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "exported %d day(s) to %s\n", len(docs), opts.Output)
	return nil
}
