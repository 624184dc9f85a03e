// Package cli wires the daycal command tree.
package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"daycal/internal/config"
	appLog "daycal/internal/log"
	"daycal/internal/model"
	"daycal/internal/store"
)

// DefaultConfigPath is used when --config is not given.
const DefaultConfigPath = "config.yaml"

// RootOptions holds global flags for all commands and the config they load.
type RootOptions struct {
	ConfigPath string
	Verbose    bool

	cfg *config.Config
}

// Config returns the configuration loaded before the command ran.
func (o *RootOptions) Config() *config.Config {
	return o.cfg
}

// openStore opens the configured database.
func (o *RootOptions) openStore() (*store.Store, error) {
	st, err := store.Open(o.cfg.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// NewRootCommand creates the root command for the daycal CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "daycal",
		Short:         "daycal - a personal day-notes calendar",
		Long:          "A personal calendar: a month grid, per-day event notes, upcoming events and ICS feeds.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load config", err)
			}
			if err := cfg.Validate(); err != nil {
				return WrapExitError(ExitCommandError, "invalid config", err)
			}
			opts.cfg = cfg

			level := appLog.ParseLevel(cfg.LogLevel)
			if opts.Verbose {
				level = appLog.LevelDebug
			}
			appLog.SetLevel(level)
			appLog.Debug("config loaded", "path", opts.ConfigPath, "database", cfg.Database, "timezone", cfg.Timezone)
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", DefaultConfigPath, "path to config file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewUserCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewFeedsCommand(opts))

	return cmd
}

// lookupUser maps a missing user to a command error.
func lookupUser(cmd *cobra.Command, st *store.Store, username string) (model.User, error) {
	u, err := st.UserByName(cmd.Context(), username)
	if errors.Is(err, store.ErrNotFound) {
		return model.User{}, NewExitError(ExitCommandError, fmt.Sprintf("unknown user %q", username))
	}
	if err != nil {
		return model.User{}, WrapExitError(ExitFailure, "failed to load user", err)
	}
	return u, nil
}
