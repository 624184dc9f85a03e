package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"daycal/internal/auth"
	"daycal/internal/feeds"
	"daycal/internal/ics"
	"daycal/internal/jobs"
	appLog "daycal/internal/log"
	"daycal/internal/web"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Listen string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web UI, JSON API and background jobs",
		Long: `Run the HTTP server together with the scheduler that refreshes ICS
feeds, purges expired sessions and captures the preview image.

Stops gracefully on SIGINT or SIGTERM.

Examples:
  daycal serve
  daycal serve --listen 0.0.0.0:8080 --config /etc/daycal/config.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "HTTP listen address (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cfg := opts.Config()
	if opts.Listen != "" {
		cfg.Listen = opts.Listen
	}

	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	authSvc := auth.NewService(st, cfg.SessionDuration())
	syncer := feeds.NewSyncer(st, ics.NewFetcher(cfg.CacheDir, nil), cfg)

	srv, err := web.NewServer(cfg, st, authSvc, syncer)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to build server", err)
	}

	var preview jobs.Previewer
	if cfg.Preview.Enabled {
		preview = jobs.NewPreviewJob(st, cfg.Listen, cfg.Preview, nil)
	}
	sched, err := jobs.New(cfg, syncer, st, preview)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid schedule", err)
	}

	appLog.Info("daycal starting",
		"listen", cfg.Listen,
		"timezone", cfg.Timezone,
		"database", cfg.Database,
		"feeds", len(cfg.Feeds),
		"jobs", sched.Jobs(),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		sched.Run(ctx)
	}()

	if len(cfg.Feeds) > 0 {
		go func() {
			if err := sched.RunRefresh(ctx); err != nil && ctx.Err() == nil {
				appLog.Error("initial feed refresh failed", err)
			}
		}()
	}

	serveErr := srv.ListenAndServe(ctx)
	stop()
	<-schedDone

	if serveErr != nil {
		return WrapExitError(ExitFailure, "server error", serveErr)
	}
	appLog.Info("daycal exiting")
	return nil
}
