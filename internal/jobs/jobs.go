// Package jobs runs the periodic background work of the server.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"daycal/internal/config"
	"daycal/internal/feeds"
	appLog "daycal/internal/log"
)

// PurgeSpec is how often expired sessions are deleted.
const PurgeSpec = "@hourly"

// FeedSyncer refreshes configured feeds.
type FeedSyncer interface {
	SyncAll(ctx context.Context, feeds []config.FeedConfig) ([]feeds.Result, error)
}

// SessionPurger deletes expired sessions.
type SessionPurger interface {
	PurgeExpiredSessions(ctx context.Context) (int64, error)
}

// Previewer renders the preview image.
type Previewer interface {
	Run(ctx context.Context) error
}

// Scheduler owns the cron runner and the job bodies, which can also be run
// on demand.
type Scheduler struct {
	cfg      *config.Config
	syncer   FeedSyncer
	sessions SessionPurger
	preview  Previewer

	cron    *cron.Cron
	entries map[string]cron.EntryID

	mu  sync.Mutex
	ctx context.Context
}

// New registers the jobs enabled by cfg. preview may be nil.
func New(cfg *config.Config, syncer FeedSyncer, sessions SessionPurger, preview Previewer) (*Scheduler, error) {
	s := &Scheduler{
		cfg:      cfg,
		syncer:   syncer,
		sessions: sessions,
		preview:  preview,
		entries:  make(map[string]cron.EntryID),
		ctx:      context.Background(),
	}

	logger := cronLogger{}
	s.cron = cron.New(
		cron.WithLocation(cfg.Location()),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	if len(cfg.Feeds) > 0 {
		if err := s.add("refresh", cfg.RefreshCron, s.RunRefresh); err != nil {
			return nil, err
		}
	}
	if err := s.add("purge", PurgeSpec, s.RunPurge); err != nil {
		return nil, err
	}
	if cfg.Preview.Enabled && preview != nil {
		if err := s.add("preview", cfg.Preview.Cron, s.RunPreview); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Scheduler) add(name, spec string, run func(context.Context) error) error {
	id, err := s.cron.AddFunc(spec, func() {
		if err := run(s.baseContext()); err != nil {
			appLog.Error("job failed", err, "job", name)
		}
	})
	if err != nil {
		return fmt.Errorf("jobs: %s schedule %q: %w", name, spec, err)
	}
	s.entries[name] = id
	appLog.Info("job scheduled", "job", name, "spec", spec)
	return nil
}

// Jobs lists the registered job names.
func (s *Scheduler) Jobs() []string {
	names := make([]string, 0, len(s.entries))
	for _, n := range []string{"refresh", "purge", "preview"} {
		if _, ok := s.entries[n]; ok {
			names = append(names, n)
		}
	}
	return names
}

// Run starts the scheduler and blocks until ctx is done, then waits for
// running jobs to finish.
func (s *Scheduler) Run(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	appLog.Info("scheduler stopped")
}

func (s *Scheduler) baseContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

// RunRefresh pulls every configured feed once.
func (s *Scheduler) RunRefresh(ctx context.Context) error {
	if s.syncer == nil {
		return errors.New("jobs: no feed syncer")
	}
	results, err := s.syncer.SyncAll(ctx, s.cfg.Feeds)
	imported := 0
	for _, r := range results {
		imported += r.Imported
	}
	appLog.Info("feed refresh finished", "feeds", len(s.cfg.Feeds), "imported", imported)
	return err
}

// RunPurge deletes expired sessions.
func (s *Scheduler) RunPurge(ctx context.Context) error {
	n, err := s.sessions.PurgeExpiredSessions(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		appLog.Info("expired sessions purged", "count", n)
	}
	return nil
}

// RunPreview renders the preview image.
func (s *Scheduler) RunPreview(ctx context.Context) error {
	if s.preview == nil {
		return errors.New("jobs: preview is not configured")
	}
	return s.preview.Run(ctx)
}

// cronLogger routes cron's own logging through the app logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}
