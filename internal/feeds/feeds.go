// Package feeds copies events from ICS subscriptions into users' days.
//
// Each occurrence is imported at most once per (user, feed, instance), so a
// refresh never duplicates entries and events the user deleted by hand stay
// deleted.
package feeds

import (
	"context"
	"errors"
	"fmt"
	"time"

	"daycal/internal/calendar"
	"daycal/internal/config"
	"daycal/internal/ics"
	appLog "daycal/internal/log"
	"daycal/internal/model"
)

// UntitledSummary stands in for occurrences without a SUMMARY.
const UntitledSummary = "(untitled)"

// Store is the persistence the syncer writes through.
type Store interface {
	UserByName(ctx context.Context, username string) (model.User, error)
	ImportOccurrence(ctx context.Context, userID, sourceID, instanceKey string, key calendar.DayKey, text string) (bool, error)
}

// Fetcher downloads one feed body.
type Fetcher interface {
	FetchOne(ctx context.Context, src ics.Source) (ics.FetchResult, error)
}

// Result summarizes one import.
type Result struct {
	SourceID    string
	Occurrences int
	Imported    int
	FromCache   bool
	Truncated   []string
}

// Syncer pulls configured feeds into the store.
type Syncer struct {
	store    Store
	fetcher  Fetcher
	loc      *time.Location
	horizon  time.Duration
	backfill time.Duration
	now      func() time.Time
}

// NewSyncer builds a Syncer from the feed settings in cfg.
func NewSyncer(st Store, fetcher Fetcher, cfg *config.Config) *Syncer {
	return &Syncer{
		store:    st,
		fetcher:  fetcher,
		loc:      cfg.Location(),
		horizon:  time.Duration(cfg.FeedHorizonDays) * 24 * time.Hour,
		backfill: time.Duration(cfg.FeedBackfillDays) * 24 * time.Hour,
		now:      time.Now,
	}
}

// SetClock replaces the time source. Tests only.
func (s *Syncer) SetClock(now func() time.Time) { s.now = now }

// Window returns the expansion range used by SyncAll.
func (s *Syncer) Window() (time.Time, time.Time) {
	now := s.now().In(s.loc)
	return now.Add(-s.backfill), now.Add(s.horizon)
}

// SyncAll refreshes every feed. A failing feed is logged and does not stop
// the others; the joined error reports all failures.
func (s *Syncer) SyncAll(ctx context.Context, feeds []config.FeedConfig) ([]Result, error) {
	from, to := s.Window()
	results := make([]Result, 0, len(feeds))
	var errs []error

	for _, fc := range feeds {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := s.syncOne(ctx, fc, from, to)
		if err != nil {
			appLog.Error("feed sync failed", err, "id", fc.SourceID(), "user", fc.User)
			errs = append(errs, fmt.Errorf("feed %s: %w", fc.SourceID(), err))
			continue
		}
		results = append(results, res)
	}

	appLog.Info("feed sync completed", "feeds", len(feeds), "failed", len(errs))
	return results, errors.Join(errs...)
}

func (s *Syncer) syncOne(ctx context.Context, fc config.FeedConfig, from, to time.Time) (Result, error) {
	user, err := s.store.UserByName(ctx, fc.User)
	if err != nil {
		return Result{}, fmt.Errorf("user %q: %w", fc.User, err)
	}

	src := ics.Source{ID: fc.SourceID(), URL: fc.URL}
	fetched, err := s.fetcher.FetchOne(ctx, src)
	if err != nil {
		return Result{}, err
	}

	res, err := s.ImportBody(ctx, user.ID, src.ID, fetched.Body, from, to)
	res.FromCache = fetched.FromCache
	return res, err
}

// ImportBody parses body, expands it over [from, to] and appends every
// occurrence not imported before to its day.
func (s *Syncer) ImportBody(ctx context.Context, userID, sourceID string, body []byte, from, to time.Time) (Result, error) {
	res := Result{SourceID: sourceID}

	src := ics.Source{ID: sourceID}
	events, err := ics.ParseICS(src, body, s.loc)
	if err != nil {
		return res, fmt.Errorf("parse: %w", err)
	}

	expanded, err := ics.ExpandOccurrences(events, ics.ExpandConfig{
		DisplayLocation: s.loc,
		RangeStart:      from,
		RangeEnd:        to,
	})
	if err != nil {
		return res, fmt.Errorf("expand: %w", err)
	}
	res.Occurrences = len(expanded.Occurrences)
	res.Truncated = expanded.TruncatedEvents

	for _, occ := range expanded.Occurrences {
		fresh, err := s.store.ImportOccurrence(ctx, userID, sourceID, occ.InstanceKey, occ.Day(), summaryOf(occ))
		if err != nil {
			return res, err
		}
		if fresh {
			res.Imported++
		}
	}

	appLog.Debug("feed import done", "id", sourceID, "occurrences", res.Occurrences, "imported", res.Imported)
	return res, nil
}

func summaryOf(occ model.Occurrence) string {
	if occ.Summary == "" {
		return UntitledSummary
	}
	return occ.Summary
}
