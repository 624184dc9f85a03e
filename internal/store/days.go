package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"daycal/internal/calendar"
	"daycal/internal/model"
)

// ListMonth returns the user's events for one month, keyed by day. Days whose
// stored list is empty are left out. This is what the month view renders.
func (s *Store) ListMonth(ctx context.Context, userID string, year int, month time.Month) (calendar.EventsMap, error) {
	docs, err := s.MonthDocs(ctx, userID, year, month)
	if err != nil {
		return nil, err
	}
	out := make(calendar.EventsMap, len(docs))
	for _, d := range docs {
		if len(d.Events) == 0 {
			continue
		}
		out[d.Key()] = d.Events
	}
	return out, nil
}

// MonthDocs returns the raw day documents for one month ordered by day,
// including documents whose list was emptied.
func (s *Store) MonthDocs(ctx context.Context, userID string, year int, month time.Month) ([]model.DayDoc, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT year, month, day, events, updated_at
		FROM day_events
		WHERE user_id = ? AND year = ? AND month = ?
		ORDER BY day ASC
	`, userID, year, int(month))
	if err != nil {
		return nil, fmt.Errorf("list month: %w", err)
	}
	defer rows.Close()

	docs, err := scanDocs(rows, userID)
	if err != nil {
		return nil, fmt.Errorf("list month: %w", err)
	}
	return docs, nil
}

// ListAll returns every non-empty day document of the user in date order.
func (s *Store) ListAll(ctx context.Context, userID string) ([]model.DayDoc, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT year, month, day, events, updated_at
		FROM day_events
		WHERE user_id = ? AND events != '[]'
		ORDER BY year ASC, month ASC, day ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list all: %w", err)
	}
	defer rows.Close()

	docs, err := scanDocs(rows, userID)
	if err != nil {
		return nil, fmt.Errorf("list all: %w", err)
	}
	return docs, nil
}

// Day returns the list for one day; an absent day yields an empty list.
func (s *Store) Day(ctx context.Context, userID string, key calendar.DayKey) ([]string, error) {
	doc, err := s.getDoc(ctx, s.db, userID, key)
	if errors.Is(err, ErrNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	return doc.Events, nil
}

// AppendEvent adds text to the end of the day's list, creating the day
// document when it does not exist yet.
func (s *Store) AppendEvent(ctx context.Context, userID string, key calendar.DayKey, text string) (model.DayDoc, error) {
	doc, err := s.UpdateDay(ctx, userID, key, func(events []string) ([]string, error) {
		return append(events, text), nil
	})
	if err != nil {
		return model.DayDoc{}, fmt.Errorf("append event: %w", err)
	}
	return doc, nil
}

// ReplaceEvents stores events as the day's complete list. A nil list is
// stored as empty.
func (s *Store) ReplaceEvents(ctx context.Context, userID string, key calendar.DayKey, events []string) (model.DayDoc, error) {
	doc, err := s.UpdateDay(ctx, userID, key, func([]string) ([]string, error) {
		return events, nil
	})
	if err != nil {
		return model.DayDoc{}, fmt.Errorf("replace events: %w", err)
	}
	return doc, nil
}

// UpdateDay reads the day's list, passes it to change and stores the result,
// all in one transaction. An error from change aborts without writing and is
// returned wrapped.
func (s *Store) UpdateDay(ctx context.Context, userID string, key calendar.DayKey, change func([]string) ([]string, error)) (model.DayDoc, error) {
	var out model.DayDoc
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		out, err = s.updateDocTx(ctx, tx, userID, key, change)
		return err
	})
	if err != nil {
		return model.DayDoc{}, fmt.Errorf("update day: %w", err)
	}
	return out, nil
}

// ReplaceDays stores the complete list of every day in days in one
// transaction and returns how many days were written.
func (s *Store) ReplaceDays(ctx context.Context, userID string, days calendar.EventsMap) (int, error) {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for _, key := range days.SortedKeys() {
			doc := model.DayDoc{UserID: userID, Year: key.Year, Month: int(key.Month), Day: key.Day, Events: days[key]}
			if _, err := s.putDoc(ctx, tx, doc); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("replace days: %w", err)
	}
	return len(days), nil
}

func (s *Store) updateDocTx(ctx context.Context, tx *sql.Tx, userID string, key calendar.DayKey, change func([]string) ([]string, error)) (model.DayDoc, error) {
	doc, err := s.getDoc(ctx, tx, userID, key)
	switch {
	case errors.Is(err, ErrNotFound):
		doc = model.DayDoc{UserID: userID, Year: key.Year, Month: int(key.Month), Day: key.Day, Events: []string{}}
	case err != nil:
		return model.DayDoc{}, err
	}
	events, err := change(doc.Events)
	if err != nil {
		return model.DayDoc{}, err
	}
	doc.Events = events
	return s.putDoc(ctx, tx, doc)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) getDoc(ctx context.Context, q queryer, userID string, key calendar.DayKey) (model.DayDoc, error) {
	var (
		raw     string
		updated int64
	)
	err := q.QueryRowContext(ctx, `
		SELECT events, updated_at FROM day_events
		WHERE user_id = ? AND year = ? AND month = ? AND day = ?
	`, userID, key.Year, int(key.Month), key.Day).Scan(&raw, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DayDoc{}, ErrNotFound
	}
	if err != nil {
		return model.DayDoc{}, err
	}
	events, err := decodeEvents(raw)
	if err != nil {
		return model.DayDoc{}, err
	}
	return model.DayDoc{
		UserID:    userID,
		Year:      key.Year,
		Month:     int(key.Month),
		Day:       key.Day,
		Events:    events,
		UpdatedAt: fromUnix(updated),
	}, nil
}

func (s *Store) putDoc(ctx context.Context, tx *sql.Tx, doc model.DayDoc) (model.DayDoc, error) {
	if doc.Events == nil {
		doc.Events = []string{}
	}
	raw, err := json.Marshal(doc.Events)
	if err != nil {
		return model.DayDoc{}, err
	}
	doc.UpdatedAt = s.now().UTC().Truncate(time.Second)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO day_events (user_id, year, month, day, events, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, year, month, day)
		DO UPDATE SET events = excluded.events, updated_at = excluded.updated_at
	`, doc.UserID, doc.Year, doc.Month, doc.Day, string(raw), unix(doc.UpdatedAt))
	if err != nil {
		return model.DayDoc{}, err
	}
	return doc, nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func scanDocs(rows *sql.Rows, userID string) ([]model.DayDoc, error) {
	docs := make([]model.DayDoc, 0)
	for rows.Next() {
		var (
			d       model.DayDoc
			raw     string
			updated int64
		)
		if err := rows.Scan(&d.Year, &d.Month, &d.Day, &raw, &updated); err != nil {
			return nil, err
		}
		events, err := decodeEvents(raw)
		if err != nil {
			return nil, err
		}
		d.UserID = userID
		d.Events = events
		d.UpdatedAt = fromUnix(updated)
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func decodeEvents(raw string) ([]string, error) {
	events := []string{}
	if err := json.Unmarshal([]byte(raw), &events); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}
	if events == nil {
		events = []string{}
	}
	return events, nil
}
