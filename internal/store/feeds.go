package store

import (
	"context"
	"database/sql"
	"fmt"

	"daycal/internal/calendar"
)

// ImportOccurrence appends text to the day of a feed occurrence the first
// time the (source, instance) pair is seen for the user. The ledger row and
// the append commit together, so a failed append is retried on the next
// import. It reports whether the occurrence was new.
func (s *Store) ImportOccurrence(ctx context.Context, userID, sourceID, instanceKey string, key calendar.DayKey, text string) (bool, error) {
	var fresh bool
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO feed_imports (user_id, source_id, instance_key, imported_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT DO NOTHING
		`, userID, sourceID, instanceKey, unix(s.now()))
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil || n == 0 {
			return err
		}
		_, err = s.updateDocTx(ctx, tx, userID, key, func(events []string) ([]string, error) {
			return append(events, text), nil
		})
		if err != nil {
			return err
		}
		fresh = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("import occurrence: %w", err)
	}
	return fresh, nil
}
