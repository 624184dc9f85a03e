package store

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daycal/internal/calendar"
	"daycal/internal/model"
)

// createTestStore opens a fresh database in a temp dir with a fixed clock.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	s.SetClock(func() time.Time { return time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC) })
	t.Cleanup(func() { s.Close() })
	return s
}

func createTestUser(t *testing.T, s *Store, name string) model.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), name, "hash-"+name)
	require.NoError(t, err)
	return u
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	var version int
	require.NoError(t, s2.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)

	var mode string
	require.NoError(t, s2.db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestAppendEventCreatesAndPushes(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	u := createTestUser(t, s, "alice")
	key := calendar.DayKey{Year: 2024, Month: time.March, Day: 15}

	doc, err := s.AppendEvent(ctx, u.ID, key, "Dentist")
	require.NoError(t, err)
	assert.Equal(t, []string{"Dentist"}, doc.Events)
	assert.Equal(t, 3, doc.Month)

	doc, err = s.AppendEvent(ctx, u.ID, key, "Dentist")
	require.NoError(t, err)
	assert.Equal(t, []string{"Dentist", "Dentist"}, doc.Events, "no dedup")

	got, err := s.Day(ctx, u.ID, key)
	require.NoError(t, err)
	assert.Equal(t, []string{"Dentist", "Dentist"}, got)
}

func TestReplaceEvents(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	u := createTestUser(t, s, "alice")
	key := calendar.DayKey{Year: 2024, Month: time.March, Day: 15}

	_, err := s.AppendEvent(ctx, u.ID, key, "A")
	require.NoError(t, err)
	_, err = s.AppendEvent(ctx, u.ID, key, "B")
	require.NoError(t, err)

	doc, err := s.ReplaceEvents(ctx, u.ID, key, []string{"B", "C"})
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "C"}, doc.Events)

	// Replace on a day that has no document yet creates it.
	other := calendar.DayKey{Year: 2024, Month: time.March, Day: 16}
	doc, err = s.ReplaceEvents(ctx, u.ID, other, []string{"new"})
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, doc.Events)

	doc, err = s.ReplaceEvents(ctx, u.ID, other, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{}, doc.Events)
}

func TestListMonthFiltersByUserAndMonth(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	alice := createTestUser(t, s, "alice")
	bob := createTestUser(t, s, "bob")

	mustAppend := func(u model.User, y int, m time.Month, d int, text string) {
		_, err := s.AppendEvent(ctx, u.ID, calendar.DayKey{Year: y, Month: m, Day: d}, text)
		require.NoError(t, err)
	}
	mustAppend(alice, 2024, time.March, 15, "Dentist")
	mustAppend(alice, 2024, time.March, 1, "Rent")
	mustAppend(alice, 2024, time.April, 1, "Fools")
	mustAppend(alice, 2023, time.March, 15, "Last year")
	mustAppend(bob, 2024, time.March, 15, "Bob's")

	_, err := s.ReplaceEvents(ctx, alice.ID, calendar.DayKey{Year: 2024, Month: time.March, Day: 20}, []string{})
	require.NoError(t, err)

	got, err := s.ListMonth(ctx, alice.ID, 2024, time.March)
	require.NoError(t, err)
	assert.Equal(t, calendar.EventsMap{
		{Year: 2024, Month: time.March, Day: 15}: {"Dentist"},
		{Year: 2024, Month: time.March, Day: 1}:  {"Rent"},
	}, got)

	docs, err := s.MonthDocs(ctx, alice.ID, 2024, time.March)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, []int{1, 15, 20}, []int{docs[0].Day, docs[1].Day, docs[2].Day})

	empty, err := s.ListMonth(ctx, alice.ID, 2025, time.January)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestListAllSkipsEmptyDays(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	u := createTestUser(t, s, "alice")

	_, err := s.AppendEvent(ctx, u.ID, calendar.DayKey{Year: 2024, Month: time.May, Day: 2}, "B")
	require.NoError(t, err)
	_, err = s.AppendEvent(ctx, u.ID, calendar.DayKey{Year: 2023, Month: time.May, Day: 2}, "A")
	require.NoError(t, err)
	_, err = s.ReplaceEvents(ctx, u.ID, calendar.DayKey{Year: 2024, Month: time.June, Day: 2}, nil)
	require.NoError(t, err)

	docs, err := s.ListAll(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, 2023, docs[0].Year)
	assert.Equal(t, 2024, docs[1].Year)
}

func TestDayAbsentIsEmpty(t *testing.T) {
	s := createTestStore(t)
	got, err := s.Day(context.Background(), "nobody", calendar.DayKey{Year: 2024, Month: time.March, Day: 1})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestUsers(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	alice := createTestUser(t, s, "alice")
	assert.NotEmpty(t, alice.ID)

	_, err := s.CreateUser(ctx, "alice", "other")
	assert.ErrorIs(t, err, ErrUserExists)

	got, err := s.UserByName(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, alice, got)

	got, err = s.UserByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)

	_, err = s.UserByName(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.SetPassword(ctx, "alice", "new-hash"))
	got, err = s.UserByName(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "new-hash", got.PasswordHash)
	assert.ErrorIs(t, s.SetPassword(ctx, "nobody", "x"), ErrNotFound)

	createTestUser(t, s, "aaron")
	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "aaron", users[0].Username)
}

func TestSessions(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	u := createTestUser(t, s, "alice")

	sess, err := s.CreateSession(ctx, "tok-1", u.ID, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, sess.CreatedAt.Add(time.Hour), sess.ExpiresAt)

	got, gotSess, err := s.SessionUser(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, sess, gotSess)

	_, _, err = s.SessionUser(ctx, "unknown")
	assert.ErrorIs(t, err, ErrNotFound)

	// Move the clock past expiry.
	s.SetClock(func() time.Time { return time.Date(2024, time.March, 10, 14, 0, 0, 0, time.UTC) })
	_, _, err = s.SessionUser(ctx, "tok-1")
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := s.PurgeExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.CreateSession(ctx, "tok-2", u.ID, time.Hour)
	require.NoError(t, err)
	require.NoError(t, s.DeleteSession(ctx, "tok-2"))
	require.NoError(t, s.DeleteSession(ctx, "tok-2"))
	_, _, err = s.SessionUser(ctx, "tok-2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestImportOccurrence(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	u := createTestUser(t, s, "alice")
	day := calendar.DayKey{Year: 2024, Month: time.March, Day: 15}

	first, err := s.ImportOccurrence(ctx, u.ID, "holidays", "2024-03-15T00:00:00Z", day, "Holiday")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := s.ImportOccurrence(ctx, u.ID, "holidays", "2024-03-15T00:00:00Z", day, "Holiday")
	require.NoError(t, err)
	assert.False(t, again)

	other, err := s.ImportOccurrence(ctx, u.ID, "work", "2024-03-15T00:00:00Z", day, "Standup")
	require.NoError(t, err)
	assert.True(t, other)

	got, err := s.Day(ctx, u.ID, day)
	require.NoError(t, err)
	assert.Equal(t, []string{"Holiday", "Standup"}, got)
}

func TestImportOccurrenceRollsBackLedgerOnFailedAppend(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	u := createTestUser(t, s, "alice")

	// Day 40 violates the day_events CHECK after the ledger row is inserted.
	_, err := s.ImportOccurrence(ctx, u.ID, "work", "gym@1", calendar.DayKey{Year: 2024, Month: time.March, Day: 40}, "Gym")
	require.Error(t, err)

	day := calendar.DayKey{Year: 2024, Month: time.March, Day: 12}
	fresh, err := s.ImportOccurrence(ctx, u.ID, "work", "gym@1", day, "Gym")
	require.NoError(t, err)
	assert.True(t, fresh, "failed import must not be recorded")

	got, err := s.Day(ctx, u.ID, day)
	require.NoError(t, err)
	assert.Equal(t, []string{"Gym"}, got)
}

func TestUpdateDay(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	u := createTestUser(t, s, "alice")
	day := calendar.DayKey{Year: 2024, Month: time.March, Day: 15}

	doc, err := s.UpdateDay(ctx, u.ID, day, func(events []string) ([]string, error) {
		assert.Empty(t, events)
		return append(events, "Dentist", "Gym"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Dentist", "Gym"}, doc.Events)

	errStop := errors.New("stop")
	_, err = s.UpdateDay(ctx, u.ID, day, func([]string) ([]string, error) {
		return nil, errStop
	})
	assert.ErrorIs(t, err, errStop)

	got, err := s.Day(ctx, u.ID, day)
	require.NoError(t, err)
	assert.Equal(t, []string{"Dentist", "Gym"}, got, "aborted change writes nothing")
}

func TestUpdateDaySerializesConcurrentChanges(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	u := createTestUser(t, s, "alice")
	day := calendar.DayKey{Year: 2024, Month: time.March, Day: 15}

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.UpdateDay(ctx, u.ID, day, func(events []string) ([]string, error) {
				return append(events, strconv.Itoa(i)), nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := s.Day(ctx, u.ID, day)
	require.NoError(t, err)
	assert.Len(t, got, 20)
}

func TestReplaceDays(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	u := createTestUser(t, s, "alice")

	_, err := s.AppendEvent(ctx, u.ID, calendar.DayKey{Year: 2024, Month: time.March, Day: 1}, "old")
	require.NoError(t, err)

	n, err := s.ReplaceDays(ctx, u.ID, calendar.EventsMap{
		{Year: 2024, Month: time.March, Day: 1}:  {"new"},
		{Year: 2024, Month: time.March, Day: 20}: {"a", "b"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	month, err := s.ListMonth(ctx, u.ID, 2024, time.March)
	require.NoError(t, err)
	assert.Equal(t, calendar.EventsMap{
		{Year: 2024, Month: time.March, Day: 1}:  {"new"},
		{Year: 2024, Month: time.March, Day: 20}: {"a", "b"},
	}, month)
}
