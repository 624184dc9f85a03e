package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayKeyRoundTrip(t *testing.T) {
	tests := []struct {
		key  DayKey
		want string
	}{
		{DayKey{2024, time.March, 15}, "2024-3-15"},
		{DayKey{2024, time.December, 1}, "2024-12-1"},
		{DayKey{1999, time.January, 31}, "1999-1-31"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.key.String())
			got, err := ParseDayKey(tt.want)
			require.NoError(t, err)
			assert.Equal(t, tt.key, got)
		})
	}
}

func TestParseDayKeyAcceptsZeroPadding(t *testing.T) {
	got, err := ParseDayKey("2024-03-05")
	require.NoError(t, err)
	assert.Equal(t, DayKey{2024, time.March, 5}, got)
	assert.Equal(t, "2024-3-5", got.String())
}

func TestParseDayKeyRejectsMalformed(t *testing.T) {
	for _, s := range []string{"", "2024", "2024-3", "2024-3-15b", "2024-13-1", "2024-0-1", "2024-1-0", "2024-1-32", "a-b-c", "2024-+3-1", "2024-3-15-1"} {
		t.Run(s, func(t *testing.T) {
			_, err := ParseDayKey(s)
			assert.Error(t, err)
		})
	}
}

func TestDayKeyCompare(t *testing.T) {
	a := DayKey{2024, time.March, 15}
	assert.Equal(t, 0, a.Compare(a))
	assert.True(t, a.Before(DayKey{2024, time.March, 16}))
	assert.True(t, a.Before(DayKey{2024, time.April, 1}))
	assert.True(t, a.Before(DayKey{2025, time.January, 1}))
	assert.False(t, a.Before(DayKey{2023, time.December, 31}))
}

func TestEventsMapFromStringsSkipsUnparsableKeys(t *testing.T) {
	m, skipped := EventsMapFromStrings(map[string][]string{
		"2024-3-15":  {"Dentist"},
		"2024-3-15b": {"Broken"},
		"junk":       {"Junk"},
	})
	assert.Equal(t, EventsMap{{2024, time.March, 15}: {"Dentist"}}, m)
	assert.Equal(t, []string{"2024-3-15b", "junk"}, skipped)

	assert.Equal(t, map[string][]string{"2024-3-15": {"Dentist"}}, m.StringKeys())
}

func TestDaysInMonthLeapYears(t *testing.T) {
	assert.Equal(t, 29, DaysInMonth(2000, time.February))
	assert.Equal(t, 28, DaysInMonth(1900, time.February))
	assert.Equal(t, 29, DaysInMonth(2024, time.February))
	assert.Equal(t, 28, DaysInMonth(2023, time.February))
	assert.Equal(t, 31, DaysInMonth(2023, time.December))
	assert.Equal(t, 30, DaysInMonth(2023, time.April))
}

func TestDaysInMonthMatchesTimePackage(t *testing.T) {
	for y := MinYear; y <= MaxYear; y++ {
		for m := time.January; m <= time.December; m++ {
			want := time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
			require.Equal(t, want, DaysInMonth(y, m), "%d-%d", y, m)
		}
	}
}

func TestFirstWeekday(t *testing.T) {
	assert.Equal(t, 4, FirstWeekday(2024, time.February)) // Thursday
	assert.Equal(t, 1, FirstWeekday(2024, time.January))  // Monday
	assert.Equal(t, 0, FirstWeekday(2024, time.September))
	assert.Equal(t, 6, FirstWeekday(2024, time.June))
}

func TestBuildGridShape(t *testing.T) {
	today := DayKey{2024, time.February, 29}
	for y := 2020; y <= 2026; y++ {
		for m := time.January; m <= time.December; m++ {
			cells := BuildGrid(y, m, today, 0, nil)
			first := FirstWeekday(y, m)
			n := DaysInMonth(y, m)
			require.Len(t, cells, first+n)

			for i := 0; i < first; i++ {
				assert.True(t, cells[i].Blank())
			}
			for d := 1; d <= n; d++ {
				assert.Equal(t, d, cells[first+d-1].Day)
			}
		}
	}
}

func TestBuildGridFebruary2024(t *testing.T) {
	events := EventsMap{
		{2024, time.February, 5}:  {"Dentist", "Gym"},
		{2024, time.February, 10}: {},
		{2024, time.March, 5}:     {"Other month"},
	}
	cells := BuildGrid(2024, time.February, DayKey{2024, time.February, 29}, 5, events)
	require.Len(t, cells, 4+29)

	numbered := cells[4:]
	require.Len(t, numbered, 29)

	day29 := numbered[28]
	assert.Equal(t, 29, day29.Day)
	assert.True(t, day29.IsToday)

	day5 := numbered[4]
	assert.True(t, day5.IsSelected)
	assert.Equal(t, 2, day5.EventCount)

	assert.Equal(t, 0, numbered[9].EventCount)

	selected := 0
	for _, c := range cells {
		if c.IsSelected {
			selected++
		}
	}
	assert.Equal(t, 1, selected)
}

func TestBuildGridWeekendClasses(t *testing.T) {
	// Feb 2024 starts on Thursday: the 3rd is a Saturday, the 4th a Sunday.
	cells := BuildGrid(2024, time.February, DayKey{}, 0, nil)
	numbered := cells[4:]
	assert.Equal(t, Weekday, numbered[0].Weekend)
	assert.Equal(t, Saturday, numbered[2].Weekend)
	assert.Equal(t, Sunday, numbered[3].Weekend)
	assert.Equal(t, Weekday, numbered[4].Weekend)

	for _, c := range numbered {
		wd := time.Date(2024, time.February, c.Day, 0, 0, 0, 0, time.UTC).Weekday()
		switch wd {
		case time.Saturday:
			assert.Equal(t, Saturday, c.Weekend, "day %d", c.Day)
		case time.Sunday:
			assert.Equal(t, Sunday, c.Weekend, "day %d", c.Day)
		default:
			assert.Equal(t, Weekday, c.Weekend, "day %d", c.Day)
		}
	}
}

func TestBuildGridTodayOutsideMonth(t *testing.T) {
	tests := []struct {
		name  string
		today DayKey
		want  int
	}{
		{"inside", DayKey{2024, time.March, 3}, 1},
		{"other month", DayKey{2024, time.April, 3}, 0},
		{"other year", DayKey{2023, time.March, 3}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := 0
			for _, c := range BuildGrid(2024, time.March, tt.today, 0, nil) {
				if c.IsToday {
					n++
				}
			}
			assert.Equal(t, tt.want, n)
		})
	}
}

func TestBuildGridNoSelection(t *testing.T) {
	for _, c := range BuildGrid(2024, time.March, DayKey{}, 0, nil) {
		assert.False(t, c.IsSelected)
	}
}

func TestBuildGridIsIdempotent(t *testing.T) {
	events := EventsMap{{2024, time.March, 15}: {"Dentist"}}
	today := DayKey{2024, time.March, 1}
	a := BuildGrid(2024, time.March, today, 15, events)
	b := BuildGrid(2024, time.March, today, 15, events)
	assert.Equal(t, a, b)
}

func TestMonthNavigation(t *testing.T) {
	y, m := PrevMonth(2024, time.January)
	assert.Equal(t, 2023, y)
	assert.Equal(t, time.December, m)

	y, m = NextMonth(2024, time.December)
	assert.Equal(t, 2025, y)
	assert.Equal(t, time.January, m)

	y, m = NextMonth(2024, time.June)
	assert.Equal(t, 2024, y)
	assert.Equal(t, time.July, m)
}

func TestYears(t *testing.T) {
	ys := Years()
	require.Len(t, ys, MaxYear-MinYear+1)
	assert.Equal(t, MinYear, ys[0])
	assert.Equal(t, MaxYear, ys[len(ys)-1])
}

func TestSelectedDayEvents(t *testing.T) {
	key := DayKey{2024, time.March, 15}
	events := EventsMap{key: {"A", "B"}, {2024, time.March, 16}: {}}

	assert.Equal(t, []string{"A", "B"}, SelectedDayEvents(events, key))

	empty := SelectedDayEvents(events, DayKey{2024, time.March, 16})
	require.NotNil(t, empty)
	assert.Empty(t, empty)

	absent := SelectedDayEvents(events, DayKey{2024, time.March, 17})
	require.NotNil(t, absent)
	assert.Equal(t, empty, absent)
}

func TestUpcomingEventsDentistExample(t *testing.T) {
	events, skipped := EventsMapFromStrings(map[string][]string{
		"2024-3-15":  {"Dentist"},
		"2024-3-15b": {"ignored"},
	})
	require.Equal(t, []string{"2024-3-15b"}, skipped)

	got := UpcomingEvents(events, DayKey{2024, time.March, 1}, 5)
	assert.Equal(t, []UpcomingEntry{{Date: DayKey{2024, time.March, 15}, Text: "Dentist", Index: 0}}, got)
}

func TestUpcomingEventsOrderingAndFilter(t *testing.T) {
	events := EventsMap{
		{2024, time.March, 20}: {"late"},
		{2024, time.March, 2}:  {"past"},
		{2024, time.March, 10}: {"A", "B"},
		{2024, time.March, 9}:  {"from-day"},
	}
	got := UpcomingEvents(events, DayKey{2024, time.March, 9}, 0)

	texts := make([]string, 0, len(got))
	for _, e := range got {
		texts = append(texts, e.Text)
		assert.False(t, e.Date.Before(DayKey{2024, time.March, 9}))
	}
	assert.Equal(t, []string{"from-day", "A", "B", "late"}, texts)
	assert.Equal(t, 1, got[2].Index)
}

func TestUpcomingEventsLimit(t *testing.T) {
	events := EventsMap{
		{2024, time.March, 1}: {"1", "2", "3"},
		{2024, time.March, 2}: {"4", "5", "6"},
		{2024, time.March, 3}: {"7"},
	}
	from := DayKey{2024, time.March, 1}

	assert.Len(t, UpcomingEvents(events, from, 0), DefaultUpcomingLimit)
	assert.Len(t, UpcomingEvents(events, from, 2), 2)
	assert.Len(t, UpcomingEvents(events, from, 100), 7)

	got := UpcomingEvents(events, from, 5)
	assert.Equal(t, "5", got[4].Text)
}

func TestUpcomingEventsTruncatesAfterFiltering(t *testing.T) {
	// Ten past events must not eat into the limit.
	events := EventsMap{}
	for d := 1; d <= 10; d++ {
		events[DayKey{2024, time.January, d}] = []string{"old"}
	}
	events[DayKey{2024, time.February, 1}] = []string{"new"}

	got := UpcomingEvents(events, DayKey{2024, time.February, 1}, 5)
	require.Len(t, got, 1)
	assert.Equal(t, "new", got[0].Text)
}

func TestUpcomingEventsStableSameDay(t *testing.T) {
	events := EventsMap{{2024, time.March, 15}: {"A", "B"}}
	for i := 0; i < 20; i++ {
		got := UpcomingEvents(events, DayKey{2024, time.March, 1}, 5)
		require.Len(t, got, 2)
		assert.Equal(t, "A", got[0].Text)
		assert.Equal(t, "B", got[1].Text)
	}
}

func TestUpcomingEventsEmpty(t *testing.T) {
	assert.Empty(t, UpcomingEvents(nil, DayKey{2024, time.March, 1}, 5))
	assert.Empty(t, UpcomingEvents(EventsMap{}, DayKey{2024, time.March, 1}, 5))
}

func TestUpcomingEventsFromPastMonthEnd(t *testing.T) {
	// A reference day past the end of the month excludes the whole month.
	events := EventsMap{{2024, time.February, 29}: {"leap"}}
	assert.Empty(t, UpcomingEvents(events, DayKey{2024, time.February, 31}, 5))
}

func TestUpcomingEventsIsIdempotent(t *testing.T) {
	events := EventsMap{
		{2024, time.March, 15}: {"A"},
		{2024, time.March, 3}:  {"B", "C"},
	}
	from := DayKey{2024, time.March, 1}
	assert.Equal(t, UpcomingEvents(events, from, 5), UpcomingEvents(events, from, 5))
}
