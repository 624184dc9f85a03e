package calendar

import "time"

// Year picker bounds offered by the UI.
const (
	MinYear = 1980
	MaxYear = 2050
)

// WeekendClass is a display tag for a day cell.
type WeekendClass int

const (
	Weekday WeekendClass = iota
	Saturday
	Sunday
)

func (c WeekendClass) String() string {
	switch c {
	case Saturday:
		return "saturday"
	case Sunday:
		return "sunday"
	default:
		return "weekday"
	}
}

// Cell is one slot in the month grid. Day is 0 for leading blanks.
type Cell struct {
	Day        int          `json:"day"`
	IsToday    bool         `json:"is_today"`
	IsSelected bool         `json:"is_selected"`
	Weekend    WeekendClass `json:"-"`
	EventCount int          `json:"event_count"`
}

// Blank reports whether the cell is a leading filler.
func (c Cell) Blank() bool { return c.Day == 0 }

// IsLeapYear uses the Gregorian rule.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

var monthDays = [...]int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

func DaysInMonth(year int, month time.Month) int {
	if month == time.February && IsLeapYear(year) {
		return 29
	}
	return monthDays[month-1]
}

// FirstWeekday returns the weekday of day 1, 0=Sunday..6=Saturday.
func FirstWeekday(year int, month time.Month) int {
	return int(time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).Weekday())
}

// BuildGrid lays out a month: FirstWeekday blank cells followed by one cell
// per day. selectedDay 0 means nothing is selected.
func BuildGrid(year int, month time.Month, today DayKey, selectedDay int, events EventsMap) []Cell {
	first := FirstWeekday(year, month)
	n := DaysInMonth(year, month)

	cells := make([]Cell, first, first+n)
	for d := 1; d <= n; d++ {
		key := DayKey{Year: year, Month: month, Day: d}
		cell := Cell{
			Day:        d,
			IsToday:    key == today,
			IsSelected: selectedDay != 0 && selectedDay == d,
			EventCount: len(events[key]),
		}
		switch (first + d - 1) % 7 {
		case 0:
			cell.Weekend = Sunday
		case 6:
			cell.Weekend = Saturday
		}
		cells = append(cells, cell)
	}
	return cells
}

// PrevMonth steps back one month, wrapping the year at January.
func PrevMonth(year int, month time.Month) (int, time.Month) {
	if month == time.January {
		return year - 1, time.December
	}
	return year, month - 1
}

// NextMonth steps forward one month, wrapping the year at December.
func NextMonth(year int, month time.Month) (int, time.Month) {
	if month == time.December {
		return year + 1, time.January
	}
	return year, month + 1
}

// WeekdayHeaders are the grid column titles, Sunday first.
func WeekdayHeaders() []string {
	return []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}
}

// Years lists the selectable years, MinYear..MaxYear.
func Years() []int {
	ys := make([]int, 0, MaxYear-MinYear+1)
	for y := MinYear; y <= MaxYear; y++ {
		ys = append(ys, y)
	}
	return ys
}
