package web

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"daycal/internal/auth"
	"daycal/internal/calendar"
)

// monthQuery is the month being viewed plus the selected day (0 for none).
type monthQuery struct {
	Year  int
	Month time.Month
	Day   int
}

type monthRef struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

type upcomingDTO struct {
	Date  string `json:"date"`
	Text  string `json:"text"`
	Index int    `json:"index"`
}

type monthOption struct {
	Value int
	Name  string
}

// monthView is everything the month page shows. The JSON form is served by
// /api/calendar; the HTML template also reads the json:"-" fields.
type monthView struct {
	Year           int                 `json:"year"`
	Month          int                 `json:"month"`
	MonthName      string              `json:"month_name"`
	Today          string              `json:"today"`
	SelectedDay    int                 `json:"selected_day,omitempty"`
	Weekdays       []string            `json:"weekdays"`
	Cells          []calendar.Cell     `json:"cells"`
	Events         map[string][]string `json:"events"`
	SelectedEvents []string            `json:"selected_events"`
	Upcoming       []upcomingDTO       `json:"upcoming"`
	Prev           monthRef            `json:"prev"`
	Next           monthRef            `json:"next"`
	Authenticated  bool                `json:"authenticated"`
	Username       string              `json:"username,omitempty"`

	Weeks  [][]calendar.Cell `json:"-"`
	Years  []int             `json:"-"`
	Months []monthOption     `json:"-"`
}

func (s *Server) today() calendar.DayKey {
	return calendar.DayKeyOf(s.now().In(s.cfg.Location()))
}

// parseMonthQuery reads year, month (1-12) and day from q, or a single
// date=Y-M-D. Missing year or month default to today's.
func (s *Server) parseMonthQuery(q url.Values) (monthQuery, error) {
	today := s.today()
	mq := monthQuery{Year: today.Year, Month: today.Month}

	if v := q.Get("date"); v != "" {
		k, err := calendar.ParseDayKey(v)
		if err == nil {
			k, err = dayKey(k.Year, int(k.Month), k.Day)
		}
		if err != nil {
			return mq, fmt.Errorf("invalid date %q", v)
		}
		return monthQuery{Year: k.Year, Month: k.Month, Day: k.Day}, nil
	}

	if v := q.Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1 || y > 9999 {
			return mq, fmt.Errorf("invalid year %q", v)
		}
		mq.Year = y
	}
	if v := q.Get("month"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			return mq, fmt.Errorf("invalid month %q", v)
		}
		mq.Month = time.Month(m)
	}
	if v := q.Get("day"); v != "" {
		d, err := strconv.Atoi(v)
		if err != nil || d < 0 || d > calendar.DaysInMonth(mq.Year, mq.Month) {
			return mq, fmt.Errorf("invalid day %q", v)
		}
		mq.Day = d
	}
	return mq, nil
}

// dayKey validates a (year, month, day) triple from a request.
func dayKey(year, month, day int) (calendar.DayKey, error) {
	if year < 1 || year > 9999 {
		return calendar.DayKey{}, fmt.Errorf("invalid year %d", year)
	}
	if month < 1 || month > 12 {
		return calendar.DayKey{}, fmt.Errorf("invalid month %d", month)
	}
	if day < 1 || day > calendar.DaysInMonth(year, time.Month(month)) {
		return calendar.DayKey{}, fmt.Errorf("invalid day %d", day)
	}
	return calendar.DayKey{Year: year, Month: time.Month(month), Day: day}, nil
}

// buildMonthView loads the caller's events for the month and runs the grid
// builder and aggregator over them. Anonymous callers get an empty month.
func (s *Server) buildMonthView(ctx context.Context, mq monthQuery) (monthView, error) {
	today := s.today()
	id, authed := auth.FromContext(ctx)

	events := calendar.EventsMap{}
	if authed {
		var err error
		events, err = s.store.ListMonth(ctx, id.UserID, mq.Year, mq.Month)
		if err != nil {
			return monthView{}, err
		}
	}

	cells := calendar.BuildGrid(mq.Year, mq.Month, today, mq.Day, events)

	selected := []string{}
	if mq.Day != 0 {
		selected = calendar.SelectedDayEvents(events, calendar.DayKey{Year: mq.Year, Month: mq.Month, Day: mq.Day})
	}

	// The upcoming list starts at today's day number within the viewed month.
	from := calendar.DayKey{Year: mq.Year, Month: mq.Month, Day: today.Day}
	entries := calendar.UpcomingEvents(events, from, s.cfg.UpcomingLimit)
	upcoming := make([]upcomingDTO, 0, len(entries))
	for _, e := range entries {
		upcoming = append(upcoming, upcomingDTO{Date: e.Date.String(), Text: e.Text, Index: e.Index})
	}

	py, pm := calendar.PrevMonth(mq.Year, mq.Month)
	ny, nm := calendar.NextMonth(mq.Year, mq.Month)

	months := make([]monthOption, 0, 12)
	for m := time.January; m <= time.December; m++ {
		months = append(months, monthOption{Value: int(m), Name: m.String()})
	}

	return monthView{
		Year:           mq.Year,
		Month:          int(mq.Month),
		MonthName:      mq.Month.String(),
		Today:          today.String(),
		SelectedDay:    mq.Day,
		Weekdays:       calendar.WeekdayHeaders(),
		Cells:          cells,
		Events:         events.StringKeys(),
		SelectedEvents: selected,
		Upcoming:       upcoming,
		Prev:           monthRef{Year: py, Month: int(pm)},
		Next:           monthRef{Year: ny, Month: int(nm)},
		Authenticated:  authed,
		Username:       id.Username,
		Weeks:          weeks(cells),
		Years:          calendar.Years(),
		Months:         months,
	}, nil
}

// weeks splits cells into rows of seven, padding the last row with blanks.
func weeks(cells []calendar.Cell) [][]calendar.Cell {
	var out [][]calendar.Cell
	for i := 0; i < len(cells); i += 7 {
		row := make([]calendar.Cell, 7)
		copy(row, cells[i:min(i+7, len(cells))])
		out = append(out, row)
	}
	return out
}
