// Package calendar holds the pure date-grid and event aggregation logic
// behind the month view. Nothing in here does I/O or keeps state; callers
// pass in the events they loaded and get fresh derived values back.
package calendar

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DayKey identifies one calendar day. Month is 1-based.
type DayKey struct {
	Year  int
	Month time.Month
	Day   int
}

// DayKeyOf returns the key for t in t's own location.
func DayKeyOf(t time.Time) DayKey {
	y, m, d := t.Date()
	return DayKey{Year: y, Month: m, Day: d}
}

// String encodes the key as "year-month-day" without zero padding,
// e.g. "2024-3-15".
func (k DayKey) String() string {
	return strconv.Itoa(k.Year) + "-" + strconv.Itoa(int(k.Month)) + "-" + strconv.Itoa(k.Day)
}

// ParseDayKey decodes the String form. Components must be decimal integers,
// month 1-12 and day 1-31. Zero padding is accepted on input.
func ParseDayKey(s string) (DayKey, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return DayKey{}, fmt.Errorf("calendar: malformed day key %q", s)
	}
	var nums [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || p == "" || p[0] == '+' {
			return DayKey{}, fmt.Errorf("calendar: malformed day key %q", s)
		}
		nums[i] = n
	}
	k := DayKey{Year: nums[0], Month: time.Month(nums[1]), Day: nums[2]}
	if k.Month < time.January || k.Month > time.December {
		return DayKey{}, fmt.Errorf("calendar: month out of range in %q", s)
	}
	if k.Day < 1 || k.Day > 31 {
		return DayKey{}, fmt.Errorf("calendar: day out of range in %q", s)
	}
	return k, nil
}

// Compare orders keys by year, month, then day. It returns -1, 0 or +1.
func (k DayKey) Compare(o DayKey) int {
	switch {
	case k.Year != o.Year:
		return cmpInt(k.Year, o.Year)
	case k.Month != o.Month:
		return cmpInt(int(k.Month), int(o.Month))
	default:
		return cmpInt(k.Day, o.Day)
	}
}

func (k DayKey) Before(o DayKey) bool { return k.Compare(o) < 0 }

// Time returns midnight of the day in loc.
func (k DayKey) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(k.Year, k.Month, k.Day, 0, 0, 0, 0, loc)
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// EventsMap maps a day to its ordered list of event texts. An empty list
// means the same as no entry.
type EventsMap map[DayKey][]string

// EventsMapFromStrings converts a string-keyed map (as sent over the wire)
// into an EventsMap. Keys that do not parse are skipped rather than failing
// the whole conversion; they are returned sorted so callers can log them.
func EventsMapFromStrings(in map[string][]string) (EventsMap, []string) {
	out := make(EventsMap, len(in))
	var skipped []string
	for s, list := range in {
		k, err := ParseDayKey(s)
		if err != nil {
			skipped = append(skipped, s)
			continue
		}
		out[k] = list
	}
	sort.Strings(skipped)
	return out, skipped
}

// StringKeys is the inverse of EventsMapFromStrings.
func (m EventsMap) StringKeys() map[string][]string {
	out := make(map[string][]string, len(m))
	for k, list := range m {
		out[k.String()] = list
	}
	return out
}

// SortedKeys returns the map keys in date order.
func (m EventsMap) SortedKeys() []DayKey {
	keys := make([]DayKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })
	return keys
}
