package calendar

// DefaultUpcomingLimit is how many entries the sidebar shows.
const DefaultUpcomingLimit = 5

// UpcomingEntry is one event text with its day and its position in that
// day's list.
type UpcomingEntry struct {
	Date  DayKey
	Text  string
	Index int
}

// SelectedDayEvents returns the list for key, or an empty slice.
func SelectedDayEvents(events EventsMap, key DayKey) []string {
	list := events[key]
	if len(list) == 0 {
		return []string{}
	}
	return list
}

// UpcomingEvents flattens events into one entry per text, orders them by
// date (same-day entries keep list order), drops anything before from and
// returns at most limit entries. limit <= 0 uses DefaultUpcomingLimit.
func UpcomingEvents(events EventsMap, from DayKey, limit int) []UpcomingEntry {
	if limit <= 0 {
		limit = DefaultUpcomingLimit
	}

	// Walking keys in date order and appending each list in order gives the
	// same result as a stable sort over the flattened entries.
	all := make([]UpcomingEntry, 0)
	for _, key := range events.SortedKeys() {
		for i, text := range events[key] {
			all = append(all, UpcomingEntry{Date: key, Text: text, Index: i})
		}
	}

	out := make([]UpcomingEntry, 0, limit)
	for _, e := range all {
		if e.Date.Before(from) {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out
}
