package ics

import (
	"strconv"
	"time"

	ical "github.com/arran4/golang-ical"

	"daycal/internal/model"
)

const ProductID = "-//daycal//daycal//EN"

// Export renders day documents as a VCALENDAR with one all-day VEVENT per
// event text. UIDs are "{daykey}-{index}@daycal", so they change when a
// list is reordered; subscribers treat that as delete + add.
func Export(calName string, docs []model.DayDoc, stamp time.Time) string {
	cal := ical.NewCalendar()
	cal.SetProductId(ProductID)
	cal.SetMethod(ical.MethodPublish)
	if calName != "" {
		cal.SetName(calName)
		cal.SetXWRCalName(calName)
	}

	stamp = stamp.UTC()
	for _, doc := range docs {
		key := doc.Key()
		day := key.Time(time.UTC)
		for i, text := range doc.Events {
			ev := cal.AddEvent(key.String() + "-" + strconv.Itoa(i) + "@daycal")
			ev.SetDtStampTime(stamp)
			ev.SetAllDayStartAt(day)
			ev.SetAllDayEndAt(day.AddDate(0, 0, 1))
			ev.SetSummary(text)
		}
	}
	return cal.Serialize()
}
