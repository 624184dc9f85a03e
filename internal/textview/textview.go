// Package textview renders a month grid for terminals.
package textview

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"daycal/internal/calendar"
)

// cellWidth is one column: open mark, two-digit day, close mark, event mark.
const cellWidth = 5

// Month writes a cal(1)-style grid for cells followed by the upcoming list.
// Today is bracketed and days with events carry a trailing '*'.
func Month(w io.Writer, year int, month time.Month, cells []calendar.Cell, upcoming []calendar.UpcomingEntry) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "%s %d\n", month, year)

	var line strings.Builder
	for _, h := range calendar.WeekdayHeaders() {
		fmt.Fprintf(&line, " %-*s", cellWidth-1, h[:2])
	}
	writeLine(bw, line.String())

	line.Reset()
	for i, c := range cells {
		line.WriteString(renderCell(c))
		if i%7 == 6 {
			writeLine(bw, line.String())
			line.Reset()
		}
	}
	if line.Len() > 0 {
		writeLine(bw, line.String())
	}

	bw.WriteString("\nUpcoming:\n")
	if len(upcoming) == 0 {
		bw.WriteString("  (nothing upcoming)\n")
	}
	for _, e := range upcoming {
		fmt.Fprintf(bw, "  %s  %s\n", e.Date.Time(time.UTC).Format("Mon Jan _2"), e.Text)
	}

	return bw.Flush()
}

func renderCell(c calendar.Cell) string {
	if c.Blank() {
		return strings.Repeat(" ", cellWidth)
	}
	open, closing, mark := ' ', ' ', ' '
	if c.IsToday {
		open, closing = '[', ']'
	}
	if c.EventCount > 0 {
		mark = '*'
	}
	return fmt.Sprintf("%c%2d%c%c", open, c.Day, closing, mark)
}

func writeLine(w *bufio.Writer, s string) {
	w.WriteString(strings.TrimRight(s, " "))
	w.WriteByte('\n')
}
