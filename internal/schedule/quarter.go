package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Window identifies a contiguous 3-month scheduling span within a year.
// It is the unit of scope for generation, reconciliation, caching, and
// viewer registration.
type Window struct {
	Quarter int // 1..4
	Year    int
}

var quarterPattern = regexp.MustCompile(`^Q([1-4])-(\d{4})$`)

// ParseWindow parses a quarter identifier of the form "Q4-2025".
func ParseWindow(s string) (Window, error) {
	m := quarterPattern.FindStringSubmatch(s)
	if m == nil {
		return Window{}, fmt.Errorf("invalid quarter identifier %q (want e.g. \"Q4-2025\")", s)
	}
	q, _ := strconv.Atoi(m[1])
	year, _ := strconv.Atoi(m[2])
	return Window{Quarter: q, Year: year}, nil
}

// WindowOf returns the window containing the given date.
func WindowOf(date time.Time) Window {
	return Window{
		Quarter: (int(date.Month())-1)/3 + 1,
		Year:    date.Year(),
	}
}

func (w Window) String() string {
	return fmt.Sprintf("Q%d-%d", w.Quarter, w.Year)
}

// Months returns the first and last month of the window.
func (w Window) Months() (time.Month, time.Month) {
	start := time.Month((w.Quarter-1)*3 + 1)
	return start, start + 2
}

// Start returns midnight on the first day of the window in loc.
func (w Window) Start(loc *time.Location) time.Time {
	start, _ := w.Months()
	return time.Date(w.Year, start, 1, 0, 0, 0, 0, loc)
}

// End returns midnight on the last day of the window in loc.
func (w Window) End(loc *time.Location) time.Time {
	_, end := w.Months()
	// Day zero of the following month is the last day of end.
	return time.Date(w.Year, end+1, 0, 0, 0, 0, 0, loc)
}

// Contains reports whether the given date falls inside the window,
// comparing by calendar date.
func (w Window) Contains(date time.Time) bool {
	return WindowOf(date) == w
}
