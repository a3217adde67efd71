package grid

import "fmt"

const (
	// HoursPerDay is the number of hour columns on the grid.
	HoursPerDay = 24

	// DaysPerWeek is the number of day rows on the grid.
	DaysPerWeek = 7

	// FirstHour and LastHour bound every selection.
	FirstHour = 0
	LastHour  = HoursPerDay - 1
)

// BookedFunc reports whether a grid cell is already taken. It must be pure for
// the duration of a single engine call.
type BookedFunc func(day, hour, resource int) bool

// NeverBooked is a BookedFunc for an empty grid.
func NeverBooked(int, int, int) bool { return false }

// Selection is a contiguous, inclusive hour span on one resource and day.
// Selections are values; operations that change a span return a new one.
type Selection struct {
	Day      int `json:"day" yaml:"day"`
	Resource int `json:"resource" yaml:"resource"`
	Start    int `json:"start_hour" yaml:"start_hour"`
	End      int `json:"end_hour" yaml:"end_hour"`
}

// NewSelection returns the span [start, end] on the given day and resource.
func NewSelection(day, resource, start, end int) Selection {
	return Selection{Day: day, Resource: resource, Start: start, End: end}
}

// SingleHour returns a one-hour selection at hour.
func SingleHour(day, hour, resource int) Selection {
	return Selection{Day: day, Resource: resource, Start: hour, End: hour}
}

// Empty returns the explicit "no selection" value.
func Empty() Selection {
	return Selection{Day: -1, Resource: -1, Start: -1, End: -1}
}

// IsEmpty reports whether s is the empty selection.
func (s Selection) IsEmpty() bool {
	return s == Empty()
}

// Len returns the number of hours covered by s.
func (s Selection) Len() int {
	if s.IsEmpty() || s.End < s.Start {
		return 0
	}
	return s.End - s.Start + 1
}

// Contains reports whether hour falls inside s.
func (s Selection) Contains(hour int) bool {
	return !s.IsEmpty() && hour >= s.Start && hour <= s.End
}

// InBounds reports whether s satisfies 0 <= Start <= End <= 23 and has
// non-negative day and resource indices.
func (s Selection) InBounds() bool {
	return s.Day >= 0 && s.Resource >= 0 &&
		s.Start >= FirstHour && s.Start <= s.End && s.End <= LastHour
}

// WithStart returns a copy of s starting at hour.
func (s Selection) WithStart(hour int) Selection {
	s.Start = hour
	return s
}

// WithEnd returns a copy of s ending at hour.
func (s Selection) WithEnd(hour int) Selection {
	s.End = hour
	return s
}

// Overlaps reports whether s and o share at least one cell.
func (s Selection) Overlaps(o Selection) bool {
	if s.IsEmpty() || o.IsEmpty() {
		return false
	}
	return s.Day == o.Day && s.Resource == o.Resource && s.Start <= o.End && o.Start <= s.End
}

// String renders s for logs and CLI output.
func (s Selection) String() string {
	if s.IsEmpty() {
		return "<empty>"
	}
	return fmt.Sprintf("day=%d %s %02d:00-%02d:00", s.Day, ResourceLabel(s.Resource), s.Start, s.End+1)
}

// ValidHour reports whether hour is a grid column.
func ValidHour(hour int) bool {
	return hour >= FirstHour && hour <= LastHour
}

// AllFree reports whether every hour in [from, to] is free on day/resource.
// An inverted or out-of-grid range is never free.
func AllFree(isBooked BookedFunc, day, resource, from, to int) bool {
	if from > to || !ValidHour(from) || !ValidHour(to) {
		return false
	}
	for h := from; h <= to; h++ {
		if isBooked(day, h, resource) {
			return false
		}
	}
	return true
}

// FreeWithin reports whether no hour of s is booked.
func (s Selection) FreeWithin(isBooked BookedFunc) bool {
	return AllFree(isBooked, s.Day, s.Resource, s.Start, s.End)
}
