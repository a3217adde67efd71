package booking

import (
	"fmt"
	"time"

	"github.com/JollyGrin/waterhouse-rsvp/pkg/grid"
)

// CurrentWeek returns the ISO week of t as "YYYY-Www".
func CurrentWeek(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

// ParseWeek splits an ISO week label into year and week number.
func ParseWeek(s string) (year, week int, err error) {
	var rest string
	n, _ := fmt.Sscanf(s, "%4d-W%2d%s", &year, &week, &rest)
	if n != 2 || len(s) != len("2006-W01") {
		return 0, 0, badWeek(s)
	}
	if year < 1 || week < 1 || week > 53 {
		return 0, 0, badWeek(s)
	}
	// December 28th always falls in the last ISO week.
	if week == 53 {
		if _, last := time.Date(year, time.December, 28, 0, 0, 0, 0, time.UTC).ISOWeek(); last != 53 {
			return 0, 0, badWeek(s)
		}
	}
	return year, week, nil
}

// WeekStart returns the Monday that begins the ISO week label.
func WeekStart(s string) (time.Time, error) {
	year, week, err := ParseWeek(s)
	if err != nil {
		return time.Time{}, err
	}
	// January 4th is always in week 1.
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	monday := jan4.AddDate(0, 0, -((int(jan4.Weekday()) + 6) % 7))
	return monday.AddDate(0, 0, (week-1)*7), nil
}

// DayIndex maps t to the grid's day column, Monday being 0.
func DayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func badWeek(s string) error {
	return grid.NewInvalidError(fmt.Sprintf("invalid week %q, want YYYY-Www", s), nil).
		WithCode(grid.ErrCodeBadSelection)
}
