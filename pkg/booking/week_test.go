package booking

import (
	"testing"
	"time"

	"github.com/JollyGrin/waterhouse-rsvp/pkg/grid"
)

func TestCurrentWeek(t *testing.T) {
	tests := []struct {
		date time.Time
		want string
	}{
		{time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC), "2026-W43"},
		{time.Date(2021, time.January, 3, 0, 0, 0, 0, time.UTC), "2020-W53"},
		{time.Date(2025, time.December, 29, 0, 0, 0, 0, time.UTC), "2026-W01"},
	}
	for _, tt := range tests {
		if got := CurrentWeek(tt.date); got != tt.want {
			t.Errorf("CurrentWeek(%s) = %s, want %s", tt.date.Format("2006-01-02"), got, tt.want)
		}
	}
}

func TestParseWeek(t *testing.T) {
	tests := []struct {
		in       string
		wantYear int
		wantWeek int
		wantErr  bool
	}{
		{"2026-W42", 2026, 42, false},
		{"2026-W01", 2026, 1, false},
		{"2020-W53", 2020, 53, false},
		{"2026-W53", 2026, 53, false},
		{"2025-W53", 0, 0, true},
		{"2026-W00", 0, 0, true},
		{"2026-W54", 0, 0, true},
		{"2026-42", 0, 0, true},
		{"2026-W4", 0, 0, true},
		{"2026-W42x", 0, 0, true},
		{"", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			year, week, err := ParseWeek(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseWeek(%q) expected error", tt.in)
				}
				if grid.CodeOf(err) != grid.ErrCodeBadSelection {
					t.Errorf("code = %s", grid.CodeOf(err))
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseWeek(%q) error = %v", tt.in, err)
			}
			if year != tt.wantYear || week != tt.wantWeek {
				t.Errorf("ParseWeek(%q) = %d, %d", tt.in, year, week)
			}
		})
	}
}

func TestWeekStart(t *testing.T) {
	tests := []struct {
		week string
		want string
	}{
		{"2026-W43", "2026-10-19"},
		{"2026-W01", "2025-12-29"},
		{"2020-W53", "2020-12-28"},
	}
	for _, tt := range tests {
		got, err := WeekStart(tt.week)
		if err != nil {
			t.Fatalf("WeekStart(%s) error = %v", tt.week, err)
		}
		if got.Format("2006-01-02") != tt.want {
			t.Errorf("WeekStart(%s) = %s, want %s", tt.week, got.Format("2006-01-02"), tt.want)
		}
		if DayIndex(got) != 0 {
			t.Errorf("WeekStart(%s) is not a Monday", tt.week)
		}
		if CurrentWeek(got) != tt.week {
			t.Errorf("CurrentWeek(WeekStart(%s)) = %s", tt.week, CurrentWeek(got))
		}
	}

	if DayIndex(time.Date(2026, time.October, 25, 0, 0, 0, 0, time.UTC)) != 6 {
		t.Error("Sunday should be day 6")
	}
}
