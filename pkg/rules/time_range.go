package rules

import "github.com/JollyGrin/waterhouse-rsvp/pkg/grid"

// TimeRangeRule governs a time-of-day window, e.g. 1-hour increments before
// 10:00. It only applies to spans touching the window, and the engine tries
// it before other rules when a specific hour is resolved.
type TimeRangeRule struct {
	scope
	hourRange
	increment int
}

// NewTimeRangeRule creates a window rule growing in increment-hour blocks.
func NewTimeRangeRule(s Scope, startHour, endHour, increment int) *TimeRangeRule {
	return &TimeRangeRule{
		scope:     newScope(s),
		hourRange: hourRange{startHour: startHour, endHour: endHour},
		increment: increment,
	}
}

// Kind returns KindTimeRange.
func (r *TimeRangeRule) Kind() Kind { return KindTimeRange }

// Increment returns the block size.
func (r *TimeRangeRule) Increment() int { return r.increment }

// Applies requires scope membership and overlap between [startHour, endHour]
// and the window.
func (r *TimeRangeRule) Applies(day, resource, startHour, endHour int) bool {
	return r.Matches(day, resource) && startHour < r.endHour && endHour >= r.startHour
}

// Validate requires the span length to be a multiple of the increment.
func (r *TimeRangeRule) Validate(day, resource, startHour, endHour int) bool {
	if !r.Applies(day, resource, startHour, endHour) || r.increment <= 0 {
		return true
	}
	return (endHour-startHour+1)%r.increment == 0
}

// CalculateSelection proposes up to one increment of free hours from the
// click.
func (r *TimeRangeRule) CalculateSelection(day, hour, resource int, isBooked grid.BookedFunc) grid.Selection {
	if !grid.ValidHour(hour) {
		return grid.Empty()
	}
	if !r.Applies(day, resource, hour, hour) || r.increment <= 1 {
		return grid.SingleHour(day, hour, resource)
	}
	end := forwardRun(day, resource, hour, r.increment, r.hi(), isBooked)
	return grid.NewSelection(day, resource, hour, end)
}

// ExtendSelection grows sel by one increment block inside the window, or by
// one hour when the increment is 1.
func (r *TimeRangeRule) ExtendSelection(sel grid.Selection, newHour int, isBooked grid.BookedFunc) grid.Selection {
	if sel.IsEmpty() || !grid.ValidHour(newHour) {
		return sel
	}
	if !r.Applies(sel.Day, sel.Resource, min(sel.Start, newHour), max(sel.End, newHour)) {
		return sel
	}
	if r.increment <= 1 {
		return adjacentGrowth(sel, newHour, isBooked)
	}
	return r.growByBlock(sel, newHour, r.increment, isBooked)
}
