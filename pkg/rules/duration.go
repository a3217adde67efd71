package rules

import "github.com/JollyGrin/waterhouse-rsvp/pkg/grid"

// hourRange is the allowed [start, end) range shared by the duration variants
// and TimeRangeRule.
type hourRange struct {
	startHour int
	endHour   int
}

// lo and hi clamp the range to the grid.
func (hr hourRange) lo() int { return max(hr.startHour, grid.FirstHour) }
func (hr hourRange) hi() int { return min(hr.endHour, grid.HoursPerDay) }

func (hr hourRange) holds(startHour, endHour int) bool {
	return startHour >= hr.startHour && endHour < hr.endHour
}

// StartHour returns the first hour of the range.
func (hr hourRange) StartHour() int { return hr.startHour }

// EndHour returns the exclusive end of the range.
func (hr hourRange) EndHour() int { return hr.endHour }

// FixedDurationRule only allows blocks of exactly duration hours inside
// [startHour, endHour), e.g. 4-hour weekday blocks between 10 and 22.
type FixedDurationRule struct {
	scope
	hourRange
	duration int
}

// NewFixedDurationRule creates a fixed block rule. A non-positive duration
// makes the rule behave like a BaseRule.
func NewFixedDurationRule(s Scope, startHour, endHour, duration int) *FixedDurationRule {
	return &FixedDurationRule{
		scope:     newScope(s),
		hourRange: hourRange{startHour: startHour, endHour: endHour},
		duration:  duration,
	}
}

// Kind returns KindFixedDuration.
func (r *FixedDurationRule) Kind() Kind { return KindFixedDuration }

// Duration returns the block length.
func (r *FixedDurationRule) Duration() int { return r.duration }

// Applies reports scope membership.
func (r *FixedDurationRule) Applies(day, resource, _, _ int) bool {
	return r.Matches(day, resource)
}

// Validate requires the span to sit inside the range and last duration hours.
func (r *FixedDurationRule) Validate(day, resource, startHour, endHour int) bool {
	if !r.Applies(day, resource, startHour, endHour) || r.duration <= 0 {
		return true
	}
	return r.holds(startHour, endHour) && endHour-startHour+1 == r.duration
}

// CalculateSelection fills forward from the click. A short run moves its start
// back only when the hours before it complete the full duration.
func (r *FixedDurationRule) CalculateSelection(day, hour, resource int, isBooked grid.BookedFunc) grid.Selection {
	if !grid.ValidHour(hour) {
		return grid.Empty()
	}
	single := grid.SingleHour(day, hour, resource)
	if !r.Matches(day, resource) || r.duration <= 0 {
		return single
	}

	start := max(hour, r.lo())
	if start >= r.hi() || isBooked(day, start, resource) {
		return single
	}
	end := forwardRun(day, resource, start, r.duration, r.hi(), isBooked)

	if want := end - r.duration + 1; want < start && want >= r.lo() &&
		grid.AllFree(isBooked, day, resource, want, start-1) {
		start = want
	}
	return grid.NewSelection(day, resource, start, end)
}

// ExtendSelection adds one duration block before or after sel. The block
// must contain newHour.
func (r *FixedDurationRule) ExtendSelection(sel grid.Selection, newHour int, isBooked grid.BookedFunc) grid.Selection {
	if sel.IsEmpty() || !grid.ValidHour(newHour) || !r.Matches(sel.Day, sel.Resource) {
		return sel
	}
	if r.duration <= 0 {
		return adjacentGrowth(sel, newHour, isBooked)
	}
	if sel.Len()%r.duration != 0 {
		return sel
	}
	return r.growByBlock(sel, newHour, r.duration, isBooked)
}

// growByBlock adds a block of size hours towards newHour inside the range.
func (hr hourRange) growByBlock(sel grid.Selection, newHour, size int, isBooked grid.BookedFunc) grid.Selection {
	switch {
	case newHour > sel.End && newHour <= sel.End+size:
		return growBlock(sel, sel.End+1, sel.End+size, hr.lo(), hr.hi(), isBooked)
	case newHour < sel.Start && newHour >= sel.Start-size:
		return growBlock(sel, sel.Start-size, sel.Start-1, hr.lo(), hr.hi(), isBooked)
	}
	return sel
}

// MinMaxDurationRule allows spans of minDuration to maxDuration hours inside
// [startHour, endHour).
type MinMaxDurationRule struct {
	scope
	hourRange
	minDuration int
	maxDuration int
}

// NewMinMaxDurationRule creates a flexible duration rule. A non-positive
// maxDuration makes the rule behave like a BaseRule.
func NewMinMaxDurationRule(s Scope, startHour, endHour, minDuration, maxDuration int) *MinMaxDurationRule {
	return &MinMaxDurationRule{
		scope:       newScope(s),
		hourRange:   hourRange{startHour: startHour, endHour: endHour},
		minDuration: minDuration,
		maxDuration: maxDuration,
	}
}

// Kind returns KindMinMaxDuration.
func (r *MinMaxDurationRule) Kind() Kind { return KindMinMaxDuration }

// MinDuration returns the shortest allowed span.
func (r *MinMaxDurationRule) MinDuration() int { return r.minDuration }

// MaxDuration returns the longest allowed span.
func (r *MinMaxDurationRule) MaxDuration() int { return r.maxDuration }

// Applies reports scope membership.
func (r *MinMaxDurationRule) Applies(day, resource, _, _ int) bool {
	return r.Matches(day, resource)
}

// Validate requires the span inside the range with a length between the
// bounds.
func (r *MinMaxDurationRule) Validate(day, resource, startHour, endHour int) bool {
	if !r.Applies(day, resource, startHour, endHour) || r.maxDuration <= 0 {
		return true
	}
	n := endHour - startHour + 1
	return r.holds(startHour, endHour) && n >= r.minDuration && n <= r.maxDuration
}

// CalculateSelection fills forward up to maxDuration and walks back when the
// run is shorter than minDuration.
func (r *MinMaxDurationRule) CalculateSelection(day, hour, resource int, isBooked grid.BookedFunc) grid.Selection {
	if !grid.ValidHour(hour) {
		return grid.Empty()
	}
	single := grid.SingleHour(day, hour, resource)
	if !r.Matches(day, resource) || r.maxDuration <= 0 {
		return single
	}

	start := max(hour, r.lo())
	if start >= r.hi() || isBooked(day, start, resource) {
		return single
	}
	end := forwardRun(day, resource, start, r.maxDuration, r.hi(), isBooked)

	if end-start+1 < r.minDuration {
		for s := start - 1; s >= r.lo(); s-- {
			if isBooked(day, s, resource) {
				break
			}
			if end-s+1 >= r.minDuration {
				start = s
				break
			}
		}
	}
	return grid.NewSelection(day, resource, start, end)
}

// ExtendSelection grows sel by one adjacent hour while it is shorter than
// maxDuration.
func (r *MinMaxDurationRule) ExtendSelection(sel grid.Selection, newHour int, isBooked grid.BookedFunc) grid.Selection {
	if sel.IsEmpty() || !grid.ValidHour(newHour) || !r.Matches(sel.Day, sel.Resource) {
		return sel
	}
	if r.maxDuration <= 0 {
		return adjacentGrowth(sel, newHour, isBooked)
	}
	if !r.holds(sel.Start, sel.End) || sel.Len() >= r.maxDuration {
		return sel
	}
	if newHour < r.lo() || newHour >= r.hi() {
		return sel
	}
	return adjacentGrowth(sel, newHour, isBooked)
}
