package rules

import "github.com/JollyGrin/waterhouse-rsvp/pkg/grid"

// BaseRule proposes single hours and grows one adjacent hour at a time.
type BaseRule struct {
	scope
}

// NewBaseRule creates a base rule for the given scope.
func NewBaseRule(s Scope) *BaseRule {
	return &BaseRule{scope: newScope(s)}
}

// Kind returns KindBase.
func (r *BaseRule) Kind() Kind { return KindBase }

// Applies reports scope membership; base rules cover every hour.
func (r *BaseRule) Applies(day, resource, _, _ int) bool {
	return r.Matches(day, resource)
}

// Validate always accepts.
func (r *BaseRule) Validate(int, int, int, int) bool { return true }

// CalculateSelection returns the clicked hour.
func (r *BaseRule) CalculateSelection(day, hour, resource int, _ grid.BookedFunc) grid.Selection {
	if !grid.ValidHour(hour) {
		return grid.Empty()
	}
	return grid.SingleHour(day, hour, resource)
}

// ExtendSelection grows sel by one adjacent free hour.
func (r *BaseRule) ExtendSelection(sel grid.Selection, newHour int, isBooked grid.BookedFunc) grid.Selection {
	if sel.IsEmpty() || !r.Matches(sel.Day, sel.Resource) {
		return sel
	}
	return adjacentGrowth(sel, newHour, isBooked)
}
