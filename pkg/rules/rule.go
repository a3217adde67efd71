package rules

import (
	"slices"

	"github.com/JollyGrin/waterhouse-rsvp/pkg/config"
	"github.com/JollyGrin/waterhouse-rsvp/pkg/grid"
)

// Kind tags a rule variant.
type Kind string

const (
	KindBase           Kind = config.KindBase
	KindFixedSlot      Kind = config.KindFixedSlot
	KindFixedDuration  Kind = config.KindFixedDuration
	KindMinMaxDuration Kind = config.KindMinMaxDuration
	KindTimeRange      Kind = config.KindTimeRange
)

// String returns the kind tag.
func (k Kind) String() string { return string(k) }

// Rule is one booking policy. Implementations are immutable and safe for
// concurrent use.
type Rule interface {
	// Name is a diagnostic label.
	Name() string

	// Kind returns the variant tag.
	Kind() Kind

	// Matches reports whether the day/resource scope covers the query.
	Matches(day, resource int) bool

	// Applies reports whether the rule governs the inclusive hour span
	// [startHour, endHour] on day/resource.
	Applies(day, resource, startHour, endHour int) bool

	// Validate reports whether the span satisfies the rule. It is true when
	// the rule does not apply.
	Validate(day, resource, startHour, endHour int) bool

	// CalculateSelection returns the span a click at hour should propose.
	CalculateSelection(day, hour, resource int, isBooked grid.BookedFunc) grid.Selection

	// ExtendSelection returns sel grown towards newHour, or sel unchanged.
	ExtendSelection(sel grid.Selection, newHour int, isBooked grid.BookedFunc) grid.Selection
}

// Scope is the day/resource applicability of a rule. Empty lists match
// everything.
type Scope struct {
	Name      string
	Days      []int
	Resources []int
}

// Resources converts resource references ("Resource 2" or "1") to indices.
func Resources(refs ...string) ([]int, error) {
	out := make([]int, 0, len(refs))
	for _, ref := range refs {
		idx, err := grid.ParseResource(ref)
		if err != nil {
			return nil, err
		}
		out = append(out, idx)
	}
	return out, nil
}

// scope is embedded by every variant.
type scope struct {
	name      string
	days      []int
	resources []int
}

func newScope(s Scope) scope {
	return scope{
		name:      s.Name,
		days:      slices.Clone(s.Days),
		resources: slices.Clone(s.Resources),
	}
}

// Name returns the rule name.
func (s scope) Name() string { return s.name }

// Matches reports whether day and resource fall inside the scope.
func (s scope) Matches(day, resource int) bool {
	return (len(s.days) == 0 || slices.Contains(s.days, day)) &&
		(len(s.resources) == 0 || slices.Contains(s.resources, resource))
}

// adjacentGrowth extends sel by one hour when newHour touches either end and
// is free.
func adjacentGrowth(sel grid.Selection, newHour int, isBooked grid.BookedFunc) grid.Selection {
	if sel.IsEmpty() || !grid.ValidHour(newHour) {
		return sel
	}
	switch newHour {
	case sel.End + 1:
		if !isBooked(sel.Day, newHour, sel.Resource) {
			return sel.WithEnd(newHour)
		}
	case sel.Start - 1:
		if !isBooked(sel.Day, newHour, sel.Resource) {
			return sel.WithStart(newHour)
		}
	}
	return sel
}

// growBlock extends sel by the block [from, to] when it is adjacent, free and
// inside [lo, hi).
func growBlock(sel grid.Selection, from, to, lo, hi int, isBooked grid.BookedFunc) grid.Selection {
	if from < lo || to >= hi {
		return sel
	}
	if !grid.AllFree(isBooked, sel.Day, sel.Resource, from, to) {
		return sel
	}
	switch {
	case from == sel.End+1:
		return sel.WithEnd(to)
	case to == sel.Start-1:
		return sel.WithStart(from)
	}
	return sel
}

// forwardRun returns the last hour of the free run that starts at start and
// spans at most limit hours without reaching stop. The start cell itself is
// not checked.
func forwardRun(day, resource, start, limit, stop int, isBooked grid.BookedFunc) int {
	end := start
	for h := start + 1; h < start+limit && h < stop && h <= grid.LastHour; h++ {
		if isBooked(day, h, resource) {
			break
		}
		end = h
	}
	return end
}
