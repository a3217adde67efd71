package rules

import "github.com/JollyGrin/waterhouse-rsvp/pkg/grid"

// Window is a half-open hour range [Start, End).
type Window struct {
	Start int
	End   int
}

// Len returns the number of hours in w.
func (w Window) Len() int { return w.End - w.Start }

// Contains reports whether hour falls inside w.
func (w Window) Contains(hour int) bool { return hour >= w.Start && hour < w.End }

// FixedSlotRule only allows the configured slots, e.g. 10-14, 14-18, 18-22.
type FixedSlotRule struct {
	scope
	slots []Window
}

// NewFixedSlotRule creates a slot rule. Slots must be ordered and disjoint.
// A rule without slots behaves like a BaseRule.
func NewFixedSlotRule(s Scope, slots ...Window) *FixedSlotRule {
	return &FixedSlotRule{
		scope: newScope(s),
		slots: append([]Window(nil), slots...),
	}
}

// Kind returns KindFixedSlot.
func (r *FixedSlotRule) Kind() Kind { return KindFixedSlot }

// Slots returns a copy of the configured slots.
func (r *FixedSlotRule) Slots() []Window {
	return append([]Window(nil), r.slots...)
}

// Applies reports scope membership.
func (r *FixedSlotRule) Applies(day, resource, _, _ int) bool {
	return r.Matches(day, resource)
}

// Validate requires the span to be exactly one slot.
func (r *FixedSlotRule) Validate(day, resource, startHour, endHour int) bool {
	if !r.Applies(day, resource, startHour, endHour) || len(r.slots) == 0 {
		return true
	}
	for _, slot := range r.slots {
		if startHour == slot.Start && endHour == slot.End-1 {
			return true
		}
	}
	return false
}

// CalculateSelection proposes the slot holding the click, or the next slot
// after it, when that slot is entirely free.
func (r *FixedSlotRule) CalculateSelection(day, hour, resource int, isBooked grid.BookedFunc) grid.Selection {
	if !grid.ValidHour(hour) {
		return grid.Empty()
	}
	single := grid.SingleHour(day, hour, resource)
	if !r.Matches(day, resource) {
		return single
	}

	slot, ok := r.slotFor(hour)
	if !ok {
		return single
	}
	if !grid.AllFree(isBooked, day, resource, slot.Start, slot.End-1) {
		return single
	}
	return grid.NewSelection(day, resource, slot.Start, slot.End-1)
}

// slotFor returns the slot containing hour, else the first slot starting
// after it.
func (r *FixedSlotRule) slotFor(hour int) (Window, bool) {
	for _, slot := range r.slots {
		if slot.Contains(hour) {
			return slot, true
		}
	}
	for _, slot := range r.slots {
		if slot.Start > hour {
			return slot, true
		}
	}
	return Window{}, false
}

// ExtendSelection adds the whole slot adjacent to sel in the direction of
// newHour. The selection must already line up with slot boundaries.
func (r *FixedSlotRule) ExtendSelection(sel grid.Selection, newHour int, isBooked grid.BookedFunc) grid.Selection {
	if sel.IsEmpty() || !grid.ValidHour(newHour) || !r.Matches(sel.Day, sel.Resource) {
		return sel
	}
	if len(r.slots) == 0 {
		return adjacentGrowth(sel, newHour, isBooked)
	}
	if !r.aligned(sel) {
		return sel
	}

	for _, slot := range r.slots {
		if !slot.Contains(newHour) {
			continue
		}
		forward := newHour > sel.End && slot.Start == sel.End+1
		backward := newHour < sel.Start && slot.End == sel.Start
		if !forward && !backward {
			return sel
		}
		return growBlock(sel, slot.Start, slot.End-1, grid.FirstHour, grid.HoursPerDay, isBooked)
	}
	return sel
}

func (r *FixedSlotRule) aligned(sel grid.Selection) bool {
	for _, slot := range r.slots {
		if sel.Start == slot.Start || sel.End == slot.End-1 {
			return true
		}
	}
	first := r.slots[0].Len()
	return first > 0 && sel.Len()%first == 0
}
