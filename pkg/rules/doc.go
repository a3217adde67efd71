// Package rules implements the booking rule engine behind the hourly grid.
//
// A Rule is one of five variants tagged by Kind:
//
//   - BaseRule: single hours, one-hour adjacent growth
//   - FixedSlotRule: fixed windows such as 10-14, 14-18, 18-22
//   - FixedDurationRule: blocks of exactly N hours inside a range
//   - MinMaxDurationRule: spans of N to M hours inside a range
//   - TimeRangeRule: a time-of-day window with an increment size
//
// The Engine resolves rules in two ways. CalculateSelection and
// ExtendSelection pick the first rule that applies to the clicked hour, with
// time range rules tried before any other. ValidateSelection requires every
// rule scoped to the day and resource to accept the span, so a span proposed
// by one rule can still be rejected by another.
//
// Rule mismatches never fail: a refused extension returns the selection
// unchanged and a refused span validates false. Degenerate rules (no slots,
// zero duration, zero increment) fall back to single-hour behaviour.
//
// Engines are immutable. Loader builds them from rule files and Holder
// swaps in a new one when Watch sees the files change:
//
//	loader := rules.NewLoader(logger)
//	engine, err := loader.Load(ctx, []string{"rules/"})
//	if err != nil {
//	    return err
//	}
//	holder := rules.NewHolder(engine)
//	_ = loader.Watch(ctx, []string{"rules/"}, holder, nil)
//
//	sel := holder.Engine().CalculateSelection(day, hour, resource, occupancy.IsBooked)
package rules
