package rules

import (
	"github.com/rs/zerolog"

	"github.com/JollyGrin/waterhouse-rsvp/pkg/grid"
)

// Engine resolves an ordered rule list. Proposals and extensions use the
// first matching rule; validation requires every matching rule to accept.
// An Engine is immutable after NewEngine returns.
type Engine struct {
	rules  []Rule
	logger zerolog.Logger
}

// Verdict is one rule's opinion on a selection.
type Verdict struct {
	Rule    string `json:"rule"`
	Kind    Kind   `json:"kind"`
	Applies bool   `json:"applies"`
	Valid   bool   `json:"valid"`
}

// NewEngine creates an engine. Rule order is priority order.
func NewEngine(logger zerolog.Logger, rs ...Rule) *Engine {
	e := &Engine{
		rules:  append([]Rule(nil), rs...),
		logger: logger.With().Str("component", "rule-engine").Logger(),
	}

	e.logger.Debug().Int("rules", len(e.rules)).Msg("Rule engine created")
	return e
}

// Rules returns a copy of the ordered rule list.
func (e *Engine) Rules() []Rule {
	return append([]Rule(nil), e.rules...)
}

// Len returns the number of rules.
func (e *Engine) Len() int {
	return len(e.rules)
}

// ApplicableRules returns the rules whose day/resource scope matches, in
// priority order.
func (e *Engine) ApplicableRules(day, resource int) []Rule {
	var out []Rule
	for _, r := range e.rules {
		if r.Matches(day, resource) {
			out = append(out, r)
		}
	}
	return out
}

// ApplicableRulesAt returns the rules that apply to the single hour, with
// time range rules moved to the front.
func (e *Engine) ApplicableRulesAt(day, resource, hour int) []Rule {
	var timeRange, other []Rule
	for _, r := range e.rules {
		if !r.Applies(day, resource, hour, hour) {
			continue
		}
		if r.Kind() == KindTimeRange {
			timeRange = append(timeRange, r)
		} else {
			other = append(other, r)
		}
	}
	return append(timeRange, other...)
}

// CalculateSelection proposes a span for a click at hour. Without an
// applicable rule the click yields a single hour.
func (e *Engine) CalculateSelection(day, hour, resource int, isBooked grid.BookedFunc) grid.Selection {
	if !grid.ValidHour(hour) || day < 0 || resource < 0 {
		return grid.Empty()
	}

	applicable := e.ApplicableRulesAt(day, resource, hour)
	if len(applicable) == 0 {
		return grid.SingleHour(day, hour, resource)
	}

	rule := applicable[0]
	sel := rule.CalculateSelection(day, hour, resource, isBooked)

	e.logger.Debug().
		Str("rule", rule.Name()).
		Str("kind", rule.Kind().String()).
		Int("day", day).
		Int("hour", hour).
		Int("resource", resource).
		Str("selection", sel.String()).
		Msg("Selection calculated")

	return sel
}

// ExtendSelection grows sel towards newHour under the rule that governs
// newHour. Failed extensions return sel unchanged.
func (e *Engine) ExtendSelection(sel grid.Selection, newHour int, isBooked grid.BookedFunc) grid.Selection {
	if sel.IsEmpty() || !grid.ValidHour(newHour) {
		return sel
	}

	applicable := e.ApplicableRulesAt(sel.Day, sel.Resource, newHour)
	if len(applicable) == 0 {
		return adjacentGrowth(sel, newHour, isBooked)
	}

	rule := applicable[0]
	out := rule.ExtendSelection(sel, newHour, isBooked)

	e.logger.Debug().
		Str("rule", rule.Name()).
		Str("from", sel.String()).
		Str("to", out.String()).
		Int("new_hour", newHour).
		Bool("changed", out != sel).
		Msg("Selection extended")

	return out
}

// ValidateSelection reports whether every rule scoped to the selection's
// day and resource accepts it. Empty and out-of-grid selections are invalid.
func (e *Engine) ValidateSelection(sel grid.Selection) bool {
	if sel.IsEmpty() || !sel.InBounds() {
		return false
	}
	for _, r := range e.ApplicableRules(sel.Day, sel.Resource) {
		if !r.Validate(sel.Day, sel.Resource, sel.Start, sel.End) {
			return false
		}
	}
	return true
}

// Explain returns a verdict for every rule scoped to the selection's day and
// resource. It returns nil for empty and out-of-grid selections.
func (e *Engine) Explain(sel grid.Selection) []Verdict {
	if sel.IsEmpty() || !sel.InBounds() {
		return nil
	}

	applicable := e.ApplicableRules(sel.Day, sel.Resource)
	verdicts := make([]Verdict, 0, len(applicable))
	for _, r := range applicable {
		verdicts = append(verdicts, Verdict{
			Rule:    r.Name(),
			Kind:    r.Kind(),
			Applies: r.Applies(sel.Day, sel.Resource, sel.Start, sel.End),
			Valid:   r.Validate(sel.Day, sel.Resource, sel.Start, sel.End),
		})
	}
	return verdicts
}

// Rejections returns the names of rules that reject sel.
func Rejections(verdicts []Verdict) []string {
	var names []string
	for _, v := range verdicts {
		if !v.Valid {
			names = append(names, v.Rule)
		}
	}
	return names
}
