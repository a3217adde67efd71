package rules

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/JollyGrin/waterhouse-rsvp/pkg/config"
	"github.com/JollyGrin/waterhouse-rsvp/pkg/grid"
)

// DefaultConfigs returns the studio's stock policy in priority order.
// Studios are resources 0-2; resource 3 has no rules. Days are Monday-based.
func DefaultConfigs() []config.RuleConfig {
	return []config.RuleConfig{
		earlyMorningRule(),
		lateEveningRule(),
		fourHourWindowsRule(),
		weekdayBlocksRule(),
		eveningMaxRule(),
	}
}

// DefaultPolicy wraps DefaultConfigs in a policy document.
func DefaultPolicy() config.PolicyFile {
	return config.PolicyFile{
		Name:    "studio-default",
		Version: "1",
		Rules:   DefaultConfigs(),
	}
}

// DefaultEngine builds an engine from DefaultConfigs.
func DefaultEngine(logger zerolog.Logger) *Engine {
	rs, err := BuildAll(DefaultConfigs())
	if err != nil {
		// The stock policy is a constant; failing to build it is a programming error.
		panic(err)
	}
	return NewEngine(logger, rs...)
}

// studios are the three rooms the stock policy governs.
var studios = []config.ResourceRef{0, 1, 2}

// earlyMorningRule allows hour-by-hour bookings before 10:00.
func earlyMorningRule() config.RuleConfig {
	return config.RuleConfig{
		Name:          "early-morning",
		Kind:          config.KindTimeRange,
		Resources:     studios,
		StartHour:     0,
		EndHour:       10,
		IncrementSize: 1,
	}
}

// lateEveningRule allows hour-by-hour bookings from 22:00.
func lateEveningRule() config.RuleConfig {
	return config.RuleConfig{
		Name:          "late-evening",
		Kind:          config.KindTimeRange,
		Resources:     studios,
		StartHour:     22,
		EndHour:       24,
		IncrementSize: 1,
	}
}

// fourHourWindowsRule snaps daytime bookings to three 4-hour windows.
func fourHourWindowsRule() config.RuleConfig {
	return config.RuleConfig{
		Name:      "four-hour-windows",
		Kind:      config.KindFixedSlot,
		Resources: studios,
		Slots:     [][]int{{10, 14}, {14, 18}, {18, 22}},
	}
}

// weekdayBlocksRule books the first two studios in 4-hour weekday blocks.
func weekdayBlocksRule() config.RuleConfig {
	return config.RuleConfig{
		Name:      "weekday-blocks",
		Kind:      config.KindFixedDuration,
		Days:      []int{0, 1, 2, 3, 4},
		Resources: []config.ResourceRef{0, 1},
		StartHour: 10,
		EndHour:   22,
		Duration:  4,
	}
}

// eveningMaxRule caps evening sessions in the third studio at two hours.
func eveningMaxRule() config.RuleConfig {
	return config.RuleConfig{
		Name:        "evening-max-2h",
		Kind:        config.KindMinMaxDuration,
		Resources:   []config.ResourceRef{2},
		StartHour:   15,
		EndHour:     20,
		MinDuration: 1,
		MaxDuration: 2,
	}
}

// Build converts a rule configuration into a Rule.
func Build(rc config.RuleConfig) (Rule, error) {
	s := Scope{
		Name:      rc.Name,
		Days:      rc.Days,
		Resources: rc.ResourceIndices(),
	}

	switch Kind(rc.Kind) {
	case KindBase:
		return NewBaseRule(s), nil
	case KindFixedSlot:
		slots := make([]Window, 0, len(rc.Slots))
		for i, pair := range rc.Slots {
			if len(pair) != 2 {
				return nil, buildError(rc, fmt.Sprintf("slot %d must have a start and an end", i))
			}
			slots = append(slots, Window{Start: pair[0], End: pair[1]})
		}
		return NewFixedSlotRule(s, slots...), nil
	case KindFixedDuration:
		return NewFixedDurationRule(s, rc.StartHour, rc.EndHour, rc.Duration), nil
	case KindMinMaxDuration:
		return NewMinMaxDurationRule(s, rc.StartHour, rc.EndHour, rc.MinDuration, rc.MaxDuration), nil
	case KindTimeRange:
		return NewTimeRangeRule(s, rc.StartHour, rc.EndHour, rc.IncrementSize), nil
	default:
		return nil, buildError(rc, fmt.Sprintf("unknown rule kind %q", rc.Kind))
	}
}

// BuildAll builds every configuration, stopping at the first error.
func BuildAll(rcs []config.RuleConfig) ([]Rule, error) {
	out := make([]Rule, 0, len(rcs))
	for _, rc := range rcs {
		r, err := Build(rc)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func buildError(rc config.RuleConfig, msg string) error {
	return grid.NewInvalidError(fmt.Sprintf("rule %s: %s", rc.Name, msg), nil).
		WithCode(grid.ErrCodeConfigInvalid).
		WithOp("build")
}
