package commands

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/JollyGrin/waterhouse-rsvp/pkg/grid"
	"github.com/JollyGrin/waterhouse-rsvp/pkg/rules"
)

type ruleView struct {
	Name   string     `json:"name"`
	Kind   rules.Kind `json:"kind"`
	Detail string     `json:"detail,omitempty"`
}

func newRulesCommand() *cobra.Command {
	var (
		day      int
		hour     int
		resource string
	)

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List the active booking rules",
		Long: `List the rules loaded from the configured rule files in priority order.

With --day, --resource and --hour, only the rules that apply to that cell are
listed, in the order the engine consults them: time range rules first.`,
		Example: `  # List every rule
  rsvp rules

  # Which rule governs a click on Tuesday 10:00, Resource 1?
  rsvp rules --day 1 --hour 10 --resource "Resource 1"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			eng, err := rules.NewLoader(log.Logger).Load(cmd.Context(), cfg.Rules.Paths)
			if err != nil {
				return err
			}

			list := eng.Rules()
			if cmd.Flags().Changed("day") || cmd.Flags().Changed("hour") || cmd.Flags().Changed("resource") {
				res, err := grid.ParseResource(resource)
				if err != nil {
					return err
				}
				list = eng.ApplicableRulesAt(day, res, hour)
			}

			views := make([]ruleView, len(list))
			for i, r := range list {
				views[i] = ruleView{Name: r.Name(), Kind: r.Kind(), Detail: describeRule(r)}
			}

			if jsonOutput {
				return printJSON(views)
			}
			if len(views) == 0 {
				fmt.Println("No rules apply; clicks select a single hour.")
				return nil
			}
			for i, v := range views {
				fmt.Printf("%d. %-20s %-18s %s\n", i+1, v.Name, v.Kind, v.Detail)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&day, "day", 0, "day index (0 = Monday)")
	cmd.Flags().IntVar(&hour, "hour", 0, "hour of day")
	cmd.Flags().StringVar(&resource, "resource", "0", "resource index or label")

	return cmd
}

func describeRule(r rules.Rule) string {
	switch rule := r.(type) {
	case *rules.FixedSlotRule:
		slots := make([]string, 0, len(rule.Slots()))
		for _, w := range rule.Slots() {
			slots = append(slots, fmt.Sprintf("%02d-%02d", w.Start, w.End))
		}
		return "slots " + strings.Join(slots, ", ")
	case *rules.FixedDurationRule:
		return fmt.Sprintf("%dh blocks in %02d-%02d", rule.Duration(), rule.StartHour(), rule.EndHour())
	case *rules.MinMaxDurationRule:
		return fmt.Sprintf("%d-%dh in %02d-%02d", rule.MinDuration(), rule.MaxDuration(), rule.StartHour(), rule.EndHour())
	case *rules.TimeRangeRule:
		return fmt.Sprintf("%dh increments in %02d-%02d", rule.Increment(), rule.StartHour(), rule.EndHour())
	}
	return ""
}
