package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JollyGrin/waterhouse-rsvp/pkg/grid"
)

func newProposeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "propose DAY HOUR RESOURCE",
		Short: "Show the span a click on a cell would select",
		Example: `  # Click Tuesday 11:00 on Resource 1
  rsvp propose 1 11 "Resource 1"`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cell, err := parseInts(args[:2], "day", "hour")
			if err != nil {
				return err
			}
			resource, err := grid.ParseResource(args[2])
			if err != nil {
				return err
			}

			return withApp(cmd, func(a *app) error {
				sel, err := a.service.Propose(cmd.Context(), week, cell[0], cell[1], resource)
				if err != nil {
					return err
				}
				return printSelection(sel)
			})
		},
	}
}

func newExtendCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "extend DAY RESOURCE START END NEWHOUR",
		Short: "Grow a selection towards an hour",
		Long: `Grow the selection DAY RESOURCE START-END towards NEWHOUR under the rule
that governs NEWHOUR. A refused extension prints the selection unchanged.`,
		Example: `  # Grow 16:00 on Resource 2 to include 17:00
  rsvp extend 1 1 16 16 17`,
		Args: cobra.ExactArgs(5),
		RunE: func(cmd *cobra.Command, args []string) error {
			sel, err := parseSelection(args)
			if err != nil {
				return err
			}
			newHour, err := parseInts(args[4:], "new hour")
			if err != nil {
				return err
			}

			return withApp(cmd, func(a *app) error {
				out, err := a.service.Extend(cmd.Context(), week, sel, newHour[0])
				if err != nil {
					return err
				}
				return printSelection(out)
			})
		},
	}
}

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate DAY RESOURCE START END",
		Short: "Check a selection against the booking rules",
		Long: `Check the selection DAY RESOURCE START-END against every rule scoped to
its day and resource, and show each rule's verdict. Occupancy is not
considered. Exits non-zero when any rule rejects the selection.`,
		Example: `  # Is a 3-hour evening session on Resource 2 allowed?
  rsvp validate 1 1 15 17`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			sel, err := parseSelection(args)
			if err != nil {
				return err
			}

			return withApp(cmd, func(a *app) error {
				report, err := a.service.Check(cmd.Context(), sel)
				if err != nil {
					return err
				}

				if jsonOutput {
					if err := printJSON(report); err != nil {
						return err
					}
				} else {
					for _, v := range report.Verdicts {
						state := "skip"
						switch {
						case v.Applies && v.Valid:
							state = "ok"
						case !v.Valid:
							state = "REJECT"
						}
						fmt.Printf("  %-6s %-20s %s\n", state, v.Rule, v.Kind)
					}
				}

				if !report.Valid {
					return grid.NewInvalidError(fmt.Sprintf("%s is not allowed", sel), nil).
						WithCode(grid.ErrCodeRuleRejected).
						WithDetail("rules", report.Rejections)
				}
				if !jsonOutput {
					fmt.Printf("✓ %s is allowed\n", sel)
				}
				return nil
			})
		},
	}
}

func printSelection(sel grid.Selection) error {
	if jsonOutput {
		return printJSON(sel)
	}
	if sel.IsEmpty() {
		fmt.Println("(no selection)")
		return nil
	}
	fmt.Printf("%s (%d hours)\n", sel, sel.Len())
	return nil
}
