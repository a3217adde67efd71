package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JollyGrin/waterhouse-rsvp/pkg/booking"
	"github.com/JollyGrin/waterhouse-rsvp/pkg/grid"
	"github.com/JollyGrin/waterhouse-rsvp/pkg/stores"
)

func newBookCommand() *cobra.Command {
	var (
		holder string
		note   string
		hold   bool
	)

	cmd := &cobra.Command{
		Use:   "book DAY RESOURCE START END",
		Short: "Reserve a selection",
		Long: `Reserve DAY RESOURCE START-END in the current week. The selection must pass
the booking rules, must not overlap an active reservation, and must pass the
admission policies when they are enabled.`,
		Example: `  # Book a 4-hour block on Resource 1
  rsvp book 1 0 10 13 --holder ada

  # Hold a slot for later confirmation
  rsvp book 5 2 14 17 --holder bob --hold`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			sel, err := parseSelection(args)
			if err != nil {
				return err
			}

			return withApp(cmd, func(a *app) error {
				res, err := a.service.Book(cmd.Context(), booking.BookRequest{
					Week:      week,
					Selection: sel,
					Holder:    holder,
					Note:      note,
					Hold:      hold,
				})
				if err != nil {
					return err
				}
				return printReservation(res)
			})
		},
	}

	cmd.Flags().StringVar(&holder, "holder", "", "who the reservation is for")
	cmd.Flags().StringVar(&note, "note", "", "free-form note")
	cmd.Flags().BoolVar(&hold, "hold", false, "create the reservation as held")

	return cmd
}

func newConfirmCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "confirm ID",
		Short: "Confirm a held reservation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				res, err := a.service.Confirm(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printReservation(res)
			})
		},
	}
}

func newCancelCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel ID",
		Short: "Cancel a reservation and free its slots",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				res, err := a.service.Cancel(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printReservation(res)
			})
		},
	}
}

func newListCommand() *cobra.Command {
	var (
		holder   string
		day      int
		resource string
		status   string
		limit    int
		allWeeks bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List reservations",
		Example: `  # This week's reservations
  rsvp list

  # Active reservations for one holder across all weeks
  rsvp list --all-weeks --holder ada --status confirmed`,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := stores.ReservationFilter{
				Holder: holder,
				Status: stores.ReservationStatus(status),
				Limit:  limit,
			}
			if !allWeeks {
				filter.Week = week
			}
			if cmd.Flags().Changed("day") {
				filter.Day = &day
			}
			if cmd.Flags().Changed("resource") {
				idx, err := grid.ParseResource(resource)
				if err != nil {
					return err
				}
				filter.Resource = &idx
			}

			return withApp(cmd, func(a *app) error {
				list, err := a.service.List(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(list)
				}
				if len(list) == 0 {
					fmt.Println("No reservations.")
					return nil
				}
				for _, r := range list {
					printReservationLine(r)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&holder, "holder", "", "filter by holder")
	cmd.Flags().IntVar(&day, "day", 0, "filter by day index")
	cmd.Flags().StringVar(&resource, "resource", "", "filter by resource index or label")
	cmd.Flags().StringVar(&status, "status", "", "filter by status (held, confirmed, cancelled)")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of results")
	cmd.Flags().BoolVar(&allWeeks, "all-weeks", false, "ignore --week")

	return cmd
}

func newHistoryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "history [ID]",
		Short: "Show the event log",
		Long:  `Show the events recorded for one reservation, or the whole log without an ID.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ""
			if len(args) > 0 {
				id = args[0]
			}

			return withApp(cmd, func(a *app) error {
				events, err := a.service.History(cmd.Context(), id)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(events)
				}
				for _, e := range events {
					fmt.Printf("%s  %-22s %s\n", e.CreatedAt.Format("2006-01-02 15:04:05"), e.Kind, e.Message)
				}
				return nil
			})
		},
	}
}

func printReservation(r *stores.Reservation) error {
	if jsonOutput {
		return printJSON(r)
	}
	printReservationLine(r)
	return nil
}

func printReservationLine(r *stores.Reservation) {
	fmt.Printf("%s  %s  %-9s %s  %s\n", r.ID, r.Week, r.Status, r.Selection(), r.Holder)
}
