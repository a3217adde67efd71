package rules_test

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/JollyGrin/waterhouse-rsvp/pkg/grid"
	"github.com/JollyGrin/waterhouse-rsvp/pkg/rules"
)

func ExampleEngine_CalculateSelection() {
	engine := rules.DefaultEngine(zerolog.Nop())

	// Hour 14 in the first studio is already taken on Monday.
	occupancy := grid.NewOccupancy(grid.SingleHour(0, 14, 0))

	sel := engine.CalculateSelection(0, 11, 0, occupancy.IsBooked)
	fmt.Println(sel)
	fmt.Println(engine.ValidateSelection(sel))
	// Output:
	// day=0 Resource 1 10:00-14:00
	// true
}

func ExampleEngine_ExtendSelection() {
	engine := rules.NewEngine(zerolog.Nop(),
		rules.NewFixedSlotRule(rules.Scope{Name: "sessions"},
			rules.Window{Start: 10, End: 14},
			rules.Window{Start: 14, End: 18},
		),
	)

	sel := engine.CalculateSelection(5, 10, 2, grid.NeverBooked)
	fmt.Println(sel)

	sel = engine.ExtendSelection(sel, 14, grid.NeverBooked)
	fmt.Println(sel)
	fmt.Println(engine.ValidateSelection(sel))
	// Output:
	// day=5 Resource 3 10:00-14:00
	// day=5 Resource 3 10:00-18:00
	// false
}

func ExampleEngine_Explain() {
	engine := rules.DefaultEngine(zerolog.Nop())

	for _, v := range engine.Explain(grid.NewSelection(0, 0, 8, 11)) {
		fmt.Printf("%s applies=%v valid=%v\n", v.Rule, v.Applies, v.Valid)
	}
	// Output:
	// early-morning applies=true valid=true
	// late-evening applies=false valid=true
	// four-hour-windows applies=true valid=false
	// weekday-blocks applies=true valid=false
}
