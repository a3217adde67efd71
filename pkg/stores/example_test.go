package stores_test

import (
	"context"
	"fmt"
	"log"

	"github.com/JollyGrin/waterhouse-rsvp/pkg/grid"
	"github.com/JollyGrin/waterhouse-rsvp/pkg/stores"
)

// ExampleNewSQLiteStore demonstrates creating and initializing a new SQLite store.
func ExampleNewSQLiteStore() {
	store, err := stores.NewSQLiteStore(stores.Config{
		Path: stores.MemoryPath,
	})
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		log.Fatal(err)
	}

	fmt.Println("Store initialized successfully")
	// Output: Store initialized successfully
}

// ExampleSQLiteStore_CreateReservation shows the overlap check.
func ExampleSQLiteStore_CreateReservation() {
	store, _ := stores.NewSQLiteStore(stores.Config{Path: stores.MemoryPath})
	ctx := context.Background()
	_ = store.Init(ctx)
	_ = store.Migrate(ctx)
	defer store.Close()

	first := &stores.Reservation{Week: "2026-W42", Day: 1, Resource: 0, StartHour: 10, EndHour: 13, Holder: "ada"}
	if err := store.CreateReservation(ctx, first); err != nil {
		log.Fatal(err)
	}

	second := &stores.Reservation{Week: "2026-W42", Day: 1, Resource: 0, StartHour: 12, EndHour: 14, Holder: "bob"}
	err := store.CreateReservation(ctx, second)
	fmt.Println(grid.CodeOf(err))

	occ, _ := store.Occupancy(ctx, "2026-W42")
	fmt.Println(occ.IsBooked(1, 12, 0), occ.IsBooked(1, 14, 0))
	// Output:
	// SLOT_TAKEN
	// true false
}
