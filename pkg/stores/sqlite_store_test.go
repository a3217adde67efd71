package stores

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/JollyGrin/waterhouse-rsvp/pkg/grid"
)

// setupTestStore creates an in-memory SQLite store for testing
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{
		Path: MemoryPath,
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}

	t.Cleanup(func() { _ = store.Close() })
	return store
}

func reservation(week string, day, resource, start, end int, holder string) *Reservation {
	return &Reservation{
		Week:      week,
		Day:       day,
		Resource:  resource,
		StartHour: start,
		EndHour:   end,
		Holder:    holder,
	}
}

// TestStoreLifecycle tests database initialization and closure
func TestStoreLifecycle(t *testing.T) {
	if _, err := NewSQLiteStore(Config{}); err == nil {
		t.Error("expected error for empty path")
	}

	store, err := NewSQLiteStore(Config{
		Path: filepath.Join(t.TempDir(), "rsvp.db"),
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.HealthCheck(ctx); err == nil {
		t.Error("expected health check to fail before Init")
	}
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}
	// A second run has nothing to apply.
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}
	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("health check failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

// TestStoreMigrations checks the tables exist after migrating
func TestStoreMigrations(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for _, table := range []string{"reservations", "events"} {
		var count int
		err := store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count)
		if err != nil {
			t.Errorf("table %s does not exist or is not accessible: %v", table, err)
		}
	}
}

func TestReservationCRUD(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	r := reservation("2026-W42", 2, 1, 10, 13, "ada")
	r.Note = "band practice"
	r.RuleNames = []string{"evening-short"}
	if err := store.CreateReservation(ctx, r); err != nil {
		t.Fatalf("failed to create reservation: %v", err)
	}
	if r.ID == "" {
		t.Fatal("expected generated ID")
	}
	if r.Status != ReservationStatusConfirmed {
		t.Errorf("default status = %s, want confirmed", r.Status)
	}

	got, err := store.GetReservation(ctx, r.ID)
	if err != nil {
		t.Fatalf("failed to get reservation: %v", err)
	}
	if got.Selection() != grid.NewSelection(2, 1, 10, 13) {
		t.Errorf("selection = %v", got.Selection())
	}
	if got.Holder != "ada" || got.Note != "band practice" || got.Week != "2026-W42" {
		t.Errorf("unexpected reservation: %+v", got)
	}
	if len(got.RuleNames) != 1 || got.RuleNames[0] != "evening-short" {
		t.Errorf("RuleNames = %v", got.RuleNames)
	}
	if got.Hours() != 4 {
		t.Errorf("Hours() = %d, want 4", got.Hours())
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not round-tripped")
	}

	cancelled, err := store.CancelReservation(ctx, r.ID)
	if err != nil {
		t.Fatalf("failed to cancel reservation: %v", err)
	}
	if cancelled.Status != ReservationStatusCancelled {
		t.Errorf("status = %s, want cancelled", cancelled.Status)
	}
	if _, err := store.CancelReservation(ctx, r.ID); !grid.IsConflict(err) {
		t.Errorf("second cancel error = %v, want conflict", err)
	}

	_, err = store.GetReservation(ctx, "missing")
	if !grid.IsNotFound(err) {
		t.Errorf("GetReservation(missing) error = %v, want not found", err)
	}
	if grid.CodeOf(err) != grid.ErrCodeNotFound {
		t.Errorf("code = %s", grid.CodeOf(err))
	}
}

func TestConfirmReservation(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	r := reservation("2026-W42", 0, 0, 9, 9, "ada")
	r.Status = ReservationStatusHeld
	if err := store.CreateReservation(ctx, r); err != nil {
		t.Fatalf("failed to create reservation: %v", err)
	}

	confirmed, err := store.ConfirmReservation(ctx, r.ID)
	if err != nil {
		t.Fatalf("failed to confirm: %v", err)
	}
	if confirmed.Status != ReservationStatusConfirmed {
		t.Errorf("status = %s", confirmed.Status)
	}
	if _, err := store.ConfirmReservation(ctx, r.ID); err != nil {
		t.Errorf("confirming twice should be a no-op: %v", err)
	}

	if _, err := store.CancelReservation(ctx, r.ID); err != nil {
		t.Fatalf("failed to cancel: %v", err)
	}
	if _, err := store.ConfirmReservation(ctx, r.ID); !grid.IsConflict(err) {
		t.Errorf("confirm after cancel error = %v, want conflict", err)
	}
}

func TestCreateReservation_Overlap(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.CreateReservation(ctx, reservation("2026-W42", 1, 0, 10, 13, "ada")); err != nil {
		t.Fatalf("failed to create reservation: %v", err)
	}

	tests := []struct {
		name     string
		r        *Reservation
		wantCode string
	}{
		{"same span", reservation("2026-W42", 1, 0, 10, 13, "bob"), grid.ErrCodeSlotTaken},
		{"touches last hour", reservation("2026-W42", 1, 0, 13, 15, "bob"), grid.ErrCodeSlotTaken},
		{"covers", reservation("2026-W42", 1, 0, 8, 20, "bob"), grid.ErrCodeSlotTaken},
		{"adjacent after", reservation("2026-W42", 1, 0, 14, 15, "bob"), ""},
		{"adjacent before", reservation("2026-W42", 1, 0, 8, 9, "bob"), ""},
		{"other resource", reservation("2026-W42", 1, 1, 10, 13, "bob"), ""},
		{"other day", reservation("2026-W42", 2, 0, 10, 13, "bob"), ""},
		{"other week", reservation("2026-W43", 1, 0, 10, 13, "bob"), ""},
		{"out of grid", reservation("2026-W42", 1, 0, 20, 24, "bob"), grid.ErrCodeBadSelection},
		{"inverted", reservation("2026-W42", 1, 0, 5, 4, "bob"), grid.ErrCodeBadSelection},
		{"no week", reservation("", 1, 0, 5, 6, "bob"), grid.ErrCodeBadSelection},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.CreateReservation(ctx, tt.r)
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if grid.CodeOf(err) != tt.wantCode {
				t.Errorf("error = %v, want code %s", err, tt.wantCode)
			}
		})
	}
}

func TestCreateReservation_CancelledFreesSlot(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	first := reservation("2026-W42", 3, 2, 18, 20, "ada")
	if err := store.CreateReservation(ctx, first); err != nil {
		t.Fatalf("failed to create reservation: %v", err)
	}
	if _, err := store.CancelReservation(ctx, first.ID); err != nil {
		t.Fatalf("failed to cancel: %v", err)
	}
	if err := store.CreateReservation(ctx, reservation("2026-W42", 3, 2, 18, 20, "bob")); err != nil {
		t.Errorf("slot should be free after cancel: %v", err)
	}
}

func TestCreateReservation_Concurrent(t *testing.T) {
	store, err := NewSQLiteStore(Config{Path: filepath.Join(t.TempDir(), "rsvp.db")})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}

	const workers = 6
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.CreateReservation(ctx, reservation("2026-W42", 4, 0, 12, 14, "racer"))
			if err == nil {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if created != 1 {
		t.Errorf("created %d reservations for the same span, want 1", created)
	}
}

func TestListReservations(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	fixtures := []*Reservation{
		reservation("2026-W42", 2, 0, 10, 11, "ada"),
		reservation("2026-W42", 1, 1, 10, 11, "bob"),
		reservation("2026-W42", 1, 0, 15, 16, "ada"),
		reservation("2026-W43", 0, 0, 10, 11, "ada"),
	}
	for _, r := range fixtures {
		if err := store.CreateReservation(ctx, r); err != nil {
			t.Fatalf("failed to create reservation: %v", err)
		}
	}
	if _, err := store.CancelReservation(ctx, fixtures[1].ID); err != nil {
		t.Fatalf("failed to cancel: %v", err)
	}

	day1 := 1
	res0 := 0
	tests := []struct {
		name    string
		filter  ReservationFilter
		wantIDs []string
	}{
		{"all", ReservationFilter{}, []string{fixtures[2].ID, fixtures[1].ID, fixtures[0].ID, fixtures[3].ID}},
		{"week", ReservationFilter{Week: "2026-W42"}, []string{fixtures[2].ID, fixtures[1].ID, fixtures[0].ID}},
		{"holder", ReservationFilter{Week: "2026-W42", Holder: "ada"}, []string{fixtures[2].ID, fixtures[0].ID}},
		{"day", ReservationFilter{Day: &day1}, []string{fixtures[2].ID, fixtures[1].ID}},
		{"resource", ReservationFilter{Week: "2026-W42", Resource: &res0}, []string{fixtures[2].ID, fixtures[0].ID}},
		{"status", ReservationFilter{Status: ReservationStatusCancelled}, []string{fixtures[1].ID}},
		{"limit", ReservationFilter{Limit: 2}, []string{fixtures[2].ID, fixtures[1].ID}},
		{"offset", ReservationFilter{Offset: 3}, []string{fixtures[3].ID}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ListReservations(ctx, tt.filter)
			if err != nil {
				t.Fatalf("failed to list: %v", err)
			}
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("got %d reservations, want %d", len(got), len(tt.wantIDs))
			}
			for i, r := range got {
				if r.ID != tt.wantIDs[i] {
					t.Errorf("reservation %d = %s, want %s", i, r.ID, tt.wantIDs[i])
				}
			}
		})
	}
}

func TestOccupancyAndHolderHours(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	active := reservation("2026-W42", 1, 0, 10, 12, "ada")
	held := reservation("2026-W42", 1, 1, 20, 20, "ada")
	held.Status = ReservationStatusHeld
	gone := reservation("2026-W42", 2, 0, 8, 9, "ada")
	elsewhere := reservation("2026-W43", 1, 0, 10, 12, "ada")
	for _, r := range []*Reservation{active, held, gone, elsewhere} {
		if err := store.CreateReservation(ctx, r); err != nil {
			t.Fatalf("failed to create reservation: %v", err)
		}
	}
	if _, err := store.CancelReservation(ctx, gone.ID); err != nil {
		t.Fatalf("failed to cancel: %v", err)
	}

	occ, err := store.Occupancy(ctx, "2026-W42")
	if err != nil {
		t.Fatalf("failed to load occupancy: %v", err)
	}
	if occ.Count() != 4 {
		t.Errorf("Count() = %d, want 4", occ.Count())
	}
	for _, c := range []struct {
		day, hour, res int
		want           bool
	}{
		{1, 10, 0, true},
		{1, 12, 0, true},
		{1, 13, 0, false},
		{1, 20, 1, true},
		{2, 8, 0, false},
	} {
		if got := occ.IsBooked(c.day, c.hour, c.res); got != c.want {
			t.Errorf("IsBooked(%d,%d,%d) = %v, want %v", c.day, c.hour, c.res, got, c.want)
		}
	}

	hours, err := store.HolderHours(ctx, "2026-W42", "ada")
	if err != nil {
		t.Fatalf("failed to sum hours: %v", err)
	}
	if hours != 4 {
		t.Errorf("HolderHours() = %d, want 4", hours)
	}

	hours, err = store.HolderHours(ctx, "2026-W42", "nobody")
	if err != nil {
		t.Fatalf("failed to sum hours: %v", err)
	}
	if hours != 0 {
		t.Errorf("HolderHours(nobody) = %d, want 0", hours)
	}
}

func TestEvents(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	r := reservation("2026-W42", 1, 0, 10, 12, "ada")
	if err := store.CreateReservation(ctx, r); err != nil {
		t.Fatalf("failed to create reservation: %v", err)
	}

	events := []*Event{
		{ReservationID: &r.ID, Kind: EventKindCreated, Message: "created"},
		{Kind: EventKindReloaded, Message: "5 rules"},
		{ReservationID: &r.ID, Kind: EventKindCancelled, Message: "cancelled"},
	}
	for _, e := range events {
		if err := store.AppendEvent(ctx, e); err != nil {
			t.Fatalf("failed to append event: %v", err)
		}
		if e.ID == 0 {
			t.Error("expected event ID")
		}
	}

	all, err := store.ListEvents(ctx, nil, 0, 0)
	if err != nil {
		t.Fatalf("failed to list events: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d events, want 3", len(all))
	}
	if all[1].ReservationID != nil || all[1].Kind != EventKindReloaded {
		t.Errorf("unexpected event: %+v", all[1])
	}

	forRes, err := store.ListEvents(ctx, &r.ID, 0, 0)
	if err != nil {
		t.Fatalf("failed to list events: %v", err)
	}
	if len(forRes) != 2 || forRes[1].Kind != EventKindCancelled {
		t.Errorf("reservation events = %+v", forRes)
	}

	page, err := store.ListEvents(ctx, nil, 1, 1)
	if err != nil {
		t.Fatalf("failed to list events: %v", err)
	}
	if len(page) != 1 || page[0].ID != all[1].ID {
		t.Errorf("page = %+v", page)
	}
}
