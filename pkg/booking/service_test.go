package booking

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/rs/zerolog"

	"github.com/JollyGrin/waterhouse-rsvp/pkg/admission"
	"github.com/JollyGrin/waterhouse-rsvp/pkg/grid"
	"github.com/JollyGrin/waterhouse-rsvp/pkg/rules"
	"github.com/JollyGrin/waterhouse-rsvp/pkg/stores"
	"github.com/JollyGrin/waterhouse-rsvp/pkg/telemetry"
)

const week = "2026-W42"

type fixture struct {
	svc    *Service
	store  *stores.SQLiteStore
	events []telemetry.Event
}

func newFixture(t *testing.T, withAdmission bool) *fixture {
	t.Helper()
	logger := zerolog.New(nil).Level(zerolog.Disabled)

	store, err := stores.NewSQLiteStore(stores.Config{Path: stores.MemoryPath})
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("Failed to init store: %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Failed to migrate store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	cfg := telemetry.DefaultConfig()
	cfg.Events.EnableAsync = false
	tel, err := telemetry.NewTelemetryWithLogger(cfg, telemetry.NopLogger())
	if err != nil {
		t.Fatalf("Failed to create telemetry: %v", err)
	}

	f := &fixture{store: store}
	tel.Events.Subscribe(func(e telemetry.Event) { f.events = append(f.events, e) }, nil)

	opts := []Option{WithTelemetry(tel), WithResources(4)}
	if withAdmission {
		adm, err := admission.NewEngine(logger, admission.Limits{WeeklyHourCap: 12})
		if err != nil {
			t.Fatalf("Failed to create admission engine: %v", err)
		}
		opts = append(opts, WithAdmitter(adm))
	}

	f.svc = NewService(rules.NewHolder(rules.DefaultEngine(logger)), store, opts...)
	return f
}

func (f *fixture) book(t *testing.T, holder string, sel grid.Selection) *stores.Reservation {
	t.Helper()
	res, err := f.svc.Book(context.Background(), BookRequest{Week: week, Selection: sel, Holder: holder})
	if err != nil {
		t.Fatalf("Book(%s) error = %v", sel, err)
	}
	return res
}

func (f *fixture) eventTypes() []string {
	var types []string
	for _, e := range f.events {
		types = append(types, e.Type)
	}
	return types
}

func TestPropose(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	sel, err := f.svc.Propose(ctx, week, 1, 11, 0)
	if err != nil {
		t.Fatalf("Propose() error = %v", err)
	}
	if want := grid.NewSelection(1, 0, 10, 13); sel != want {
		t.Fatalf("Propose() = %v, want %v", sel, want)
	}

	f.book(t, "ada", sel)

	tests := []struct {
		name     string
		day      int
		hour     int
		resource int
		want     grid.Selection
		wantCode string
	}{
		{"next slot after booking", 1, 15, 0, grid.NewSelection(1, 0, 14, 17), ""},
		{"booked cell", 1, 12, 0, grid.Empty(), grid.ErrCodeSlotTaken},
		{"resource without rules selects one hour", 1, 12, 3, grid.SingleHour(1, 12, 3), ""},
		{"early morning single hour", 1, 8, 0, grid.SingleHour(1, 8, 0), ""},
		{"day out of grid", 7, 10, 0, grid.Empty(), grid.ErrCodeBadSelection},
		{"resource out of grid", 1, 10, 4, grid.Empty(), grid.ErrCodeBadSelection},
		{"hour out of grid", 1, 24, 0, grid.Empty(), grid.ErrCodeBadSelection},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.Propose(ctx, week, tt.day, tt.hour, tt.resource)
			if tt.wantCode != "" {
				if grid.CodeOf(err) != tt.wantCode {
					t.Fatalf("Propose() error = %v, want code %s", err, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("Propose() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Propose() = %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := f.svc.Propose(ctx, "2026-42", 1, 10, 0); grid.CodeOf(err) != grid.ErrCodeBadSelection {
		t.Errorf("bad week error = %v", err)
	}
}

func TestProposeSnapsToWindowStart(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	logger := zerolog.New(nil).Level(zerolog.Disabled)
	engine := rules.NewEngine(logger,
		rules.NewMinMaxDurationRule(rules.Scope{Name: "evening", Resources: []int{0}}, 15, 20, 1, 2),
		rules.NewFixedDurationRule(rules.Scope{Name: "blocks", Resources: []int{1}}, 10, 22, 4),
	)
	svc := NewService(rules.NewHolder(engine), f.store, WithResources(4))

	tests := []struct {
		name     string
		hour     int
		resource int
		want     grid.Selection
	}{
		{"min max", 12, 0, grid.NewSelection(1, 0, 15, 16)},
		{"fixed duration", 8, 1, grid.NewSelection(1, 1, 10, 13)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Propose(ctx, week, 1, tt.hour, tt.resource)
			if err != nil {
				t.Fatalf("Propose() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Propose() = %v, want %v", got, tt.want)
			}
			if _, err := svc.Book(ctx, BookRequest{Week: week, Selection: got, Holder: "ada"}); err != nil {
				t.Errorf("Book(%v) error = %v", got, err)
			}
		})
	}
}

func TestExtend(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	tests := []struct {
		name    string
		sel     grid.Selection
		newHour int
		want    grid.Selection
	}{
		{"slot grows by adjacent slot", grid.NewSelection(1, 1, 10, 13), 14, grid.NewSelection(1, 1, 10, 17)},
		{"partial slot refused", grid.SingleHour(1, 16, 1), 17, grid.SingleHour(1, 16, 1)},
		{"no rule grows one hour", grid.SingleHour(1, 16, 3), 17, grid.NewSelection(1, 3, 16, 17)},
		{"early morning hour by hour", grid.SingleHour(1, 7, 0), 8, grid.NewSelection(1, 0, 7, 8)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.Extend(ctx, week, tt.sel, tt.newHour)
			if err != nil {
				t.Fatalf("Extend() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Extend() = %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := f.svc.Extend(ctx, week, grid.SingleHour(1, 16, 1), 24); grid.CodeOf(err) != grid.ErrCodeBadSelection {
		t.Errorf("bad hour error = %v", err)
	}
	if _, err := f.svc.Extend(ctx, week, grid.Empty(), 10); grid.CodeOf(err) != grid.ErrCodeBadSelection {
		t.Errorf("empty selection error = %v", err)
	}
}

func TestCheck(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	report, err := f.svc.Check(ctx, grid.NewSelection(1, 0, 10, 13))
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !report.Valid || len(report.Rejections) != 0 {
		t.Errorf("report = %+v, want valid", report)
	}
	if len(report.Verdicts) != 4 {
		t.Errorf("verdicts = %+v, want 4 scoped rules", report.Verdicts)
	}

	// Studio 2 carries both the slot rule and the two hour cap.
	report, err = f.svc.Check(ctx, grid.NewSelection(1, 2, 15, 16))
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if report.Valid {
		t.Error("two hours off a slot should not validate")
	}
	if len(report.Rejections) != 1 || report.Rejections[0] != "four-hour-windows" {
		t.Errorf("rejections = %v", report.Rejections)
	}

	report, err = f.svc.Check(ctx, grid.NewSelection(1, 3, 5, 6))
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !report.Valid || len(report.Verdicts) != 0 {
		t.Errorf("report = %+v, want valid with no verdicts", report)
	}

	if _, err := f.svc.Check(ctx, grid.NewSelection(1, 9, 10, 11)); grid.CodeOf(err) != grid.ErrCodeBadSelection {
		t.Errorf("out of grid error = %v", err)
	}
}

func TestBook(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	res := f.book(t, "  ada ", grid.NewSelection(1, 0, 10, 13))
	if res.Holder != "ada" {
		t.Errorf("holder = %q, want trimmed", res.Holder)
	}
	if res.Status != stores.ReservationStatusConfirmed {
		t.Errorf("status = %s", res.Status)
	}
	if !reflect.DeepEqual(res.RuleNames, []string{"four-hour-windows", "weekday-blocks"}) {
		t.Errorf("RuleNames = %v", res.RuleNames)
	}

	tests := []struct {
		name     string
		sel      grid.Selection
		wantCode string
	}{
		{"rule rejects short block", grid.NewSelection(1, 0, 18, 20), grid.ErrCodeRuleRejected},
		{"overlap", grid.NewSelection(1, 0, 10, 13), grid.ErrCodeSlotTaken},
		{"out of grid", grid.NewSelection(1, 0, 20, 24), grid.ErrCodeBadSelection},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Book(ctx, BookRequest{Week: week, Selection: tt.sel, Holder: "bob"})
			if grid.CodeOf(err) != tt.wantCode {
				t.Errorf("Book() error = %v, want code %s", err, tt.wantCode)
			}
		})
	}

	var rejected *grid.Error
	_, err := f.svc.Book(ctx, BookRequest{Week: week, Selection: grid.NewSelection(1, 0, 18, 20), Holder: "bob"})
	if !errors.As(err, &rejected) || !grid.IsInvalid(err) {
		t.Fatalf("expected invalid *grid.Error, got %v", err)
	}
	if names, _ := rejected.Details["rules"].([]string); !reflect.DeepEqual(names, []string{"four-hour-windows", "weekday-blocks"}) {
		t.Errorf("rejection details = %v", rejected.Details)
	}

	history, err := f.svc.History(ctx, res.ID)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 1 || history[0].Kind != stores.EventKindCreated {
		t.Errorf("history = %+v", history)
	}

	all, err := f.svc.History(ctx, "")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	rejections := 0
	for _, e := range all {
		if e.Kind == stores.EventKindRejected {
			rejections++
		}
	}
	// Bad selections fail before the pipeline runs and are not logged.
	if rejections != 3 {
		t.Errorf("logged %d rejections, want 3", rejections)
	}
}

func TestBookAdmission(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	f.book(t, "ada", grid.NewSelection(1, 0, 10, 13))
	f.book(t, "ada", grid.NewSelection(1, 0, 14, 17))
	f.book(t, "ada", grid.NewSelection(2, 0, 10, 13))

	_, err := f.svc.Book(ctx, BookRequest{Week: week, Selection: grid.NewSelection(3, 0, 10, 13), Holder: "ada"})
	if grid.CodeOf(err) != grid.ErrCodeAdmissionDenied {
		t.Fatalf("over cap error = %v, want ADMISSION_DENIED", err)
	}

	// The cap is per week.
	if _, err := f.svc.Book(ctx, BookRequest{Week: "2026-W43", Selection: grid.NewSelection(3, 0, 10, 13), Holder: "ada"}); err != nil {
		t.Errorf("next week booking error = %v", err)
	}

	_, err = f.svc.Book(ctx, BookRequest{Week: week, Selection: grid.NewSelection(3, 0, 10, 13), Holder: " "})
	if grid.CodeOf(err) != grid.ErrCodeAdmissionDenied {
		t.Errorf("missing holder error = %v, want ADMISSION_DENIED", err)
	}

	var gerr *grid.Error
	if errors.As(err, &gerr) {
		if policies, _ := gerr.Details["policies"].([]string); len(policies) != 1 || policies[0] != "holder-required" {
			t.Errorf("policies = %v", gerr.Details["policies"])
		}
	}
}

func TestHoldConfirmCancel(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	res, err := f.svc.Book(ctx, BookRequest{Week: week, Selection: grid.NewSelection(1, 3, 16, 17), Holder: "ada", Hold: true})
	if err != nil {
		t.Fatalf("Book() error = %v", err)
	}
	if res.Status != stores.ReservationStatusHeld {
		t.Fatalf("status = %s, want held", res.Status)
	}

	// A held reservation occupies its cells.
	if _, err := f.svc.Propose(ctx, week, 1, 16, 3); grid.CodeOf(err) != grid.ErrCodeSlotTaken {
		t.Errorf("Propose on held cell error = %v", err)
	}

	confirmed, err := f.svc.Confirm(ctx, res.ID)
	if err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}
	if confirmed.Status != stores.ReservationStatusConfirmed {
		t.Errorf("status = %s", confirmed.Status)
	}
	if _, err := f.svc.Confirm(ctx, res.ID); err != nil {
		t.Errorf("second Confirm() error = %v", err)
	}

	if _, err := f.svc.Cancel(ctx, res.ID); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if _, err := f.svc.Cancel(ctx, res.ID); !grid.IsConflict(err) {
		t.Errorf("second Cancel() error = %v, want conflict", err)
	}
	if _, err := f.svc.Cancel(ctx, "missing"); !grid.IsNotFound(err) {
		t.Errorf("Cancel(missing) error = %v, want not found", err)
	}

	if _, err := f.svc.Propose(ctx, week, 1, 16, 3); err != nil {
		t.Errorf("cell should be free after cancel: %v", err)
	}

	history, err := f.svc.History(ctx, res.ID)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	var kinds []stores.EventKind
	for _, e := range history {
		kinds = append(kinds, e.Kind)
	}
	want := []stores.EventKind{stores.EventKindCreated, stores.EventKindConfirmed, stores.EventKindCancelled}
	if len(kinds) != len(want) {
		t.Fatalf("history kinds = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("history[%d] = %s, want %s", i, kinds[i], want[i])
		}
	}

	types := f.eventTypes()
	wantTypes := []string{
		telemetry.EventTypeReservationCreated,
		telemetry.EventTypeReservationConfirmed,
		telemetry.EventTypeReservationCancelled,
	}
	if len(types) != len(wantTypes) {
		t.Fatalf("published %v, want %v", types, wantTypes)
	}
	for i := range wantTypes {
		if types[i] != wantTypes[i] {
			t.Errorf("event %d = %s, want %s", i, types[i], wantTypes[i])
		}
	}
}

func TestList(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	f.book(t, "ada", grid.NewSelection(1, 0, 10, 13))
	f.book(t, "bob", grid.NewSelection(1, 1, 14, 17))

	got, err := f.svc.List(ctx, stores.ReservationFilter{Week: week, Holder: "bob"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 1 || got[0].Selection() != grid.NewSelection(1, 1, 14, 17) {
		t.Errorf("List() = %+v", got)
	}
}

func TestRulesReloaded(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	logger := zerolog.New(nil).Level(zerolog.Disabled)
	f.svc.RulesReloaded(rules.NewEngine(logger), nil)
	f.svc.RulesReloaded(nil, errors.New("rules.yaml: bad kind"))

	history, err := f.svc.History(ctx, "")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history = %+v", history)
	}
	for _, e := range history {
		if e.Kind != stores.EventKindReloaded || e.ReservationID != nil {
			t.Errorf("unexpected event %+v", e)
		}
	}

	if len(f.events) != 2 || f.events[1].Level != telemetry.EventLevelError {
		t.Errorf("published = %+v", f.events)
	}
}
