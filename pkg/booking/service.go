package booking

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/JollyGrin/waterhouse-rsvp/pkg/admission"
	"github.com/JollyGrin/waterhouse-rsvp/pkg/grid"
	"github.com/JollyGrin/waterhouse-rsvp/pkg/rules"
	"github.com/JollyGrin/waterhouse-rsvp/pkg/stores"
	"github.com/JollyGrin/waterhouse-rsvp/pkg/telemetry"
)

// Store is the persistence the service needs. *stores.SQLiteStore
// satisfies it.
type Store interface {
	CreateReservation(ctx context.Context, r *stores.Reservation) error
	GetReservation(ctx context.Context, id string) (*stores.Reservation, error)
	ListReservations(ctx context.Context, filter stores.ReservationFilter) ([]*stores.Reservation, error)
	ConfirmReservation(ctx context.Context, id string) (*stores.Reservation, error)
	CancelReservation(ctx context.Context, id string) (*stores.Reservation, error)
	Occupancy(ctx context.Context, week string) (*grid.Occupancy, error)
	HolderHours(ctx context.Context, week, holder string) (int, error)
	AppendEvent(ctx context.Context, event *stores.Event) error
	ListEvents(ctx context.Context, reservationID *string, limit, offset int) ([]*stores.Event, error)
}

// Admitter decides whether a rule-valid booking may proceed.
// *admission.Engine satisfies it.
type Admitter interface {
	Evaluate(ctx context.Context, req admission.Request, holderHours int) (*admission.Result, error)
}

// DefaultResources is the grid width when none is configured.
const DefaultResources = 4

// Service owns the rule engine, the reservation store and the occupancy
// predicate handed to the engine. Each call takes one occupancy snapshot so
// the predicate is stable for the whole engine call.
type Service struct {
	rules     *rules.Holder
	store     Store
	admitter  Admitter
	tel       *telemetry.Telemetry
	logger    zerolog.Logger
	resources int
}

// Option configures a Service.
type Option func(*Service)

// WithAdmitter enables admission policies for Book.
func WithAdmitter(a Admitter) Option {
	return func(s *Service) { s.admitter = a }
}

// WithTelemetry sets the telemetry used for spans, metrics and events.
func WithTelemetry(tel *telemetry.Telemetry) Option {
	return func(s *Service) { s.tel = tel }
}

// WithResources sets the number of resource columns.
func WithResources(n int) Option {
	return func(s *Service) { s.resources = n }
}

// NewService creates a booking service.
func NewService(holder *rules.Holder, store Store, opts ...Option) *Service {
	s := &Service{
		rules:     holder,
		store:     store,
		resources: DefaultResources,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tel == nil {
		s.tel = telemetry.Nop()
	}
	s.logger = s.tel.Logger.NewComponentLogger("booking").Zerolog()
	s.tel.Metrics.SetRulesLoaded(holder.Engine().Len())
	return s
}

// Rules returns the engine currently in force.
func (s *Service) Rules() *rules.Engine {
	return s.rules.Engine()
}

// Resources returns the number of resource columns.
func (s *Service) Resources() int {
	return s.resources
}

// Report is the outcome of Check.
type Report struct {
	Selection  grid.Selection  `json:"selection"`
	Valid      bool            `json:"valid"`
	Verdicts   []rules.Verdict `json:"verdicts"`
	Rejections []string        `json:"rejections,omitempty"`
}

// BookRequest describes a reservation to create.
type BookRequest struct {
	Week      string
	Selection grid.Selection
	Holder    string
	Note      string

	// Hold creates the reservation as held instead of confirmed.
	Hold bool
}

// Propose computes the span a click at (day, hour, resource) would select.
// Clicking a booked cell is a SLOT_TAKEN conflict.
func (s *Service) Propose(ctx context.Context, week string, day, hour, resource int) (sel grid.Selection, err error) {
	op := s.tel.StartOperation(ctx, "propose",
		telemetry.AttrWeek.String(week),
		telemetry.AttrDay.Int(day),
		telemetry.AttrResource.Int(resource),
	)
	defer func() { op.End(err) }()

	if err := s.checkCell(week, day, hour, resource); err != nil {
		return grid.Empty(), err
	}

	occ, err := s.store.Occupancy(op.Ctx, week)
	if err != nil {
		return grid.Empty(), grid.NewInternalError("failed to load occupancy", err).WithOp("propose")
	}
	if occ.IsBooked(day, hour, resource) {
		return grid.Empty(), grid.NewConflictError(
			fmt.Sprintf("%s is already booked", grid.SingleHour(day, hour, resource)), nil,
		).WithCode(grid.ErrCodeSlotTaken).WithOp("propose")
	}

	eng := s.rules.Engine()
	sel = eng.CalculateSelection(day, hour, resource, occ.IsBooked)
	s.tel.Metrics.RecordSelection("propose", governingKind(eng, day, resource, hour))

	op.Logger.Debugf("Proposed %s", sel)
	return sel, nil
}

// Extend grows sel towards newHour. A refused extension returns sel
// unchanged without an error.
func (s *Service) Extend(ctx context.Context, week string, sel grid.Selection, newHour int) (out grid.Selection, err error) {
	op := s.tel.StartOperation(ctx, "extend",
		append(telemetry.SelectionAttributes(sel.Day, sel.Resource, sel.Start, sel.End),
			telemetry.AttrWeek.String(week))...,
	)
	defer func() { op.End(err) }()

	if err := s.checkSelection(week, sel); err != nil {
		return sel, err
	}
	if !grid.ValidHour(newHour) {
		return sel, grid.NewInvalidError(fmt.Sprintf("hour %d is outside the grid", newHour), nil).
			WithCode(grid.ErrCodeBadSelection).WithOp("extend")
	}

	occ, err := s.store.Occupancy(op.Ctx, week)
	if err != nil {
		return sel, grid.NewInternalError("failed to load occupancy", err).WithOp("extend")
	}

	eng := s.rules.Engine()
	out = eng.ExtendSelection(sel, newHour, occ.IsBooked)
	s.tel.Metrics.RecordSelection("extend", governingKind(eng, sel.Day, sel.Resource, newHour))
	return out, nil
}

// Check validates sel against every rule scoped to its day and resource.
func (s *Service) Check(ctx context.Context, sel grid.Selection) (report *Report, err error) {
	op := s.tel.StartOperation(ctx, "check", telemetry.SelectionAttributes(sel.Day, sel.Resource, sel.Start, sel.End)...)
	defer func() { op.End(err) }()

	if err := s.checkBounds(sel); err != nil {
		return nil, err
	}

	report = s.check(sel)
	return report, nil
}

func (s *Service) check(sel grid.Selection) *Report {
	eng := s.rules.Engine()
	verdicts := eng.Explain(sel)
	report := &Report{
		Selection:  sel,
		Valid:      eng.ValidateSelection(sel),
		Verdicts:   verdicts,
		Rejections: rules.Rejections(verdicts),
	}
	s.tel.Metrics.RecordValidation(report.Valid, report.Rejections)
	return report
}

// Book validates, re-checks occupancy, runs admission and persists the
// reservation.
func (s *Service) Book(ctx context.Context, req BookRequest) (res *stores.Reservation, err error) {
	sel := req.Selection
	op := s.tel.StartOperation(ctx, "book",
		append(telemetry.SelectionAttributes(sel.Day, sel.Resource, sel.Start, sel.End),
			telemetry.AttrWeek.String(req.Week))...,
	)
	defer func() { op.End(err) }()

	if err := s.checkSelection(req.Week, sel); err != nil {
		return nil, err
	}
	holder := strings.TrimSpace(req.Holder)

	report := s.check(sel)
	if !report.Valid {
		return nil, s.reject(op, req.Week, sel,
			grid.NewInvalidError(fmt.Sprintf("%s rejected by %s", sel, strings.Join(report.Rejections, ", ")), nil).
				WithCode(grid.ErrCodeRuleRejected).
				WithOp("book").
				WithDetail("rules", report.Rejections),
			report.Rejections)
	}

	occ, err := s.store.Occupancy(op.Ctx, req.Week)
	if err != nil {
		return nil, grid.NewInternalError("failed to load occupancy", err).WithOp("book")
	}
	if occ.Conflicts(sel) {
		return nil, s.reject(op, req.Week, sel,
			grid.NewConflictError(fmt.Sprintf("%s overlaps an existing reservation", sel), nil).
				WithCode(grid.ErrCodeSlotTaken).WithOp("book"),
			[]string{"overlaps an existing reservation"})
	}

	if s.admitter != nil {
		if err := s.admit(op, req.Week, sel, holder); err != nil {
			return nil, err
		}
	}

	status := stores.ReservationStatusConfirmed
	if req.Hold {
		status = stores.ReservationStatusHeld
	}
	res = &stores.Reservation{
		Week:      req.Week,
		Day:       sel.Day,
		Resource:  sel.Resource,
		StartHour: sel.Start,
		EndHour:   sel.End,
		Status:    status,
		Holder:    holder,
		Note:      req.Note,
		RuleNames: appliedRules(report.Verdicts),
	}
	if err := s.store.CreateReservation(op.Ctx, res); err != nil {
		if grid.CodeOf(err) == grid.ErrCodeSlotTaken {
			return nil, s.reject(op, req.Week, sel, err, []string{"overlaps an existing reservation"})
		}
		return nil, err
	}

	s.record(op, stores.EventKindCreated, res, fmt.Sprintf("%s reserved %s", holder, sel))
	_ = s.tel.Events.PublishReservationCreated(res.ID, res.Week, holder, sel.String())

	op.Logger.WithReservationID(res.ID).Infof("Reserved %s for %s", sel, holder)
	return res, nil
}

// admit runs admission policies. Warnings are logged; blocking violations
// become ADMISSION_DENIED.
func (s *Service) admit(op *telemetry.InstrumentedContext, week string, sel grid.Selection, holder string) error {
	hours, err := s.store.HolderHours(op.Ctx, week, holder)
	if err != nil {
		return grid.NewInternalError("failed to sum holder hours", err).WithOp("book")
	}

	result, err := s.admitter.Evaluate(op.Ctx, admission.Request{
		Week:      week,
		Day:       sel.Day,
		Resource:  sel.Resource,
		Label:     grid.ResourceLabel(sel.Resource),
		StartHour: sel.Start,
		EndHour:   sel.End,
		Hours:     sel.Len(),
		Holder:    holder,
	}, hours)
	if err != nil {
		return grid.NewInternalError("admission evaluation failed", err).WithOp("book")
	}

	for _, w := range result.Warnings {
		op.Logger.WithField("policy", w.Policy).Warn(w.Message)
	}
	if result.Allowed {
		return nil
	}

	var messages, policies []string
	for _, v := range result.Violations {
		messages = append(messages, v.Message)
		policies = append(policies, v.Policy)
	}
	return s.reject(op, week, sel,
		grid.NewInvalidError(fmt.Sprintf("%s denied: %s", sel, strings.Join(messages, "; ")), nil).
			WithCode(grid.ErrCodeAdmissionDenied).
			WithOp("book").
			WithDetail("policies", policies),
		messages)
}

// reject records a refused booking and returns err.
func (s *Service) reject(op *telemetry.InstrumentedContext, week string, sel grid.Selection, err error, reasons []string) error {
	code := grid.CodeOf(err)
	s.record(op, stores.EventKindRejected, nil, fmt.Sprintf("%s %s (%s): %s", week, sel, code, strings.Join(reasons, "; ")))
	_ = s.tel.Events.PublishSelectionRejected(week, sel.String(), code, reasons)
	op.Logger.WithField("code", code).Infof("Rejected %s", sel)
	return err
}

// Confirm moves a held reservation to confirmed.
func (s *Service) Confirm(ctx context.Context, id string) (res *stores.Reservation, err error) {
	op := s.tel.StartOperation(ctx, "confirm", telemetry.AttrReservationID.String(id))
	defer func() { op.End(err) }()

	before, err := s.store.GetReservation(op.Ctx, id)
	if err != nil {
		return nil, err
	}
	res, err = s.store.ConfirmReservation(op.Ctx, id)
	if err != nil {
		return nil, err
	}
	if before.Status == res.Status {
		return res, nil
	}

	s.record(op, stores.EventKindConfirmed, res, fmt.Sprintf("confirmed for %s", res.Holder))
	_ = s.tel.Events.PublishReservationConfirmed(res.ID, res.Week, res.Holder)
	return res, nil
}

// Cancel releases a reservation.
func (s *Service) Cancel(ctx context.Context, id string) (res *stores.Reservation, err error) {
	op := s.tel.StartOperation(ctx, "cancel", telemetry.AttrReservationID.String(id))
	defer func() { op.End(err) }()

	res, err = s.store.CancelReservation(op.Ctx, id)
	if err != nil {
		return nil, err
	}

	s.record(op, stores.EventKindCancelled, res, fmt.Sprintf("cancelled for %s", res.Holder))
	_ = s.tel.Events.PublishReservationCancelled(res.ID, res.Week, res.Holder)
	op.Logger.WithReservationID(id).Info("Reservation cancelled")
	return res, nil
}

// List returns reservations matching filter.
func (s *Service) List(ctx context.Context, filter stores.ReservationFilter) (out []*stores.Reservation, err error) {
	op := s.tel.StartOperation(ctx, "list", telemetry.AttrWeek.String(filter.Week))
	defer func() { op.End(err) }()

	return s.store.ListReservations(op.Ctx, filter)
}

// History returns the event log of one reservation, or every event when id
// is empty.
func (s *Service) History(ctx context.Context, id string) (out []*stores.Event, err error) {
	op := s.tel.StartOperation(ctx, "history", telemetry.AttrReservationID.String(id))
	defer func() { op.End(err) }()

	var filter *string
	if id != "" {
		filter = &id
	}
	return s.store.ListEvents(op.Ctx, filter, 0, 0)
}

// RulesReloaded is a rules.Loader reload callback: it records the outcome
// in metrics, the event log and the event publisher.
func (s *Service) RulesReloaded(eng *rules.Engine, err error) {
	var (
		count int
		msg   string
	)
	if err != nil {
		msg = fmt.Sprintf("reload failed: %v", err)
	} else {
		count = eng.Len()
		msg = fmt.Sprintf("%d rules active", count)
	}

	s.tel.Metrics.RecordRuleReload(count, err)
	_ = s.tel.Events.PublishRulesReloaded(count, err)

	event := &stores.Event{Kind: stores.EventKindReloaded, Message: msg}
	if appendErr := s.store.AppendEvent(context.Background(), event); appendErr != nil {
		s.logger.Warn().Err(appendErr).Msg("Failed to record rule reload")
	}
}

// record appends to the event log. Failures are logged, not returned: the
// reservation change itself already happened.
func (s *Service) record(op *telemetry.InstrumentedContext, kind stores.EventKind, res *stores.Reservation, msg string) {
	event := &stores.Event{Kind: kind, Message: msg}
	if res != nil {
		id := res.ID
		event.ReservationID = &id
		s.tel.Metrics.RecordReservation(string(res.Status))
	}
	if err := s.store.AppendEvent(op.Ctx, event); err != nil {
		op.Logger.WithError(err).Warn("Failed to append event")
	}
}

func (s *Service) checkCell(week string, day, hour, resource int) error {
	if _, _, err := ParseWeek(week); err != nil {
		return err
	}
	if day < 0 || day >= grid.DaysPerWeek || resource < 0 || resource >= s.resources || !grid.ValidHour(hour) {
		return grid.NewInvalidError(
			fmt.Sprintf("cell day=%d hour=%d %s is outside the grid", day, hour, grid.ResourceLabel(resource)), nil,
		).WithCode(grid.ErrCodeBadSelection)
	}
	return nil
}

func (s *Service) checkSelection(week string, sel grid.Selection) error {
	if _, _, err := ParseWeek(week); err != nil {
		return err
	}
	return s.checkBounds(sel)
}

func (s *Service) checkBounds(sel grid.Selection) error {
	if sel.IsEmpty() || !sel.InBounds() || sel.Day >= grid.DaysPerWeek || sel.Resource >= s.resources {
		return grid.NewInvalidError(fmt.Sprintf("selection %s is outside the grid", sel), nil).
			WithCode(grid.ErrCodeBadSelection)
	}
	return nil
}

// governingKind names the kind of the rule that resolves calculate and
// extend at the hour, or "" when none applies.
func governingKind(eng *rules.Engine, day, resource, hour int) string {
	applicable := eng.ApplicableRulesAt(day, resource, hour)
	if len(applicable) == 0 {
		return ""
	}
	return applicable[0].Kind().String()
}

// appliedRules lists the rules whose window the span touches.
func appliedRules(verdicts []rules.Verdict) []string {
	var names []string
	for _, v := range verdicts {
		if v.Applies {
			names = append(names, v.Rule)
		}
	}
	return names
}
