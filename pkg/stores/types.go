package stores

import (
	"context"
	"time"

	"github.com/JollyGrin/waterhouse-rsvp/pkg/grid"
)

// ReservationStatus represents the lifecycle state of a reservation
type ReservationStatus string

const (
	ReservationStatusHeld      ReservationStatus = "held"
	ReservationStatusConfirmed ReservationStatus = "confirmed"
	ReservationStatusCancelled ReservationStatus = "cancelled"
)

// Active reports whether the reservation occupies its cells.
func (s ReservationStatus) Active() bool {
	return s == ReservationStatusHeld || s == ReservationStatusConfirmed
}

// EventKind names an entry in the reservation event log
type EventKind string

const (
	EventKindCreated   EventKind = "reservation.created"
	EventKindConfirmed EventKind = "reservation.confirmed"
	EventKindCancelled EventKind = "reservation.cancelled"
	EventKindRejected  EventKind = "selection.rejected"
	EventKindReloaded  EventKind = "rules.reloaded"
)

// Reservation is a persisted booking of one contiguous span.
type Reservation struct {
	ID        string            `json:"id"`
	Week      string            `json:"week"`
	Day       int               `json:"day"`
	Resource  int               `json:"resource"`
	StartHour int               `json:"start_hour"`
	EndHour   int               `json:"end_hour"` // inclusive
	Status    ReservationStatus `json:"status"`
	Holder    string            `json:"holder"`
	Note      string            `json:"note,omitempty"`
	RuleNames []string          `json:"rule_names,omitempty"` // rules that accepted the span
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Selection returns the reserved span.
func (r *Reservation) Selection() grid.Selection {
	return grid.NewSelection(r.Day, r.Resource, r.StartHour, r.EndHour)
}

// Hours returns the reserved length in hours.
func (r *Reservation) Hours() int {
	return r.EndHour - r.StartHour + 1
}

// ReservationFilter narrows ListReservations. Zero values match everything.
type ReservationFilter struct {
	Week     string
	Holder   string
	Day      *int
	Resource *int
	Status   ReservationStatus
	Limit    int
	Offset   int
}

// Event is an append-only log entry. ReservationID is nil for events that
// are not tied to a reservation, such as rule reloads.
type Event struct {
	ID            int64     `json:"id"`
	ReservationID *string   `json:"reservation_id,omitempty"`
	Kind          EventKind `json:"kind"`
	Message       string    `json:"message"`
	CreatedAt     time.Time `json:"created_at"`
}

// Store defines the interface for the persistence layer
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Reservation operations
	CreateReservation(ctx context.Context, r *Reservation) error
	GetReservation(ctx context.Context, id string) (*Reservation, error)
	ListReservations(ctx context.Context, filter ReservationFilter) ([]*Reservation, error)
	ConfirmReservation(ctx context.Context, id string) (*Reservation, error)
	CancelReservation(ctx context.Context, id string) (*Reservation, error)
	Occupancy(ctx context.Context, week string) (*grid.Occupancy, error)
	HolderHours(ctx context.Context, week, holder string) (int, error)

	// Event operations
	AppendEvent(ctx context.Context, event *Event) error
	ListEvents(ctx context.Context, reservationID *string, limit, offset int) ([]*Event, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
