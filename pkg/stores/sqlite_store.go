package stores

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"

	"github.com/JollyGrin/waterhouse-rsvp/pkg/grid"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// activeStatuses is the SQL list of statuses that occupy cells.
const activeStatuses = `('held', 'confirmed')`

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db  *sql.DB
	cfg Config
}

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 8
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 2
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}
	// Every connection to :memory: sees its own database.
	if cfg.Path == MemoryPath {
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
		cfg.ConnMaxLifetime = 0
	}

	return &SQLiteStore{cfg: cfg}, nil
}

// Init opens the database and applies connection pragmas.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := s.cfg.Path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"
	if s.cfg.Path != MemoryPath {
		dsn += "&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// CreateReservation inserts r after checking, in the same transaction, that
// no active reservation of the week overlaps it. An empty ID is filled with
// a new UUID and zero timestamps with the current time.
func (s *SQLiteStore) CreateReservation(ctx context.Context, r *Reservation) error {
	if !r.Selection().InBounds() {
		return grid.NewInvalidError(fmt.Sprintf("span %s is outside the grid", r.Selection()), nil).
			WithCode(grid.ErrCodeBadSelection).WithOp("create_reservation")
	}
	if r.Week == "" {
		return grid.NewInvalidError("week is required", nil).
			WithCode(grid.ErrCodeBadSelection).WithOp("create_reservation")
	}

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = ReservationStatusConfirmed
	}
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now

	ruleNames, err := json.Marshal(nonNil(r.RuleNames))
	if err != nil {
		return fmt.Errorf("failed to encode rule names: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existing string
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM reservations
		WHERE week = ? AND day = ? AND resource = ? AND status IN `+activeStatuses+`
		  AND start_hour <= ? AND end_hour >= ?
		LIMIT 1
	`, r.Week, r.Day, r.Resource, r.EndHour, r.StartHour).Scan(&existing)
	switch {
	case err == nil:
		return grid.NewConflictError(fmt.Sprintf("%s overlaps reservation %s", r.Selection(), existing), nil).
			WithCode(grid.ErrCodeSlotTaken).
			WithOp("create_reservation").
			WithDetail("reservation_id", existing)
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("failed to check overlap: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO reservations (id, week, day, resource, start_hour, end_hour, status, holder, note, rule_names, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID,
		r.Week,
		r.Day,
		r.Resource,
		r.StartHour,
		r.EndHour,
		r.Status,
		r.Holder,
		r.Note,
		string(ruleNames),
		r.CreatedAt,
		r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create reservation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reservation: %w", err)
	}
	return nil
}

const reservationColumns = `id, week, day, resource, start_hour, end_hour, status, holder, note, rule_names, created_at, updated_at`

// GetReservation retrieves a reservation by ID
func (s *SQLiteStore) GetReservation(ctx context.Context, id string) (*Reservation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)

	r, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, grid.NewNotFoundError(fmt.Sprintf("reservation not found: %s", id), nil).
			WithCode(grid.ErrCodeNotFound).WithOp("get_reservation")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	return r, nil
}

// ListReservations returns reservations matching filter ordered by week,
// day, resource and start hour.
func (s *SQLiteStore) ListReservations(ctx context.Context, filter ReservationFilter) ([]*Reservation, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.Week != "" {
		conds = append(conds, "week = ?")
		args = append(args, filter.Week)
	}
	if filter.Holder != "" {
		conds = append(conds, "holder = ?")
		args = append(args, filter.Holder)
	}
	if filter.Day != nil {
		conds = append(conds, "day = ?")
		args = append(args, *filter.Day)
	}
	if filter.Resource != nil {
		conds = append(conds, "resource = ?")
		args = append(args, *filter.Resource)
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, filter.Status)
	}

	query := `SELECT ` + reservationColumns + ` FROM reservations`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY week, day, resource, start_hour"
	if filter.Limit > 0 || filter.Offset > 0 {
		limit := filter.Limit
		if limit <= 0 {
			limit = -1
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	defer rows.Close()

	var out []*Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reservations: %w", err)
	}

	return out, nil
}

// ConfirmReservation moves a held reservation to confirmed. Confirming a
// confirmed reservation is a no-op.
func (s *SQLiteStore) ConfirmReservation(ctx context.Context, id string) (*Reservation, error) {
	return s.transition(ctx, "confirm_reservation", id, ReservationStatusConfirmed, func(from ReservationStatus) bool {
		return from == ReservationStatusHeld
	})
}

// CancelReservation releases an active reservation. Cancelling twice is a
// conflict.
func (s *SQLiteStore) CancelReservation(ctx context.Context, id string) (*Reservation, error) {
	return s.transition(ctx, "cancel_reservation", id, ReservationStatusCancelled, ReservationStatus.Active)
}

func (s *SQLiteStore) transition(ctx context.Context, op, id string, to ReservationStatus, allowed func(ReservationStatus) bool) (*Reservation, error) {
	r, err := s.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status == to && to != ReservationStatusCancelled {
		return r, nil
	}
	if !allowed(r.Status) {
		return nil, grid.NewConflictError(fmt.Sprintf("reservation %s is %s", id, r.Status), nil).
			WithOp(op).WithDetail("status", string(r.Status))
	}

	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE reservations SET status = ?, updated_at = ? WHERE id = ? AND status = ?
	`, to, now, id, r.Status)
	if err != nil {
		return nil, fmt.Errorf("failed to update reservation: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return nil, grid.NewConflictError(fmt.Sprintf("reservation %s changed concurrently", id), nil).WithOp(op)
	}

	r.Status = to
	r.UpdatedAt = now
	return r, nil
}

// Occupancy snapshots every active reservation of week.
func (s *SQLiteStore) Occupancy(ctx context.Context, week string) (*grid.Occupancy, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT day, resource, start_hour, end_hour FROM reservations
		WHERE week = ? AND status IN `+activeStatuses, week)
	if err != nil {
		return nil, fmt.Errorf("failed to load occupancy: %w", err)
	}
	defer rows.Close()

	var spans []grid.Selection
	for rows.Next() {
		var day, resource, start, end int
		if err := rows.Scan(&day, &resource, &start, &end); err != nil {
			return nil, fmt.Errorf("failed to scan occupancy: %w", err)
		}
		spans = append(spans, grid.NewSelection(day, resource, start, end))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating occupancy: %w", err)
	}

	return grid.NewOccupancy(spans...), nil
}

// HolderHours sums the active hours holder has reserved in week.
func (s *SQLiteStore) HolderHours(ctx context.Context, week, holder string) (int, error) {
	var hours int
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(end_hour - start_hour + 1), 0) FROM reservations
		WHERE week = ? AND holder = ? AND status IN `+activeStatuses, week, holder).Scan(&hours)
	if err != nil {
		return 0, fmt.Errorf("failed to sum holder hours: %w", err)
	}
	return hours, nil
}

// AppendEvent appends an event to the event log
func (s *SQLiteStore) AppendEvent(ctx context.Context, event *Event) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO events (reservation_id, kind, message, created_at)
		VALUES (?, ?, ?, ?)
	`,
		event.ReservationID,
		event.Kind,
		event.Message,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get event ID: %w", err)
	}

	event.ID = id
	return nil
}

// ListEvents returns events in insertion order, optionally for one
// reservation. A limit of zero returns all events.
func (s *SQLiteStore) ListEvents(ctx context.Context, reservationID *string, limit, offset int) ([]*Event, error) {
	query := `SELECT id, reservation_id, kind, message, created_at FROM events`
	var args []interface{}
	if reservationID != nil {
		query += " WHERE reservation_id = ?"
		args = append(args, *reservationID)
	}
	query += " ORDER BY id"
	if limit <= 0 {
		limit = -1
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		event := &Event{}
		var resID sql.NullString
		if err := rows.Scan(&event.ID, &resID, &event.Kind, &event.Message, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if resID.Valid {
			event.ReservationID = &resID.String
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReservation(row rowScanner) (*Reservation, error) {
	r := &Reservation{}
	var ruleNames string
	err := row.Scan(
		&r.ID,
		&r.Week,
		&r.Day,
		&r.Resource,
		&r.StartHour,
		&r.EndHour,
		&r.Status,
		&r.Holder,
		&r.Note,
		&ruleNames,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if ruleNames != "" {
		if err := json.Unmarshal([]byte(ruleNames), &r.RuleNames); err != nil {
			return nil, fmt.Errorf("failed to decode rule names: %w", err)
		}
	}
	return r, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
