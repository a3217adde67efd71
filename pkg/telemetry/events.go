package telemetry

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is an in-process notification about bookings and rule sets.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`

	// Type is one of the EventType constants.
	Type string `json:"type"`

	// Source names the emitting component.
	Source string `json:"source"`

	ReservationID string `json:"reservation_id,omitempty"`
	Week          string `json:"week,omitempty"`

	Message string `json:"message"`

	// Level is the event severity level (info, warning, error).
	Level string `json:"level"`

	Data map[string]interface{} `json:"data,omitempty"`
}

// Event types.
const (
	EventTypeReservationCreated   = "reservation.created"
	EventTypeReservationConfirmed = "reservation.confirmed"
	EventTypeReservationCancelled = "reservation.cancelled"
	EventTypeSelectionRejected    = "selection.rejected"
	EventTypeRulesReloaded        = "rules.reloaded"
)

// Event levels.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber is a function that handles events.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be processed.
type EventFilter func(event Event) bool

// EventPublisher fans events out to subscribers. Synchronous publishers
// deliver on the caller's goroutine; asynchronous ones queue events and
// deliver them in order from a single worker.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []subscriberEntry
	mu          sync.RWMutex
	wg          sync.WaitGroup
	closeOnce   sync.Once
	closed      chan struct{}
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a new event publisher with the given configuration.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	ep := &EventPublisher{
		config: cfg,
		closed: make(chan struct{}),
	}
	if !cfg.Enabled {
		return ep, nil
	}

	if cfg.EnableAsync {
		if cfg.BufferSize <= 0 {
			return nil, fmt.Errorf("event buffer size must be positive, got: %d", cfg.BufferSize)
		}
		ep.buffer = make(chan Event, cfg.BufferSize)
		ep.wg.Add(1)
		go ep.processEvents()
	}

	return ep, nil
}

// Publish stamps the event and delivers it to matching subscribers.
func (ep *EventPublisher) Publish(event Event) error {
	if ep == nil || !ep.config.Enabled {
		return nil
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Level == "" {
		event.Level = EventLevelInfo
	}

	if ep.buffer == nil {
		ep.deliverEvent(event)
		return nil
	}

	select {
	case <-ep.closed:
		return fmt.Errorf("event publisher stopped")
	default:
	}

	select {
	case ep.buffer <- event:
		return nil
	default:
		return fmt.Errorf("event buffer full, %s dropped", event.Type)
	}
}

// PublishReservationCreated announces a new reservation.
func (ep *EventPublisher) PublishReservationCreated(id, week, holder, span string) error {
	return ep.Publish(Event{
		Type:          EventTypeReservationCreated,
		Source:        "booking",
		ReservationID: id,
		Week:          week,
		Message:       fmt.Sprintf("%s reserved %s", holder, span),
		Level:         EventLevelInfo,
		Data: map[string]interface{}{
			"holder": holder,
			"span":   span,
		},
	})
}

// PublishReservationConfirmed announces a held reservation being confirmed.
func (ep *EventPublisher) PublishReservationConfirmed(id, week, holder string) error {
	return ep.Publish(Event{
		Type:          EventTypeReservationConfirmed,
		Source:        "booking",
		ReservationID: id,
		Week:          week,
		Message:       fmt.Sprintf("reservation %s confirmed for %s", id, holder),
		Level:         EventLevelInfo,
		Data: map[string]interface{}{
			"holder": holder,
		},
	})
}

// PublishReservationCancelled announces a released reservation.
func (ep *EventPublisher) PublishReservationCancelled(id, week, holder string) error {
	return ep.Publish(Event{
		Type:          EventTypeReservationCancelled,
		Source:        "booking",
		ReservationID: id,
		Week:          week,
		Message:       fmt.Sprintf("reservation %s cancelled for %s", id, holder),
		Level:         EventLevelInfo,
		Data: map[string]interface{}{
			"holder": holder,
		},
	})
}

// PublishSelectionRejected reports a booking attempt that was refused.
func (ep *EventPublisher) PublishSelectionRejected(week, span, code string, reasons []string) error {
	return ep.Publish(Event{
		Type:    EventTypeSelectionRejected,
		Source:  "booking",
		Week:    week,
		Message: fmt.Sprintf("%s rejected (%s): %s", span, code, strings.Join(reasons, "; ")),
		Level:   EventLevelWarning,
		Data: map[string]interface{}{
			"span":    span,
			"code":    code,
			"reasons": reasons,
		},
	})
}

// PublishRulesReloaded reports the outcome of a rule file reload.
func (ep *EventPublisher) PublishRulesReloaded(rules int, err error) error {
	if err != nil {
		return ep.Publish(Event{
			Type:    EventTypeRulesReloaded,
			Source:  "rules",
			Message: fmt.Sprintf("rule reload failed, keeping previous rules: %v", err),
			Level:   EventLevelError,
			Data: map[string]interface{}{
				"error": err.Error(),
			},
		})
	}
	return ep.Publish(Event{
		Type:    EventTypeRulesReloaded,
		Source:  "rules",
		Message: fmt.Sprintf("%d rules active", rules),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"rules": rules,
		},
	})
}

// Subscribe adds a subscriber. A nil filter receives every event.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()

	for {
		select {
		case event := <-ep.buffer:
			ep.deliverEvent(event)
		case <-ep.closed:
			// Drain what was queued before shutdown.
			for {
				select {
				case event := <-ep.buffer:
					ep.deliverEvent(event)
				default:
					return
				}
			}
		}
	}
}

func (ep *EventPublisher) deliverEvent(event Event) {
	ep.mu.RLock()
	entries := make([]subscriberEntry, len(ep.subscribers))
	copy(entries, ep.subscribers)
	ep.mu.RUnlock()

	for _, entry := range entries {
		if entry.filter != nil && !entry.filter(event) {
			continue
		}
		entry.subscriber(event)
	}
}

// Shutdown stops the publisher after delivering queued events.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	if ep == nil || !ep.config.Enabled {
		return nil
	}

	ep.closeOnce.Do(func() { close(ep.closed) })

	done := make(chan struct{})
	go func() {
		ep.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event publisher shutdown timeout")
	}
}

// FilterByLevel only allows events at minLevel or above.
func FilterByLevel(minLevel string) EventFilter {
	levels := map[string]int{
		EventLevelInfo:    0,
		EventLevelWarning: 1,
		EventLevelError:   2,
	}

	minLevelValue := levels[minLevel]

	return func(event Event) bool {
		return levels[event.Level] >= minLevelValue
	}
}

// FilterByType only allows events of the given types.
func FilterByType(types ...string) EventFilter {
	typeSet := make(map[string]bool)
	for _, t := range types {
		typeSet[t] = true
	}

	return func(event Event) bool {
		return typeSet[event.Type]
	}
}

// FilterByReservation only allows events about one reservation.
func FilterByReservation(id string) EventFilter {
	return func(event Event) bool {
		return event.ReservationID == id
	}
}
