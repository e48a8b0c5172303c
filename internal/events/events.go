package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventBookingCreated    = "booking_created"
	EventBookingConfirmed  = "booking_confirmed"
	EventBookingCancelled  = "booking_cancelled"
	EventBookingCompleted  = "booking_completed"
	EventBookingExpired    = "booking_expired"
	EventBookingStatus     = "booking_status_changed"
	EventRefundRequested   = "refund_requested"
	EventRefundUpdated     = "refund_updated"
	EventScheduleDateState = "schedule_date_status_changed"
)

// BookingEventType maps a booking status to the event published when a booking enters it.
func BookingEventType(status string) string {
	switch status {
	case "PENDING":
		return EventBookingCreated
	case "CONFIRMED":
		return EventBookingConfirmed
	case "CANCELLED":
		return EventBookingCancelled
	case "COMPLETED":
		return EventBookingCompleted
	case "EXPIRED":
		return EventBookingExpired
	default:
		return EventBookingStatus
	}
}

// BookingEventPayload describes the minimal booking snapshot for event consumers.
type BookingEventPayload struct {
	BookingID      int64  `json:"booking_id"`
	BookingCode    string `json:"booking_code"`
	ScheduleID     int64  `json:"schedule_id"`
	DepartureDate  string `json:"departure_date"`
	PassengerCount int    `json:"passenger_count"`
	Status         string `json:"status"`
	PreviousStatus string `json:"previous_status,omitempty"`
	Notes          string `json:"notes,omitempty"`
	ChangedBy      string `json:"changed_by,omitempty"`
	ChangedByID    int64  `json:"changed_by_id,omitempty"`
}

type RefundEventPayload struct {
	RefundID     int64   `json:"refund_id"`
	BookingID    int64   `json:"booking_id"`
	BookingCode  string  `json:"booking_code"`
	Status       string  `json:"status"`
	RefundAmount int64   `json:"refund_amount"`
	Percentage   float64 `json:"percentage"`
	Reason       string  `json:"reason,omitempty"`
	ChangedBy    string  `json:"changed_by,omitempty"`
}

type ScheduleDatePayload struct {
	ScheduleID int64  `json:"schedule_id"`
	Date       string `json:"date"`
	Status     string `json:"status"`
	Reason     string `json:"reason,omitempty"`
	ExpiresAt  string `json:"expires_at,omitempty"`
	ChangedBy  string `json:"changed_by,omitempty"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the payload into v.
func (e *Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for the given event types.
func (b *EventBus) Subscribe(handler EventHandler, eventTypes ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range eventTypes {
		b.subscribers[t] = append(b.subscribers[t], handler)
	}
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	event, err := NewJSONEvent(eventType, payload)
	if err != nil {
		return err
	}
	b.Publish(&event)
	return nil
}

// NewJSONEvent builds an Event with JSON payload for manual publishing.
func NewJSONEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}
