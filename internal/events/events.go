package events

import (
	"encoding/json"
	"sync"
	"time"
)

// AppointmentEventPayload is the snapshot consumers get when a booking is
// submitted to the platform, accepted or not.
type AppointmentEventPayload struct {
	RequestID   string  `json:"request_id"`
	UserID      int64   `json:"user_id"`
	ClinicID    string  `json:"clinic_id"`
	ClinicName  string  `json:"clinic_name"`
	DoctorID    string  `json:"doctor_id"`
	DoctorName  string  `json:"doctor_name"`
	Date        string  `json:"date"`
	Slot        string  `json:"slot"`
	PatientName string  `json:"patient_name"`
	Fee         float64 `json:"fee"`
	Reason      string  `json:"reason,omitempty"`
}

// CatalogEventPayload reports the outcome of a catalog refresh.
type CatalogEventPayload struct {
	Clinics  int    `json:"clinics"`
	Duration string `json:"duration"`
	Error    string `json:"error,omitempty"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
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

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
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

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
