// Package events provides a best-effort notification bus for domain events
// raised by the session lifecycle worker and message handlers. Publication
// failures are logged, never surfaced to callers: the task queue and the
// Postgres store are the durable sources of truth, not this bus.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Subject names for the domain events this control plane publishes. Each is
// rooted under raworc.events so a single NATS subscription with a wildcard
// can observe everything.
const (
	SubjectSessionStateChanged    = "raworc.events.session.state_changed"
	SubjectSessionMessageReceived = "raworc.events.session.message_received"
	SubjectTaskCompleted          = "raworc.events.task.completed"
)

// Event is the envelope published on every subject.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Source    string         `json:"source"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// NewEvent builds an Event with the given type, source, and data. Source
// identifies the component that raised it, e.g. "worker" or "api".
func NewEvent(eventType, source string, data map[string]any) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// EventHandler processes a delivered event. A returned error is logged by
// the bus; it never blocks or retries delivery.
type EventHandler func(ctx context.Context, event *Event) error

// Subscription is a handle to an active subscription.
type Subscription interface {
	Unsubscribe() error
	IsValid() bool
}

// EventBus is the interface the lifecycle worker and API handlers depend on.
// NATSEventBus backs it in production; MemoryEventBus backs it in tests and
// in deployments with no NATS URL configured.
type EventBus interface {
	Publish(ctx context.Context, subject string, event *Event) error
	Subscribe(subject string, handler EventHandler) (Subscription, error)
	QueueSubscribe(subject, queue string, handler EventHandler) (Subscription, error)
	Close()
	IsConnected() bool
}
