// Package events carries workspace domain events to subscribers outside the
// process.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Source identifies events emitted by this service.
const Source = "aletheia.workspace"

// Event types.
const (
	TypeBlockCreated        = "block.created"
	TypeBlockUpdated        = "block.updated"
	TypeBlockDeleted        = "block.deleted"
	TypeBlockRestored       = "block.restored"
	TypeRelationshipCreated = "relationship.created"
	TypeRelationshipDeleted = "relationship.deleted"
	TypeExportCreated       = "export.created"
	TypeProjectCreated      = "project.created"
	TypeProjectDeleted      = "project.deleted"
	TypeModeChanged         = "project.mode_changed"
)

// Event is a fact about one aggregate in one project.
type Event struct {
	ID          string         `json:"event_id"`
	Type        string         `json:"event_type"`
	ProjectID   string         `json:"project_id"`
	AggregateID string         `json:"aggregate_id"`
	UserID      string         `json:"user_id,omitempty"`
	Version     int            `json:"version,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
	OccurredAt  time.Time      `json:"occurred_at"`
}

// New stamps an event with a fresh id and the current time.
func New(eventType, projectID, aggregateID, userID string) Event {
	return Event{
		ID:          uuid.NewString(),
		Type:        eventType,
		ProjectID:   projectID,
		AggregateID: aggregateID,
		UserID:      userID,
		OccurredAt:  time.Now().UTC(),
	}
}

// With returns a copy of e carrying an extra data field.
func (e Event) With(key string, value any) Event {
	data := make(map[string]any, len(e.Data)+1)
	for k, v := range e.Data {
		data[k] = v
	}
	data[key] = value
	e.Data = data
	return e
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
}

// Noop discards every event.
type Noop struct{}

func (Noop) Publish(context.Context, ...Event) error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Publish(_ context.Context, events ...Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
	return nil
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types lists the published event types in order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
