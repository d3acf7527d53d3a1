// Package events provides the deferred-event queue: a retry mechanism that
// redelivers an event later with its original payload untouched. An event
// may only be deferred before any side effect has happened, so redelivery is
// always safe.
package events

import (
	"encoding/json"
	"strconv"
	"sync"
)

// Type names the lifecycle events that can be deferred.
type Type string

const (
	TypeClientCreated   Type = "client-created"
	TypeClientChanged   Type = "client-changed"
	TypeDatabaseCreated Type = "database-created"
)

// Event is one deferred lifecycle event. The payload is captured verbatim at
// defer time and redelivered unmodified.
type Event struct {
	Type Type
	// RelationID identifies the integration the event belongs to, when any.
	RelationID int64
	// Payload is the original event data, untouched.
	Payload json.RawMessage
}

func (e Event) key() string {
	return string(e.Type) + "/" + strconv.FormatInt(e.RelationID, 10)
}

// Queue holds deferred events in arrival order, one entry per (type,
// relation) pair. Dispatch is single threaded; the mutex only guards against
// the scheduler goroutine observing a defer mid-append.
type Queue struct {
	mu    sync.Mutex
	items []Event
	index map[string]struct{}
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{index: map[string]struct{}{}}
}

// Defer captures ev for later redelivery. Deferring an event already queued
// for the same type and relation is a no-op; the first payload wins since no
// newer information can exist for an event that never ran.
func (q *Queue) Defer(ev Event) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.index[ev.key()]; ok {
		return
	}
	q.index[ev.key()] = struct{}{}
	q.items = append(q.items, ev)
}

// Drain removes and returns all queued events in arrival order. The caller
// redelivers them one at a time; any that must defer again simply re-enter
// the queue.
func (q *Queue) Drain() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	drained := q.items
	q.items = nil
	q.index = map[string]struct{}{}
	return drained
}

// Len reports the number of queued events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Has reports whether an event of the given type is queued for the relation.
func (q *Queue) Has(t Type, relationID int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	_, ok := q.index[Event{Type: t, RelationID: relationID}.key()]
	return ok
}
