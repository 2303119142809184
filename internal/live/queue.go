package live

import (
	"sync"

	"github.com/farmpulse/backend/internal/bus"
)

// eventQueue is a bounded FIFO buffer of outbound events. On overflow the
// oldest event is dropped and counted; a live dashboard prefers fresh data
// over completeness, and gaps are recoverable by re-querying history.
type eventQueue struct {
	mu       sync.Mutex
	buf      []bus.Event
	capacity int
	dropped  uint64
}

func newEventQueue(capacity int) *eventQueue {
	return &eventQueue{capacity: capacity}
}

// push appends an event, evicting the oldest buffered event when full.
// Returns true when an event was evicted.
func (q *eventQueue) push(event bus.Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	evicted := false
	if len(q.buf) >= q.capacity {
		q.buf = q.buf[1:]
		q.dropped++
		evicted = true
	}
	q.buf = append(q.buf, event)
	return evicted
}

// pop removes and returns the oldest buffered event
func (q *eventQueue) pop() (bus.Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.buf) == 0 {
		return bus.Event{}, false
	}
	event := q.buf[0]
	q.buf = q.buf[1:]
	return event, true
}

// drops returns the number of events evicted so far
func (q *eventQueue) drops() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// length returns the number of buffered events
func (q *eventQueue) length() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf)
}
