package bus

import (
	"sync"
	"time"

	"github.com/farmpulse/backend/internal/utils"
	"go.uber.org/zap"
)

// EventType distinguishes bus event payloads
type EventType string

const (
	// EventReading carries a validated schema.SensorReading
	EventReading EventType = "reading"
	// EventAlert carries a models.Alert
	EventAlert EventType = "alert"
)

// Event is one message flowing through the bus
type Event struct {
	Type      EventType   `json:"type"`
	SensorID  string      `json:"sensor_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// Bus is an in-process publish/subscribe dispatcher. Every published event
// reaches every subscription in publish order. Delivery to each
// subscription runs on its own goroutine with an unbounded backlog, so a
// slow consumer never blocks publishers or other consumers; the bus itself
// never drops events.
type Bus struct {
	logger *utils.Logger

	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
}

// Subscription is one consumer's ordered view of the event stream
type Subscription struct {
	id  uint64
	out chan Event

	mu      sync.Mutex
	backlog []Event
	wake    chan struct{}
	done    chan struct{}
	closed  bool
}

// New creates an event bus
func New(logger *utils.Logger) *Bus {
	return &Bus{
		logger: logger.Named("event_bus"),
		subs:   make(map[uint64]*Subscription),
	}
}

// Subscribe registers a new consumer and starts its delivery goroutine
func (b *Bus) Subscribe() *Subscription {
	sub := &Subscription{
		out:  make(chan Event),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}

	b.mu.Lock()
	b.nextID++
	sub.id = b.nextID
	b.subs[sub.id] = sub
	b.mu.Unlock()

	go sub.deliver()

	b.logger.Debug("Subscriber added", zap.Uint64("subscription_id", sub.id))
	return sub
}

// Unsubscribe removes a consumer. Safe to call more than once and from any
// goroutine; pending events for that consumer are discarded.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	_, present := b.subs[sub.id]
	delete(b.subs, sub.id)
	b.mu.Unlock()

	sub.close()

	if present {
		b.logger.Debug("Subscriber removed", zap.Uint64("subscription_id", sub.id))
	}
}

// Publish forwards the event to every current subscription. It never
// blocks on consumers: each append is O(1) into the subscription backlog.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		sub.enqueue(event)
	}
}

// Events returns the subscription's ordered event stream. The channel is
// closed when the subscription is removed from the bus.
func (s *Subscription) Events() <-chan Event {
	return s.out
}

// enqueue appends the event to the backlog and wakes the delivery goroutine
func (s *Subscription) enqueue(event Event) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.backlog = append(s.backlog, event)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// deliver drains the backlog into the out channel in FIFO order
func (s *Subscription) deliver() {
	defer close(s.out)

	for {
		s.mu.Lock()
		var next Event
		have := len(s.backlog) > 0
		if have {
			next = s.backlog[0]
			s.backlog = s.backlog[1:]
		}
		s.mu.Unlock()

		if !have {
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			}
		}

		select {
		case s.out <- next:
		case <-s.done:
			return
		}
	}
}

// close marks the subscription dead and stops delivery; idempotent
func (s *Subscription) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.backlog = nil
	s.mu.Unlock()

	close(s.done)
}
