package live

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/farmpulse/backend/internal/bus"
	"github.com/farmpulse/backend/internal/config"
	"github.com/farmpulse/backend/internal/utils"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// Frame is one message pushed to a live dashboard client. Dropped is the
// cumulative number of events this subscriber has lost to queue overflow,
// surfaced so the dashboard can show a degraded-live indicator.
type Frame struct {
	Type      bus.EventType `json:"type"`
	SensorID  string        `json:"sensor_id"`
	Timestamp time.Time     `json:"timestamp"`
	Dropped   uint64        `json:"dropped"`
	Payload   interface{}   `json:"payload"`
}

// Subscriber is one connected dashboard client
type Subscriber struct {
	ID        string
	CreatedAt time.Time

	conn  *websocket.Conn
	queue *eventQueue
	wake  chan struct{}
	done  chan struct{}
	once  sync.Once
}

// Drops returns how many events this subscriber has lost to overflow
func (s *Subscriber) Drops() uint64 {
	return s.queue.drops()
}

// Manager tracks connected dashboard clients and pushes bus events to them
// with bounded buffering. One slow client never stalls ingestion or the
// other clients.
type Manager struct {
	logger   *utils.Logger
	bus      *bus.Bus
	capacity int

	mu          sync.RWMutex
	subscribers map[string]*Subscriber

	sub    *bus.Subscription
	cancel context.CancelFunc
}

// NewManager creates a live channel manager
func NewManager(cfg *config.LiveConfig, eventBus *bus.Bus, logger *utils.Logger) *Manager {
	return &Manager{
		logger:      logger.Named("live_manager"),
		bus:         eventBus,
		capacity:    cfg.QueueCapacity,
		subscribers: make(map[string]*Subscriber),
	}
}

// Start subscribes the manager to the event bus and begins fanning events
// out to connected clients
func (m *Manager) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	m.sub = m.bus.Subscribe()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-m.sub.Events():
				if !ok {
					return
				}
				m.onBusEvent(event)
			}
		}
	}()

	m.logger.Info("Live channel manager started")
}

// Stop detaches from the bus and disconnects all clients
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	if m.sub != nil {
		m.bus.Unsubscribe(m.sub)
	}

	m.mu.RLock()
	subs := make([]*Subscriber, 0, len(m.subscribers))
	for _, sub := range m.subscribers {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	for _, sub := range subs {
		m.Disconnect(sub)
	}

	m.logger.Info("Live channel manager stopped")
}

// Connect registers a websocket client and starts its read/write pumps
func (m *Manager) Connect(conn *websocket.Conn) *Subscriber {
	sub := &Subscriber{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		conn:      conn,
		queue:     newEventQueue(m.capacity),
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}

	m.mu.Lock()
	m.subscribers[sub.ID] = sub
	m.mu.Unlock()

	go m.writePump(sub)
	go m.readPump(sub)

	m.logger.Debug("Client connected", zap.String("subscriber_id", sub.ID))
	return sub
}

// Disconnect removes a client and discards its queue. Idempotent and safe
// from any goroutine; other subscribers are unaffected.
func (m *Manager) Disconnect(sub *Subscriber) {
	if sub == nil {
		return
	}

	sub.once.Do(func() {
		m.mu.Lock()
		delete(m.subscribers, sub.ID)
		m.mu.Unlock()

		close(sub.done)
		sub.conn.Close()

		m.logger.Debug("Client disconnected",
			zap.String("subscriber_id", sub.ID),
			zap.Uint64("dropped", sub.queue.drops()))
	})
}

// SubscriberCount returns the number of connected clients
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscribers)
}

// onBusEvent enqueues the event for every connected subscriber
func (m *Manager) onBusEvent(event bus.Event) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, sub := range m.subscribers {
		if sub.queue.push(event) {
			m.logger.Debug("Subscriber queue overflow, dropped oldest event",
				zap.String("subscriber_id", sub.ID),
				zap.Uint64("dropped", sub.queue.drops()))
		}
		select {
		case sub.wake <- struct{}{}:
		default:
		}
	}
}

// writePump drains the subscriber queue onto the websocket
func (m *Manager) writePump(sub *Subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		m.Disconnect(sub)
	}()

	for {
		select {
		case <-sub.done:
			return

		case <-sub.wake:
			for {
				event, ok := sub.queue.pop()
				if !ok {
					break
				}
				if err := m.writeEvent(sub, event); err != nil {
					return
				}
			}

		case <-ticker.C:
			sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// writeEvent marshals and sends one frame
func (m *Manager) writeEvent(sub *Subscriber, event bus.Event) error {
	frame := Frame{
		Type:      event.Type,
		SensorID:  event.SensorID,
		Timestamp: event.Timestamp,
		Dropped:   sub.queue.drops(),
		Payload:   event.Payload,
	}

	payload, err := json.Marshal(frame)
	if err != nil {
		m.logger.Error("Failed to marshal live frame",
			zap.String("subscriber_id", sub.ID),
			zap.Error(err))
		return nil
	}

	sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return sub.conn.WriteMessage(websocket.TextMessage, payload)
}

// readPump consumes client messages to keep pong handling alive and to
// detect disconnects
func (m *Manager) readPump(sub *Subscriber) {
	defer m.Disconnect(sub)

	sub.conn.SetReadLimit(512)
	sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	sub.conn.SetPongHandler(func(string) error {
		sub.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(
				err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseAbnormalClosure,
			) {
				m.logger.Warn("Unexpected websocket close",
					zap.String("subscriber_id", sub.ID),
					zap.Error(err))
			}
			return
		}
	}
}
