package live

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/farmpulse/backend/internal/bus"
	"github.com/farmpulse/backend/internal/config"
	"github.com/farmpulse/backend/internal/utils"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type liveFixture struct {
	bus     *bus.Bus
	manager *Manager
	server  *httptest.Server
}

func newLiveFixture(t *testing.T, capacity int) *liveFixture {
	t.Helper()

	logger := &utils.Logger{Logger: zap.NewNop()}
	eventBus := bus.New(logger)
	manager := NewManager(&config.LiveConfig{QueueCapacity: capacity}, eventBus, logger)

	ctx, cancel := context.WithCancel(context.Background())
	manager.Start(ctx)

	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		manager.Connect(conn)
	}))

	t.Cleanup(func() {
		server.Close()
		manager.Stop()
		cancel()
	})

	return &liveFixture{bus: eventBus, manager: manager, server: server}
}

func (f *liveFixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var frame Frame
	require.NoError(t, json.Unmarshal(payload, &frame))
	return frame
}

func waitForSubscribers(t *testing.T, m *Manager, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for m.SubscriberCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("subscriber count stuck at %d, want %d", m.SubscriberCount(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestConnectedClientReceivesPublishedEvents(t *testing.T) {
	f := newLiveFixture(t, 16)
	conn := f.dial(t)
	waitForSubscribers(t, f.manager, 1)

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f.bus.Publish(bus.Event{
		Type:      bus.EventReading,
		SensorID:  "s1",
		Timestamp: at,
		Payload:   map[string]interface{}{"value": 21.5},
	})

	frame := readFrame(t, conn)
	assert.Equal(t, bus.EventReading, frame.Type)
	assert.Equal(t, "s1", frame.SensorID)
	assert.True(t, frame.Timestamp.Equal(at))
	assert.EqualValues(t, 0, frame.Dropped)
}

func TestEventsArriveInPublishOrder(t *testing.T) {
	f := newLiveFixture(t, 64)
	conn := f.dial(t)
	waitForSubscribers(t, f.manager, 1)

	for i := 0; i < 10; i++ {
		f.bus.Publish(bus.Event{Type: bus.EventReading, SensorID: "s1", Payload: float64(i)})
	}

	for i := 0; i < 10; i++ {
		frame := readFrame(t, conn)
		assert.Equal(t, float64(i), frame.Payload)
	}
}

func TestDisconnectLeavesOtherClientsWorking(t *testing.T) {
	f := newLiveFixture(t, 16)
	first := f.dial(t)
	second := f.dial(t)
	waitForSubscribers(t, f.manager, 2)

	first.Close()
	waitForSubscribers(t, f.manager, 1)

	f.bus.Publish(bus.Event{Type: bus.EventAlert, SensorID: "s1", Payload: "still-live"})
	frame := readFrame(t, second)
	assert.Equal(t, bus.EventAlert, frame.Type)
}

func TestManagerStopDisconnectsClients(t *testing.T) {
	f := newLiveFixture(t, 16)
	conn := f.dial(t)
	waitForSubscribers(t, f.manager, 1)

	f.manager.Stop()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0, f.manager.SubscriberCount())
}
