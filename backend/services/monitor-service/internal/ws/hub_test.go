package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pipewatch/backend/services/monitor-service/internal/models"
)

type fakeSocket struct {
	closed chan struct{}
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{closed: make(chan struct{})}
}

func (f *fakeSocket) ReadMessage() (int, []byte, error) {
	<-f.closed
	return 0, nil, errSocketClosed
}

func (f *fakeSocket) WriteMessage(int, []byte) error    { return nil }
func (f *fakeSocket) SetReadLimit(int64)                {}
func (f *fakeSocket) SetReadDeadline(time.Time) error   { return nil }
func (f *fakeSocket) SetWriteDeadline(time.Time) error  { return nil }
func (f *fakeSocket) SetPongHandler(func(string) error) {}

func (f *fakeSocket) Close() error {
	select {
	case <-f.closed:
	default:
		close(f.closed)
	}
	return nil
}

var errSocketClosed = &closedError{}

type closedError struct{}

func (*closedError) Error() string { return "socket closed" }

func newTestConnection(id string, hub *Hub) *Connection {
	conn := NewConnection(id, newFakeSocket(), time.Second, time.Minute, zap.NewNop(), hub.Remove)
	hub.Add(conn)
	return conn
}

func testReading() *models.Reading {
	return &models.Reading{
		StationID:   "ST-1",
		Timestamp:   time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		Temperature: 42.5,
	}
}

func TestHubAddRemove(t *testing.T) {
	hub := NewHub(zap.NewNop())
	conn := newTestConnection("c1", hub)

	assert.Equal(t, 1, hub.Len())

	hub.Remove(conn.ID())
	assert.Equal(t, 0, hub.Len())

	// Removing an unknown id is a no-op.
	hub.Remove("missing")
	assert.Equal(t, 0, hub.Len())
}

func TestBroadcastReadingReachesAllObservers(t *testing.T) {
	hub := NewHub(zap.NewNop())
	a := newTestConnection("a", hub)
	b := newTestConnection("b", hub)

	hub.BroadcastReading("ST-1", 7, testReading())

	for _, conn := range []*Connection{a, b} {
		select {
		case raw := <-conn.send:
			var msg struct {
				Type      string `json:"type"`
				StationID string `json:"station_id"`
			}
			require.NoError(t, json.Unmarshal(raw, &msg))
			assert.Equal(t, "reading_update", msg.Type)
			assert.Equal(t, "ST-1", msg.StationID)
		default:
			t.Fatalf("connection %s received nothing", conn.ID())
		}
	}
}

func TestBroadcastAlarmMessageShape(t *testing.T) {
	hub := NewHub(zap.NewNop())
	conn := newTestConnection("a", hub)

	hub.BroadcastAlarm("ST-1", 7, &models.AlarmEvent{
		StationID:     "ST-1",
		Parameter:     "temperature",
		Value:         -3,
		ThresholdKind: models.ThresholdLow,
		Severity:      models.SeverityHigh,
	})

	select {
	case raw := <-conn.send:
		var msg struct {
			Type  string `json:"type"`
			Alarm struct {
				Parameter string `json:"parameter"`
				Severity  string `json:"severity"`
			} `json:"alarm"`
		}
		require.NoError(t, json.Unmarshal(raw, &msg))
		assert.Equal(t, "alarm", msg.Type)
		assert.Equal(t, "temperature", msg.Alarm.Parameter)
		assert.Equal(t, "high", msg.Alarm.Severity)
	default:
		t.Fatal("no alarm delivered")
	}
}

func TestBroadcastDropsStalledObserverOnly(t *testing.T) {
	hub := NewHub(zap.NewNop())
	healthy := newTestConnection("healthy", hub)
	stalled := newTestConnection("stalled", hub)

	// Fill the stalled observer's buffer so the next enqueue fails.
	for i := 0; i < sendBuffer; i++ {
		require.True(t, stalled.Send([]byte(`{}`)))
	}

	hub.BroadcastReading("ST-1", 7, testReading())

	// Healthy observer got the update.
	select {
	case <-healthy.send:
	default:
		t.Fatal("healthy observer received nothing")
	}

	// Stalled observer is torn down and removed from the hub.
	assert.Eventually(t, func() bool {
		return hub.Len() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestCloseAllDropsEveryObserver(t *testing.T) {
	hub := NewHub(zap.NewNop())
	a := newTestConnection("a", hub)
	b := newTestConnection("b", hub)
	require.Equal(t, 2, hub.Len())

	hub.CloseAll()

	assert.Equal(t, 0, hub.Len())
	assert.False(t, a.Send([]byte(`{}`)))
	assert.False(t, b.Send([]byte(`{}`)))
}

func TestSendAfterCloseReturnsFalse(t *testing.T) {
	hub := NewHub(zap.NewNop())
	conn := newTestConnection("a", hub)

	conn.Close()

	assert.False(t, conn.Send([]byte(`{}`)))
	assert.Equal(t, 0, hub.Len())
}

func TestReadPumpAnswersPing(t *testing.T) {
	inbound := make(chan []byte, 1)
	sock := &scriptedSocket{fakeSocket: newFakeSocket(), inbound: inbound}
	conn := NewConnection("a", sock, time.Second, time.Minute, zap.NewNop(), nil)

	inbound <- []byte(`{"type": "ping"}`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		conn.readPump(ctx)
		close(done)
	}()

	select {
	case raw := <-conn.send:
		assert.JSONEq(t, `{"type": "pong"}`, string(raw))
	case <-time.After(time.Second):
		t.Fatal("no pong queued")
	}

	conn.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("read pump did not exit")
	}
}

// scriptedSocket feeds queued inbound messages before behaving like a blocked
// socket.
type scriptedSocket struct {
	*fakeSocket
	inbound chan []byte
}

func (s *scriptedSocket) ReadMessage() (int, []byte, error) {
	select {
	case msg := <-s.inbound:
		return 1, msg, nil
	case <-s.closed:
		return 0, nil, errSocketClosed
	}
}
