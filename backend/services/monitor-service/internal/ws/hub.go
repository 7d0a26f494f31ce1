package ws

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"pipewatch/backend/services/monitor-service/internal/metrics"
	"pipewatch/backend/services/monitor-service/internal/models"
)

// Hub owns the live observer set. It is constructed once and handed to
// whatever needs to fan out events; there is no package-level instance.
type Hub struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	logger      *zap.Logger
}

// NewHub builds an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		connections: make(map[string]*Connection),
		logger:      logger,
	}
}

// Add registers a new observer connection.
func (h *Hub) Add(conn *Connection) {
	h.mu.Lock()
	h.connections[conn.ID()] = conn
	total := len(h.connections)
	h.mu.Unlock()

	metrics.ObserverConnections.Set(float64(total))
	h.logger.Info("observer connected", zap.String("connection_id", conn.ID()), zap.Int("total", total))
}

// Remove unregisters an observer connection.
func (h *Hub) Remove(id string) {
	h.mu.Lock()
	_, existed := h.connections[id]
	delete(h.connections, id)
	total := len(h.connections)
	h.mu.Unlock()

	if existed {
		metrics.ObserverConnections.Set(float64(total))
		h.logger.Info("observer disconnected", zap.String("connection_id", id), zap.Int("total", total))
	}
}

// Len returns the number of live observers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// CloseAll tears down every live observer. Called on shutdown; each Close
// unregisters its connection through the onClose callback.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	targets := make([]*Connection, 0, len(h.connections))
	for _, conn := range h.connections {
		targets = append(targets, conn)
	}
	h.mu.RUnlock()

	for _, conn := range targets {
		conn.Close()
	}
	h.logger.Info("closed all observer connections", zap.Int("count", len(targets)))
}

// BroadcastReading pushes a reading update to every live observer.
func (h *Hub) BroadcastReading(stationID string, stationRowID int64, reading *models.Reading) {
	h.broadcast(newReadingUpdate(stationID, stationRowID, reading))
}

// BroadcastAlarm pushes an alarm event to every live observer.
func (h *Hub) BroadcastAlarm(stationID string, stationRowID int64, alarm *models.AlarmEvent) {
	h.broadcast(newAlarmMessage(stationID, stationRowID, alarm))
}

// broadcast marshals once and enqueues per connection. A connection that
// cannot accept the message is dropped; delivery to the rest continues.
func (h *Hub) broadcast(message interface{}) {
	payload, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", zap.Error(err))
		return
	}

	h.mu.RLock()
	targets := make([]*Connection, 0, len(h.connections))
	for _, conn := range h.connections {
		targets = append(targets, conn)
	}
	h.mu.RUnlock()

	for _, conn := range targets {
		if !conn.Send(payload) {
			metrics.BroadcastDrops.Inc()
			h.logger.Warn("dropping stalled observer", zap.String("connection_id", conn.ID()))
			go conn.Close()
		}
	}
}
