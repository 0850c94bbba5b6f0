package ws

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"greenlens/backend/services/dashboard-service/internal/dashboard"
)

// Hub fans dashboard snapshots out to every connection.
// Snapshots older than the last one broadcast are dropped.
type Hub struct {
	logger *zap.Logger

	mu          sync.Mutex
	connections map[string]*Connection
	lastVersion uint64
	lastPayload []byte
}

// NewHub builds an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		logger:      logger,
		connections: make(map[string]*Connection),
	}
}

// Register adds conn and sends it the newest of current and the last broadcast snapshot.
func (h *Hub) Register(conn *Connection, current dashboard.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[conn.ID()] = conn

	if h.lastPayload != nil && h.lastVersion >= current.Version {
		conn.Send(h.lastPayload)
		return
	}
	payload, err := json.Marshal(current)
	if err != nil {
		h.logger.Error("encode snapshot failed", zap.Error(err))
		return
	}
	conn.Send(payload)
}

// Remove removes connection.
func (h *Hub) Remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.connections, id)
}

// Len reports the number of connections.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.connections)
}

// Broadcast sends snap to every connection unless a newer snapshot already went out.
func (h *Hub) Broadcast(snap dashboard.Snapshot) {
	payload, err := json.Marshal(snap)
	if err != nil {
		h.logger.Error("encode snapshot failed", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.lastPayload != nil && snap.Version <= h.lastVersion {
		return
	}
	h.lastVersion = snap.Version
	h.lastPayload = payload
	for _, conn := range h.connections {
		conn.Send(payload)
	}
}
