package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"greenlens/backend/services/dashboard-service/internal/dashboard"
)

// SnapshotSource provides the current dashboard state.
type SnapshotSource interface {
	Snapshot() dashboard.Snapshot
}

// Server upgrades HTTP connections to WebSockets for the snapshot feed.
type Server struct {
	hub          *Hub
	source       SnapshotSource
	logger       *zap.Logger
	writeTimeout time.Duration
	upgrader     websocket.Upgrader
}

// NewServer builds ws server.
func NewServer(hub *Hub, source SnapshotSource, writeTimeout time.Duration, logger *zap.Logger) *Server {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return &Server{
		hub:          hub,
		source:       source,
		logger:       logger,
		writeTimeout: writeTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleWS is HTTP handler for /api/dashboard/ws endpoint.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	connection := NewConnection(uuid.NewString(), conn, s.writeTimeout, s.logger, func(id string) {
		s.hub.Remove(id)
		cancel()
		s.logger.Debug("dashboard subscriber left", zap.String("conn_id", id))
	})
	s.hub.Register(connection, s.source.Snapshot())

	go connection.Start(ctx)
	s.logger.Debug("dashboard subscriber connected", zap.String("conn_id", connection.ID()))
}
