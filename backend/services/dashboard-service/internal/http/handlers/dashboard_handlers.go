package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"greenlens/backend/services/dashboard-service/internal/chart"
	"greenlens/backend/services/dashboard-service/internal/dashboard"
	"greenlens/backend/services/dashboard-service/internal/models"
)

// Snapshotter exposes the current dashboard state.
type Snapshotter interface {
	Snapshot() dashboard.Snapshot
}

// HistoryReader lists stored predictions, newest first.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]models.PredictionHistory, error)
}

// DashboardHandlers serve the live dashboard state.
type DashboardHandlers struct {
	board   Snapshotter
	history HistoryReader
	logger  *zap.Logger
}

// NewDashboardHandlers returns handler; history may be nil when no database is configured.
func NewDashboardHandlers(board Snapshotter, history HistoryReader, logger *zap.Logger) *DashboardHandlers {
	return &DashboardHandlers{board: board, history: history, logger: logger}
}

// Snapshot handles GET /api/dashboard.
func (h *DashboardHandlers) Snapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.board.Snapshot())
}

// Chart handles GET /api/dashboard/chart.png.
func (h *DashboardHandlers) Chart(w http.ResponseWriter, r *http.Request) {
	opts := chart.Options{
		Width:  queryInt(r, "width", 0),
		Height: queryInt(r, "height", 0),
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := chart.RenderUsage(w, h.board.Snapshot(), opts); err != nil {
		w.Header().Del("Content-Type")
		if errors.Is(err, chart.ErrNotEnoughData) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.logger.Error("chart rendering failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "chart rendering failed")
	}
}

// History handles GET /api/dashboard/history.
func (h *DashboardHandlers) History(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusNotFound, "prediction history is not enabled")
		return
	}
	entries, err := h.history.Recent(r.Context(), queryInt(r, "limit", 0))
	if err != nil {
		h.logger.Error("history query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": entries})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
