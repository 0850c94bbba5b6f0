package httpserver

import (
	"net/http"

	"greenlens/backend/services/dashboard-service/internal/http/handlers"
	"greenlens/backend/services/dashboard-service/internal/http/middleware"
)

// RouterDeps collects handler dependencies. AuthHandlers is nil when auth is disabled.
type RouterDeps struct {
	AuthHandlers      *handlers.AuthHandlers
	DashboardHandlers *handlers.DashboardHandlers
	UploadHandlers    *handlers.UploadHandlers
	ChatHandlers      *handlers.ChatHandlers
	DashboardWS       http.HandlerFunc
	ShellHandler      http.HandlerFunc
	HealthHandler     http.HandlerFunc
}

// NewRouter wires HTTP routes with middleware.
func NewRouter(deps RouterDeps, authMiddleware func(http.Handler) http.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/health", method(http.MethodGet, deps.HealthHandler))
	mux.Handle("/{$}", method(http.MethodGet, deps.ShellHandler))

	if deps.AuthHandlers != nil {
		mux.Handle("/api/auth/login", method(http.MethodPost, http.HandlerFunc(deps.AuthHandlers.Login)))
	}

	authenticated := func(handler http.HandlerFunc) http.Handler {
		return middleware.Chain(handler, authMiddleware)
	}

	mux.Handle("/api/dashboard", method(http.MethodGet, authenticated(deps.DashboardHandlers.Snapshot)))
	mux.Handle("/api/dashboard/chart.png", method(http.MethodGet, authenticated(deps.DashboardHandlers.Chart)))
	mux.Handle("/api/dashboard/history", method(http.MethodGet, authenticated(deps.DashboardHandlers.History)))
	mux.Handle("/api/dashboard/ws", method(http.MethodGet, authenticated(deps.DashboardWS)))

	mux.Handle("/api/upload", method(http.MethodPost, authenticated(deps.UploadHandlers.Upload)))

	mux.Handle("/api/chat/sessions", method(http.MethodPost, authenticated(deps.ChatHandlers.Create)))
	mux.Handle("/api/chat/sessions/{id}", method(http.MethodGet, authenticated(deps.ChatHandlers.Get)))
	mux.Handle("/api/chat/sessions/{id}/messages", method(http.MethodPost, authenticated(deps.ChatHandlers.Send)))

	return mux
}

func method(expected string, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != expected {
			w.Header().Set("Allow", expected)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
