package middleware

import (
	"context"
	"net/http"
	"strings"

	"greenlens/backend/services/dashboard-service/internal/auth"
)

type contextKey string

const operatorKey contextKey = "operator"

// TokenValidator decodes operator tokens.
type TokenValidator interface {
	ValidateToken(token string) (*auth.Claims, error)
}

// AuthMiddleware validates JWT tokens and stores the operator name in the context.
// Browsers cannot set headers on WebSocket or <img> requests, so a token query parameter is accepted too.
func AuthMiddleware(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, ok := extractToken(r)
			if !ok {
				writeUnauthorized(w, "missing or invalid authorization")
				return
			}
			claims, err := validator.ValidateToken(tokenStr)
			if err != nil {
				writeUnauthorized(w, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), operatorKey, claims.Operator())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NoAuth lets every request through.
func NoAuth(next http.Handler) http.Handler {
	return next
}

func extractToken(r *http.Request) (string, bool) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return "", false
		}
		token := strings.TrimSpace(parts[1])
		return token, token != ""
	}
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	return token, token != ""
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + message + `"}` + "\n"))
}

// OperatorFromContext retrieves the operator name from request context.
func OperatorFromContext(ctx context.Context) (string, bool) {
	val, ok := ctx.Value(operatorKey).(string)
	return val, ok && val != ""
}
