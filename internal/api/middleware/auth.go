package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/strataops/vaulthub/internal/auth"
)

// Context keys for user information.
type contextKey string

const (
	// UserIDKey is the context key for the authenticated user ID.
	UserIDKey contextKey = "user_id"
	// UserEmailKey is the context key for the authenticated user email.
	UserEmailKey contextKey = "user_email"
	// BearerTokenKey is the context key for the raw bearer token, retained so
	// the probe dispatcher can forward it to the delegate.
	BearerTokenKey contextKey = "bearer_token"
)

// GetUserID extracts the user ID from the request context.
func GetUserID(ctx context.Context) string {
	if v := ctx.Value(UserIDKey); v != nil {
		return v.(string)
	}
	return ""
}

// GetUserEmail extracts the user email from the request context.
func GetUserEmail(ctx context.Context) string {
	if v := ctx.Value(UserEmailKey); v != nil {
		return v.(string)
	}
	return ""
}

// GetBearerToken extracts the raw bearer token from the request context.
func GetBearerToken(ctx context.Context) string {
	if v := ctx.Value(BearerTokenKey); v != nil {
		return v.(string)
	}
	return ""
}

// AuthMiddleware handles JWT bearer authentication.
type AuthMiddleware struct {
	authService *auth.Service
	logger      *slog.Logger
}

// NewAuthMiddleware creates a new authentication middleware.
func NewAuthMiddleware(authService *auth.Service, logger *slog.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
		logger:      logger,
	}
}

// Authenticate is a middleware that validates JWT bearer tokens.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		token := auth.ExtractBearerToken(authHeader)
		if token == "" {
			writeUnauthorized(w, "Missing authentication")
			return
		}

		claims, err := m.authService.ValidateToken(token)
		if err != nil {
			m.logger.Debug("JWT validation failed", "error", err)
			if err == auth.ErrExpiredToken {
				writeUnauthorized(w, "Token has expired")
				return
			}
			writeUnauthorized(w, "Invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), UserIDKey, claims.UserID)
		ctx = context.WithValue(ctx, UserEmailKey, claims.Email)
		ctx = context.WithValue(ctx, BearerTokenKey, token)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"code":"unauthorized","message":"` + escapeJSON(message) + `"}`))
}

func escapeJSON(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}
