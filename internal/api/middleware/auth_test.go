package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/strataops/vaulthub/internal/auth"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAuthService() *auth.Service {
	return auth.NewService(&auth.Config{
		JWTSecret:   []byte("test-secret-key-that-is-long-enough"),
		TokenExpiry: time.Hour,
	}, testLogger())
}

func TestAuthenticateRejectsMissingToken(t *testing.T) {
	m := NewAuthMiddleware(testAuthService(), testLogger())
	handler := m.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler reached without credentials")
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/vault/secrets", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAuthenticateRejectsInvalidToken(t *testing.T) {
	m := NewAuthMiddleware(testAuthService(), testLogger())
	handler := m.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler reached with a bad token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAuthenticatePopulatesContext(t *testing.T) {
	svc := testAuthService()
	token, err := svc.GenerateToken("u-1", "dev@example.com")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	m := NewAuthMiddleware(svc, testLogger())

	var gotUserID, gotEmail, gotBearer string
	handler := m.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = GetUserID(r.Context())
		gotEmail = GetUserEmail(r.Context())
		gotBearer = GetBearerToken(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotUserID != "u-1" || gotEmail != "dev@example.com" {
		t.Fatalf("context user = %q / %q", gotUserID, gotEmail)
	}
	if gotBearer != token {
		t.Fatal("raw bearer token not retained in context")
	}
}
