package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func testService(expiry time.Duration) *Service {
	return NewService(&Config{
		JWTSecret:   []byte("test-secret-key-that-is-long-enough"),
		TokenExpiry: expiry,
	}, nil)
}

// **Property: Token Round-Trip**
// For any non-empty user ID and email, a generated token validates back to
// the same claims.
func TestTokenRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	properties.Property("claims survive the round trip", prop.ForAll(
		func(userID, email string) bool {
			svc := testService(time.Hour)
			token, err := svc.GenerateToken(userID, email)
			if err != nil {
				return false
			}
			claims, err := svc.ValidateToken(token)
			if err != nil {
				return false
			}
			return claims.UserID == userID && claims.Email == email
		},
		gen.Identifier(),
		gen.Identifier(),
	))

	properties.TestingRun(t)
}

func TestGenerateTokenRequiresUserID(t *testing.T) {
	svc := testService(time.Hour)
	if _, err := svc.GenerateToken("", "a@b.c"); !errors.Is(err, ErrMissingClaims) {
		t.Fatalf("expected ErrMissingClaims, got %v", err)
	}
}

func TestValidateTokenExpired(t *testing.T) {
	svc := testService(-time.Hour)
	token, err := svc.GenerateToken("u-1", "")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := svc.ValidateToken(token); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestValidateTokenWrongSecret(t *testing.T) {
	token, err := testService(time.Hour).GenerateToken("u-1", "")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	other := NewService(&Config{JWTSecret: []byte("a-completely-different-secret-key")}, nil)
	if _, err := other.ValidateToken(token); err == nil {
		t.Fatal("token signed with another secret validated")
	}
}

func TestValidateTokenGarbage(t *testing.T) {
	svc := testService(time.Hour)
	for _, token := range []string{"", "garbage", "a.b.c", strings.Repeat("x", 500)} {
		if _, err := svc.ValidateToken(token); err == nil {
			t.Fatalf("token %q validated", token)
		}
	}
}

func TestExtractBearerToken(t *testing.T) {
	cases := map[string]string{
		"":                   "",
		"Bearer abc123":      "abc123",
		"bearer abc123":      "abc123",
		"Bearer  abc123":     "abc123",
		"Basic dXNlcjpwYXNz": "",
		"abc123":             "",
	}

	for header, want := range cases {
		if got := ExtractBearerToken(header); got != want {
			t.Fatalf("ExtractBearerToken(%q) = %q, want %q", header, got, want)
		}
	}
}
