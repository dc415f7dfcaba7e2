package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCatalogCoversAllProviders(t *testing.T) {
	want := []Provider{
		ProviderResend, ProviderSlack, ProviderFirecrawl,
		ProviderGoogleDrive, ProviderPaddleOCR, ProviderFigma,
	}

	entries := Catalog()
	if len(entries) != len(want) {
		t.Fatalf("catalog has %d entries, want %d", len(entries), len(want))
	}

	seen := make(map[Provider]CatalogEntry)
	for _, entry := range entries {
		seen[entry.Provider] = entry
	}
	for _, p := range want {
		entry, ok := seen[p]
		if !ok {
			t.Fatalf("provider %s missing from catalog", p)
		}
		if entry.Label == "" || entry.RequiredSecret == "" {
			t.Fatalf("provider %s has incomplete catalog entry", p)
		}
	}

	if seen[ProviderFigma].Implemented {
		t.Fatal("figma must be unimplemented")
	}
	if seen[ProviderGoogleDrive].Testable {
		t.Fatal("google_drive must not be testable")
	}
}

func TestCatalogReturnsCopy(t *testing.T) {
	entries := Catalog()
	entries[0].Label = "mutated"

	if Catalog()[0].Label == "mutated" {
		t.Fatal("catalog mutation leaked into package state")
	}
}

func TestLookupUnknown(t *testing.T) {
	if _, ok := Lookup("not-a-provider"); ok {
		t.Fatal("lookup of unknown provider succeeded")
	}
}

func TestProberForMatchesTestableFlag(t *testing.T) {
	for _, entry := range Catalog() {
		_, hasProber := ProberFor(entry.Provider, http.DefaultClient)
		if entry.Testable && entry.Implemented && !hasProber {
			t.Fatalf("testable provider %s has no prober", entry.Provider)
		}
		if !entry.Testable && hasProber {
			t.Fatalf("non-testable provider %s has a prober", entry.Provider)
		}
	}
}

func TestResendProbeClassification(t *testing.T) {
	cases := []struct {
		name       string
		status     int
		wantOK     bool
		wantInNote string
	}{
		{"accepted", http.StatusOK, true, "credential accepted"},
		{"unauthorized", http.StatusUnauthorized, false, "invalid credential"},
		{"forbidden", http.StatusForbidden, false, "invalid credential"},
		{"server error", http.StatusInternalServerError, false, "unexpected response"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var gotAuth string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotAuth = r.Header.Get("Authorization")
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			p := &ResendProber{BaseURL: srv.URL, Client: srv.Client()}
			result := p.Probe(context.Background(), "re_test_key", "")

			if result.OK != tc.wantOK {
				t.Fatalf("OK = %v, want %v (note %q)", result.OK, tc.wantOK, result.Note)
			}
			if !strings.Contains(result.Note, tc.wantInNote) {
				t.Fatalf("note %q does not contain %q", result.Note, tc.wantInNote)
			}
			if gotAuth != "Bearer re_test_key" {
				t.Fatalf("authorization header = %q", gotAuth)
			}
		})
	}
}

func TestResendProbeUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	p := &ResendProber{BaseURL: srv.URL}
	result := p.Probe(context.Background(), "key", "")

	if result.OK {
		t.Fatal("unreachable server reported OK")
	}
	if !strings.Contains(result.Note, "unreachable") {
		t.Fatalf("note = %q", result.Note)
	}
}

func TestSlackProbeAuthTest(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		wantOK bool
		note   string
	}{
		{"valid token", `{"ok":true}`, true, "auth.test ok"},
		{"invalid auth", `{"ok":false,"error":"invalid_auth"}`, false, "invalid credential"},
		{"revoked token", `{"ok":false,"error":"token_revoked"}`, false, "invalid credential"},
		{"other error", `{"ok":false,"error":"ratelimited"}`, false, "slack API error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/auth.test" {
					t.Errorf("path = %s", r.URL.Path)
				}
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			p := &SlackProber{BaseURL: srv.URL, Client: srv.Client()}
			result := p.Probe(context.Background(), "xoxb-token", "")

			if result.OK != tc.wantOK {
				t.Fatalf("OK = %v, want %v (note %q)", result.OK, tc.wantOK, result.Note)
			}
			if !strings.Contains(result.Note, tc.note) {
				t.Fatalf("note %q does not contain %q", result.Note, tc.note)
			}
		})
	}
}

func TestSlackProbeWebhookShapeOnly(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	p := &SlackProber{BaseURL: srv.URL, Client: srv.Client()}
	result := p.Probe(context.Background(), "https://hooks.slack.com/services/T0/B0/xyz", "")

	if !result.OK {
		t.Fatalf("webhook URL rejected: %q", result.Note)
	}
	if called {
		t.Fatal("webhook credential triggered an outbound call")
	}
}

func TestFirecrawlProbeClassification(t *testing.T) {
	cases := []struct {
		status int
		wantOK bool
	}{
		{http.StatusOK, true},
		{http.StatusBadRequest, true}, // reachable, key not refused
		{http.StatusUnauthorized, false},
		{http.StatusForbidden, false},
		{http.StatusInternalServerError, true},
	}

	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))

		p := &FirecrawlProber{Client: srv.Client()}
		result := p.Probe(context.Background(), "fc-key", srv.URL)
		srv.Close()

		if result.OK != tc.wantOK {
			t.Fatalf("status %d: OK = %v, want %v (note %q)", tc.status, result.OK, tc.wantOK, result.Note)
		}
	}
}

func TestPaddleOCRProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := &PaddleOCRProber{Client: srv.Client()}

	result := p.Probe(context.Background(), "", srv.URL)
	if !result.OK {
		t.Fatalf("healthy server reported down: %q", result.Note)
	}

	result = p.Probe(context.Background(), "", "")
	if result.OK || !strings.Contains(result.Note, "no endpoint URL configured") {
		t.Fatalf("missing endpoint: OK=%v note=%q", result.OK, result.Note)
	}
}

func TestPaddleOCRProbeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := &PaddleOCRProber{Client: srv.Client()}
	result := p.Probe(context.Background(), "", srv.URL)

	if result.OK {
		t.Fatal("5xx reported OK")
	}
}

func TestProbeNotesNeverContainCredential(t *testing.T) {
	const credential = "super-secret-credential-value"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	probers := []Prober{
		&ResendProber{BaseURL: srv.URL, Client: srv.Client()},
		&SlackProber{BaseURL: srv.URL, Client: srv.Client()},
		&FirecrawlProber{BaseURL: srv.URL, Client: srv.Client()},
		&PaddleOCRProber{Client: srv.Client()},
	}

	for _, p := range probers {
		result := p.Probe(context.Background(), credential, srv.URL)
		if strings.Contains(result.Note, credential) {
			t.Fatalf("%s note leaks credential: %q", p.Provider(), result.Note)
		}
	}
}
