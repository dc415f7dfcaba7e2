package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/strataops/vaulthub/internal/integrations/providers"
	"github.com/strataops/vaulthub/internal/models"
	"github.com/strataops/vaulthub/internal/store/postgres"
	"github.com/strataops/vaulthub/internal/vault"
)

// stubConnectionStore implements store.ConnectionStore for dispatcher tests.
type stubConnectionStore struct {
	mu           sync.Mutex
	connections  map[string]*models.ConnectionRecord // keyed by provider
	resolveCalls int
	healthWrites []models.HealthStatus
	updateErr    error
}

func newStubConnectionStore() *stubConnectionStore {
	return &stubConnectionStore{connections: make(map[string]*models.ConnectionRecord)}
}

func (s *stubConnectionStore) Upsert(_ context.Context, rec *models.ConnectionRecord) (*models.ConnectionRecord, error) {
	s.connections[rec.Provider] = rec
	return rec, nil
}

func (s *stubConnectionStore) Resolve(_ context.Context, _, provider string) (*models.ConnectionRecord, error) {
	s.mu.Lock()
	s.resolveCalls++
	s.mu.Unlock()
	conn, ok := s.connections[provider]
	if !ok {
		return nil, postgres.ErrNotFound
	}
	return conn, nil
}

func (s *stubConnectionStore) ListActive(_ context.Context, _ string) ([]*models.ConnectionRecord, error) {
	return nil, nil
}

func (s *stubConnectionStore) Deactivate(_ context.Context, _, _ string) error {
	return nil
}

func (s *stubConnectionStore) UpdateHealth(_ context.Context, _, _ string, status models.HealthStatus, _ time.Time, _ *models.TestResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	s.healthWrites = append(s.healthWrites, status)
	return nil
}

func (s *stubConnectionStore) writes() []models.HealthStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.HealthStatus, len(s.healthWrites))
	copy(out, s.healthWrites)
	return out
}

// stubSecretSource records Reveal calls and returns a fixed result.
type stubSecretSource struct {
	mu         sync.Mutex
	calls      int
	credential string
	err        error
}

func (s *stubSecretSource) Reveal(_ context.Context, _, _ string) (string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	return s.credential, nil
}

func (s *stubSecretSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// stubReporter records reported errors.
type stubReporter struct {
	mu     sync.Mutex
	errors []error
}

func (r *stubReporter) ReportError(_ context.Context, err error, _ map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, err)
}

func (r *stubReporter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errors)
}

// stubProber returns a canned result and counts invocations.
type stubProber struct {
	provider providers.Provider
	result   providers.Result
	mu       sync.Mutex
	calls    int
}

func (p *stubProber) Provider() providers.Provider { return p.provider }

func (p *stubProber) Probe(_ context.Context, _, _ string) providers.Result {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	return p.result
}

type dispatcherFixture struct {
	dispatcher  *Dispatcher
	connections *stubConnectionStore
	secrets     *stubSecretSource
	reporter    *stubReporter
	updater     *Updater
	prober      *stubProber
}

func newFixture(delegate *DelegateClient) *dispatcherFixture {
	connections := newStubConnectionStore()
	secrets := &stubSecretSource{credential: "decrypted-credential"}
	reporter := &stubReporter{}
	updater := NewUpdater(connections, time.Second, nil)
	prober := &stubProber{result: providers.Result{OK: true, Note: "probe ok", Elapsed: 120 * time.Millisecond}}

	d := NewDispatcher(connections, secrets, delegate, updater, reporter, time.Second, nil)
	d.proberFor = func(p providers.Provider) (providers.Prober, bool) {
		prober.provider = p
		switch p {
		case providers.ProviderGoogleDrive, providers.ProviderFigma:
			return nil, false
		}
		return prober, true
	}

	return &dispatcherFixture{
		dispatcher:  d,
		connections: connections,
		secrets:     secrets,
		reporter:    reporter,
		updater:     updater,
		prober:      prober,
	}
}

func (f *dispatcherFixture) addConnection(provider, secretRef string) {
	f.connections.connections[provider] = &models.ConnectionRecord{
		ID:          "c-" + provider,
		WorkspaceID: "ws-1",
		Provider:    provider,
		SecretRef:   secretRef,
		IsActive:    true,
	}
}

func TestDispatcherUnknownProvider(t *testing.T) {
	f := newFixture(nil)

	outcome := f.dispatcher.Test(context.Background(), "ws-1", "not-a-provider", "u", "")
	f.updater.Close()

	if outcome.HealthStatus != models.HealthDown {
		t.Fatalf("status = %s, want down", outcome.HealthStatus)
	}
	if !strings.Contains(outcome.Note, "unknown provider") {
		t.Fatalf("note = %q", outcome.Note)
	}
	if len(f.connections.writes()) != 0 {
		t.Fatal("unknown provider triggered a health write-back")
	}
}

func TestDispatcherUnimplementedProvider(t *testing.T) {
	f := newFixture(nil)
	f.addConnection("figma", "s-1")

	outcome := f.dispatcher.Test(context.Background(), "ws-1", "figma", "u", "")
	f.updater.Close()

	if outcome.HealthStatus != models.HealthUnknown {
		t.Fatalf("status = %s, want unknown", outcome.HealthStatus)
	}
	if f.connections.resolveCalls != 0 {
		t.Fatal("unimplemented provider touched the connection registry")
	}
	if f.secrets.callCount() != 0 {
		t.Fatal("unimplemented provider touched the vault")
	}
	if len(f.connections.writes()) != 0 {
		t.Fatal("unimplemented provider triggered a health write-back")
	}
}

func TestDispatcherNoConnection(t *testing.T) {
	f := newFixture(nil)

	outcome := f.dispatcher.Test(context.Background(), "ws-1", "resend", "u", "")
	f.updater.Close()

	if outcome.HealthStatus != models.HealthDown {
		t.Fatalf("status = %s, want down", outcome.HealthStatus)
	}
	if !strings.Contains(outcome.Note, "no connection configured") {
		t.Fatalf("note = %q", outcome.Note)
	}
	if len(f.connections.writes()) != 0 {
		t.Fatal("missing connection triggered a health write-back")
	}
}

func TestDispatcherMissingSecretRefMakesNoOutboundCalls(t *testing.T) {
	f := newFixture(nil)
	f.addConnection("resend", "")

	outcome := f.dispatcher.Test(context.Background(), "ws-1", "resend", "u", "")
	f.updater.Close()

	if outcome.HealthStatus != models.HealthDown {
		t.Fatalf("status = %s, want down", outcome.HealthStatus)
	}
	if !strings.Contains(outcome.Note, "no credential registered") {
		t.Fatalf("note = %q", outcome.Note)
	}
	if f.secrets.callCount() != 0 {
		t.Fatal("dispatcher revealed a secret despite empty secret_ref")
	}
	if f.prober.calls != 0 {
		t.Fatal("dispatcher probed despite missing credential")
	}

	writes := f.connections.writes()
	if len(writes) != 1 || writes[0] != models.HealthDown {
		t.Fatalf("health writes = %v", writes)
	}
}

func TestDispatcherDecryptFailureReported(t *testing.T) {
	f := newFixture(nil)
	f.addConnection("resend", "s-1")
	f.secrets.err = vault.ErrDecryptFailed

	outcome := f.dispatcher.Test(context.Background(), "ws-1", "resend", "u", "")
	f.updater.Close()

	if outcome.HealthStatus != models.HealthDown {
		t.Fatalf("status = %s, want down", outcome.HealthStatus)
	}
	if !strings.Contains(outcome.Note, "could not be decrypted") {
		t.Fatalf("note = %q", outcome.Note)
	}
	if f.reporter.count() != 1 {
		t.Fatalf("reporter calls = %d, want 1", f.reporter.count())
	}
	if f.prober.calls != 0 {
		t.Fatal("dispatcher probed with an undecryptable credential")
	}
}

func TestDispatcherVanishedSecret(t *testing.T) {
	f := newFixture(nil)
	f.addConnection("resend", "s-1")
	f.secrets.err = vault.ErrSecretNotFound

	outcome := f.dispatcher.Test(context.Background(), "ws-1", "resend", "u", "")
	f.updater.Close()

	if outcome.HealthStatus != models.HealthDown {
		t.Fatalf("status = %s, want down", outcome.HealthStatus)
	}
	if f.reporter.count() != 0 {
		t.Fatal("missing secret is not a reportable decryption failure")
	}
}

func TestDispatcherNonTestableProviderHealthyOnPresence(t *testing.T) {
	f := newFixture(nil)
	f.addConnection("google_drive", "s-1")

	outcome := f.dispatcher.Test(context.Background(), "ws-1", "google_drive", "u", "")
	f.updater.Close()

	if outcome.HealthStatus != models.HealthHealthy {
		t.Fatalf("status = %s, want healthy", outcome.HealthStatus)
	}
	if !strings.Contains(outcome.Note, "no direct test") {
		t.Fatalf("note = %q", outcome.Note)
	}
	if f.secrets.callCount() != 1 {
		t.Fatal("presence check requires one reveal")
	}
	if f.prober.calls != 0 {
		t.Fatal("non-testable provider was probed")
	}
}

func TestDispatcherProbeSuccess(t *testing.T) {
	f := newFixture(nil)
	f.addConnection("resend", "s-1")

	outcome := f.dispatcher.Test(context.Background(), "ws-1", "resend", "tester", "")
	f.updater.Close()

	if outcome.HealthStatus != models.HealthHealthy || !outcome.Healthy {
		t.Fatalf("status = %s healthy=%v", outcome.HealthStatus, outcome.Healthy)
	}
	if outcome.ResponseTimeMS != 120 {
		t.Fatalf("response time = %d, want 120", outcome.ResponseTimeMS)
	}
	if outcome.TestedBy != "tester" {
		t.Fatalf("tested_by = %q", outcome.TestedBy)
	}

	writes := f.connections.writes()
	if len(writes) != 1 || writes[0] != models.HealthHealthy {
		t.Fatalf("health writes = %v", writes)
	}
}

func TestDispatcherProbeFailure(t *testing.T) {
	f := newFixture(nil)
	f.addConnection("resend", "s-1")
	f.prober.result = providers.Result{Note: "invalid credential (HTTP 401)", Elapsed: 30 * time.Millisecond}

	outcome := f.dispatcher.Test(context.Background(), "ws-1", "resend", "u", "")
	f.updater.Close()

	if outcome.HealthStatus != models.HealthDown {
		t.Fatalf("status = %s, want down", outcome.HealthStatus)
	}

	writes := f.connections.writes()
	if len(writes) != 1 || writes[0] != models.HealthDown {
		t.Fatalf("health writes = %v", writes)
	}
}

func TestDispatcherDelegateTrusted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/test/resend" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("workspace_id") != "ws-1" {
			t.Errorf("workspace_id = %s", r.URL.Query().Get("workspace_id"))
		}
		if r.Header.Get("Authorization") != "Bearer jwt-token" {
			t.Errorf("authorization = %s", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"provider":"resend","workspace_id":"ws-1","healthy":true,"health_status":"healthy","response_time_ms":42}`))
	}))
	defer srv.Close()

	delegate := NewDelegateClient(srv.URL, time.Second, nil)
	f := newFixture(delegate)
	f.addConnection("resend", "s-1")

	outcome := f.dispatcher.Test(context.Background(), "ws-1", "resend", "u", "jwt-token")
	f.updater.Close()

	if outcome.HealthStatus != models.HealthHealthy || outcome.ResponseTimeMS != 42 {
		t.Fatalf("outcome = %+v", outcome)
	}
	if f.secrets.callCount() != 0 {
		t.Fatal("delegate path touched the vault")
	}
	if f.prober.calls != 0 {
		t.Fatal("delegate path ran a local probe")
	}

	writes := f.connections.writes()
	if len(writes) != 1 || writes[0] != models.HealthHealthy {
		t.Fatalf("health writes = %v", writes)
	}
}

func TestDispatcherDelegateStructured4xxTrusted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"data":{"provider":"resend","workspace_id":"ws-1","healthy":false,"health_status":"down","note":"invalid credential"}}`))
	}))
	defer srv.Close()

	delegate := NewDelegateClient(srv.URL, time.Second, nil)
	f := newFixture(delegate)
	f.addConnection("resend", "s-1")

	outcome := f.dispatcher.Test(context.Background(), "ws-1", "resend", "u", "")
	f.updater.Close()

	if outcome.HealthStatus != models.HealthDown {
		t.Fatalf("status = %s, want down", outcome.HealthStatus)
	}
	if f.prober.calls != 0 {
		t.Fatal("structured delegate 4xx fell back to a local probe")
	}
}

func TestDispatcherDelegateUnavailableFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	delegate := NewDelegateClient(srv.URL, 200*time.Millisecond, nil)
	f := newFixture(delegate)
	f.addConnection("resend", "s-1")

	outcome := f.dispatcher.Test(context.Background(), "ws-1", "resend", "u", "")
	f.updater.Close()

	if outcome.HealthStatus != models.HealthHealthy {
		t.Fatalf("status = %s, want healthy from local fallback", outcome.HealthStatus)
	}
	if f.prober.calls != 1 {
		t.Fatalf("local prober calls = %d, want 1", f.prober.calls)
	}
}

func TestDispatcherDelegate5xxFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"health_status":"down"}`))
	}))
	defer srv.Close()

	delegate := NewDelegateClient(srv.URL, time.Second, nil)
	f := newFixture(delegate)
	f.addConnection("resend", "s-1")

	outcome := f.dispatcher.Test(context.Background(), "ws-1", "resend", "u", "")
	f.updater.Close()

	if outcome.HealthStatus != models.HealthHealthy {
		t.Fatalf("status = %s, want healthy from local fallback", outcome.HealthStatus)
	}
}
