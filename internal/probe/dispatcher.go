package probe

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/strataops/vaulthub/internal/integrations/providers"
	"github.com/strataops/vaulthub/internal/models"
	"github.com/strataops/vaulthub/internal/store"
	"github.com/strataops/vaulthub/internal/store/postgres"
	"github.com/strataops/vaulthub/internal/vault"
)

// SecretSource decrypts a workspace secret in memory for the duration of a
// probe. Implemented by the vault service.
type SecretSource interface {
	Reveal(ctx context.Context, workspaceID, secretID string) (string, error)
}

// ErrorReporter receives errors worth surfacing to an external tracking
// collaborator (decryption failures in particular).
type ErrorReporter interface {
	ReportError(ctx context.Context, err error, tags map[string]string)
}

// LogReporter is the default ErrorReporter, backed by the structured logger.
type LogReporter struct {
	Logger *slog.Logger
}

// ReportError logs the error with its tags.
func (r *LogReporter) ReportError(_ context.Context, err error, tags map[string]string) {
	attrs := make([]any, 0, 2+2*len(tags))
	attrs = append(attrs, "error", err)
	for k, v := range tags {
		attrs = append(attrs, k, v)
	}
	r.Logger.Error("reported error", attrs...)
}

// Dispatcher runs connectivity tests. Every probe is handled independently;
// there is no cross-provider serialization, and a slow provider is bounded
// by the probe timeout.
type Dispatcher struct {
	connections store.ConnectionStore
	secrets     SecretSource
	delegate    *DelegateClient // nil when no delegate is configured
	updater     *Updater
	reporter    ErrorReporter
	logger      *slog.Logger

	probeTimeout time.Duration
	httpClient   *http.Client

	// proberFor is swappable in tests; defaults to providers.ProberFor.
	proberFor func(providers.Provider) (providers.Prober, bool)
}

// NewDispatcher creates a probe dispatcher. delegate may be nil.
func NewDispatcher(connections store.ConnectionStore, secrets SecretSource, delegate *DelegateClient, updater *Updater, reporter ErrorReporter, probeTimeout time.Duration, logger *slog.Logger) *Dispatcher {
	if probeTimeout <= 0 {
		probeTimeout = 8 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	if reporter == nil {
		reporter = &LogReporter{Logger: logger}
	}

	d := &Dispatcher{
		connections:  connections,
		secrets:      secrets,
		delegate:     delegate,
		updater:      updater,
		reporter:     reporter,
		logger:       logger,
		probeTimeout: probeTimeout,
		httpClient:   &http.Client{},
	}
	d.proberFor = func(p providers.Provider) (providers.Prober, bool) {
		return providers.ProberFor(p, d.httpClient)
	}
	return d
}

// Test runs a connectivity test for (workspace, provider). It always returns
// a structured outcome; probe failures are data, not errors. The decrypted
// credential exists only within this call stack.
func (d *Dispatcher) Test(ctx context.Context, workspaceID, provider, actor, bearer string) *models.TestOutcome {
	// Delegate first. Only transport-level failures fall through.
	if d.delegate != nil {
		outcome, err := d.delegate.Test(ctx, workspaceID, provider, bearer)
		if err == nil {
			d.updater.Dispatch(outcome)
			return outcome
		}
		d.logger.Debug("probe delegate unavailable, falling back to local probe",
			"workspace_id", workspaceID, "provider", provider)
	}

	outcome := d.testLocal(ctx, workspaceID, provider, actor)
	return outcome
}

func (d *Dispatcher) testLocal(ctx context.Context, workspaceID, provider, actor string) *models.TestOutcome {
	start := time.Now()

	entry, known := providers.Lookup(provider)
	if !known {
		return d.finish(nil, outcome(workspaceID, provider, actor, models.HealthDown,
			"unknown provider", start))
	}
	if !entry.Implemented {
		// Not built yet: report unknown without touching the registry or
		// the vault.
		o := outcome(workspaceID, provider, actor, models.HealthUnknown,
			"integration not implemented yet", start)
		return o
	}

	conn, err := d.connections.Resolve(ctx, workspaceID, provider)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return outcome(workspaceID, provider, actor, models.HealthDown,
				"no connection configured for this provider", start)
		}
		d.logger.Error("resolving connection failed",
			"workspace_id", workspaceID, "provider", provider, "error", err)
		return outcome(workspaceID, provider, actor, models.HealthDown,
			"connection lookup failed", start)
	}

	if conn.SecretRef == "" {
		return d.finish(conn, outcome(workspaceID, provider, actor, models.HealthDown,
			"no credential registered for this provider", start))
	}

	credential, err := d.secrets.Reveal(ctx, workspaceID, conn.SecretRef)
	if err != nil {
		if errors.Is(err, vault.ErrDecryptFailed) {
			d.reporter.ReportError(ctx, err, map[string]string{
				"workspace_id": workspaceID,
				"provider":     provider,
				"secret_ref":   conn.SecretRef,
			})
			return d.finish(conn, outcome(workspaceID, provider, actor, models.HealthDown,
				"stored credential could not be decrypted", start))
		}
		if errors.Is(err, vault.ErrSecretNotFound) {
			return d.finish(conn, outcome(workspaceID, provider, actor, models.HealthDown,
				"referenced credential no longer exists", start))
		}
		// Key misconfiguration is an operator problem, surfaced loudly but
		// still returned as a structured outcome.
		d.logger.Error("revealing credential failed",
			"workspace_id", workspaceID, "provider", provider, "error", err)
		return d.finish(conn, outcome(workspaceID, provider, actor, models.HealthDown,
			"credential could not be loaded", start))
	}

	prober, hasProber := d.proberFor(entry.Provider)
	if !entry.Testable || !hasProber {
		// Weaker guarantee for providers without a direct test.
		return d.finish(conn, outcome(workspaceID, provider, actor, models.HealthHealthy,
			"credential present and decryptable (provider has no direct test)", start))
	}

	probeCtx, cancel := context.WithTimeout(ctx, d.probeTimeout)
	defer cancel()

	result := prober.Probe(probeCtx, credential, conn.EndpointURL)

	status := models.HealthDown
	if result.OK {
		status = models.HealthHealthy
	}

	o := outcome(workspaceID, provider, actor, status, result.Note, start)
	o.ResponseTimeMS = result.Elapsed.Milliseconds()
	return d.finish(conn, o)
}

// finish dispatches the async write-back when a connection row exists and
// returns the outcome without waiting for persistence.
func (d *Dispatcher) finish(conn *models.ConnectionRecord, o *models.TestOutcome) *models.TestOutcome {
	if conn != nil {
		d.updater.Dispatch(o)
	}
	return o
}

func outcome(workspaceID, provider, actor string, status models.HealthStatus, note string, start time.Time) *models.TestOutcome {
	return &models.TestOutcome{
		Provider:       provider,
		WorkspaceID:    workspaceID,
		Healthy:        status == models.HealthHealthy,
		HealthStatus:   status,
		ResponseTimeMS: time.Since(start).Milliseconds(),
		Note:           note,
		TestedAt:       time.Now().UTC(),
		TestedBy:       actor,
	}
}
