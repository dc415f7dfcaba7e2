// Package probe dispatches connectivity tests against external providers,
// preferring a remote delegate and falling back to local probing.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/strataops/vaulthub/internal/models"
)

// errDelegateUnavailable signals a transport-level delegate failure. It is
// internal to this package; callers only ever see the fallback result.
var errDelegateUnavailable = errors.New("probe delegate unavailable")

const maxDelegateBody = 1 << 20

// DelegateClient forwards probe requests to the remote orchestration
// service. Any transport failure means "delegate unavailable"; a structured
// outcome body is trusted even on a 4xx status, because that is the delegate
// reporting an application-level negative result rather than failing.
type DelegateClient struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
	logger  *slog.Logger
}

// NewDelegateClient creates a delegate client for the given base URL.
func NewDelegateClient(baseURL string, timeout time.Duration, logger *slog.Logger) *DelegateClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DelegateClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		timeout: timeout,
		client:  &http.Client{},
		logger:  logger,
	}
}

// Test forwards POST /test/{provider}?workspace_id= with the caller's
// authorization context.
func (c *DelegateClient) Test(ctx context.Context, workspaceID, provider, bearer string) (*models.TestOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/test/%s?workspace_id=%s",
		c.baseURL, url.PathEscape(provider), url.QueryEscape(workspaceID))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(nil))
	if err != nil {
		return nil, errDelegateUnavailable
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("delegate request failed", "provider", provider, "error", err)
		return nil, errDelegateUnavailable
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDelegateBody))
	if err != nil {
		return nil, errDelegateUnavailable
	}

	outcome, ok := decodeOutcome(body)
	if !ok {
		c.logger.Debug("delegate returned unparseable body",
			"provider", provider, "status", resp.StatusCode)
		return nil, errDelegateUnavailable
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return outcome, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// Structured negative result from the delegate, trusted as-is.
		return outcome, nil
	default:
		return nil, errDelegateUnavailable
	}
}

// decodeOutcome accepts both a bare outcome object and the delegate's
// {"data": {...}} response envelope.
func decodeOutcome(body []byte) (*models.TestOutcome, bool) {
	var wrapped struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && len(wrapped.Data) > 0 {
		body = wrapped.Data
	}

	var outcome models.TestOutcome
	if err := json.Unmarshal(body, &outcome); err != nil {
		return nil, false
	}
	if outcome.HealthStatus == "" {
		return nil, false
	}
	return &outcome, true
}
