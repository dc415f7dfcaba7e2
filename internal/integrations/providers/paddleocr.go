package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// PaddleOCRProber verifies connectivity to a self-hosted PaddleOCR server.
// The endpoint comes from the connection record; the credential is optional
// and sent as a bearer token when present.
type PaddleOCRProber struct {
	Client *http.Client
}

// Provider returns the provider identifier.
func (p *PaddleOCRProber) Provider() Provider { return ProviderPaddleOCR }

// Probe issues GET {endpoint}/health. Anything below 500 counts as healthy;
// the OCR server has no auth-rejection signal worth distinguishing.
func (p *PaddleOCRProber) Probe(ctx context.Context, credential, endpoint string) Result {
	start := time.Now()

	if endpoint == "" {
		return Result{Note: "no endpoint URL configured", Elapsed: time.Since(start)}
	}

	url := strings.TrimSuffix(endpoint, "/") + "/health"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{Note: "building request failed", Elapsed: time.Since(start)}
	}
	if credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
	}

	resp, err := p.client().Do(req)
	if err != nil {
		return Result{
			Note:    "paddleocr unreachable: " + classifyTransportError(err),
			Elapsed: time.Since(start),
		}
	}
	defer resp.Body.Close()

	elapsed := time.Since(start)

	if resp.StatusCode < 500 {
		return Result{OK: true, Note: "paddleocr server reachable", Elapsed: elapsed}
	}
	return Result{Note: fmt.Sprintf("server error (HTTP %d)", resp.StatusCode), Elapsed: elapsed}
}

func (p *PaddleOCRProber) client() *http.Client {
	if p.Client != nil {
		return p.Client
	}
	return http.DefaultClient
}
