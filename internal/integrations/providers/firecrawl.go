package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const firecrawlBaseURL = "https://api.firecrawl.dev/v1"

// FirecrawlProber verifies a FireCrawl API key. The scrape endpoint rejects
// bad keys with 401; any other response means the service is reachable and
// the key was not refused.
type FirecrawlProber struct {
	// BaseURL overrides the FireCrawl API base, for tests.
	BaseURL string
	Client  *http.Client
}

// Provider returns the provider identifier.
func (p *FirecrawlProber) Provider() Provider { return ProviderFirecrawl }

// Probe issues GET /scrape with the credential as a bearer token. A
// connection-level endpoint URL overrides the default base.
func (p *FirecrawlProber) Probe(ctx context.Context, credential, endpoint string) Result {
	base := p.BaseURL
	if base == "" {
		base = firecrawlBaseURL
	}
	if endpoint != "" {
		base = strings.TrimSuffix(endpoint, "/")
	}

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/scrape", nil)
	if err != nil {
		return Result{Note: "building request failed", Elapsed: time.Since(start)}
	}
	req.Header.Set("Authorization", "Bearer "+credential)

	resp, err := p.client().Do(req)
	if err != nil {
		return Result{
			Note:    "firecrawl unreachable: " + classifyTransportError(err),
			Elapsed: time.Since(start),
		}
	}
	defer resp.Body.Close()

	elapsed := time.Since(start)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return Result{Note: fmt.Sprintf("invalid credential (HTTP %d)", resp.StatusCode), Elapsed: elapsed}
	}
	return Result{
		OK:      true,
		Note:    fmt.Sprintf("firecrawl API reachable (HTTP %d)", resp.StatusCode),
		Elapsed: elapsed,
	}
}

func (p *FirecrawlProber) client() *http.Client {
	if p.Client != nil {
		return p.Client
	}
	return http.DefaultClient
}
