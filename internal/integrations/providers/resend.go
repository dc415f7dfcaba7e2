package providers

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

const resendBaseURL = "https://api.resend.com"

// ResendProber verifies a Resend API key by listing the account's domains.
type ResendProber struct {
	// BaseURL overrides the Resend API base, for tests.
	BaseURL string
	Client  *http.Client
}

// Provider returns the provider identifier.
func (p *ResendProber) Provider() Provider { return ProviderResend }

// Probe issues GET /domains with the credential as a bearer token.
func (p *ResendProber) Probe(ctx context.Context, credential, endpoint string) Result {
	base := p.BaseURL
	if base == "" {
		base = resendBaseURL
	}

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/domains", nil)
	if err != nil {
		return Result{Note: "building request failed", Elapsed: time.Since(start)}
	}
	req.Header.Set("Authorization", "Bearer "+credential)

	resp, err := p.client().Do(req)
	if err != nil {
		return Result{
			Note:    "resend unreachable: " + classifyTransportError(err),
			Elapsed: time.Since(start),
		}
	}
	defer resp.Body.Close()

	elapsed := time.Since(start)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return Result{OK: true, Note: "resend API reachable, credential accepted", Elapsed: elapsed}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Result{Note: fmt.Sprintf("invalid credential (HTTP %d)", resp.StatusCode), Elapsed: elapsed}
	default:
		return Result{Note: fmt.Sprintf("unexpected response (HTTP %d)", resp.StatusCode), Elapsed: elapsed}
	}
}

func (p *ResendProber) client() *http.Client {
	if p.Client != nil {
		return p.Client
	}
	return http.DefaultClient
}
