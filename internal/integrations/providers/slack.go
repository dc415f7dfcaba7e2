package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	slackAPIBase       = "https://slack.com/api"
	slackWebhookPrefix = "https://hooks.slack.com/"
)

// invalidAuthErrors are Slack API error codes that mean the token itself is
// bad, as opposed to the service misbehaving.
var invalidAuthErrors = map[string]struct{}{
	"invalid_auth":     {},
	"not_authed":       {},
	"token_revoked":    {},
	"token_expired":    {},
	"account_inactive": {},
}

// SlackProber verifies a Slack credential. Bot tokens are checked against
// auth.test; webhook URLs have no reliable probe endpoint, so only their
// shape is validated.
type SlackProber struct {
	// BaseURL overrides the Slack Web API base, for tests.
	BaseURL string
	Client  *http.Client
}

// Provider returns the provider identifier.
func (p *SlackProber) Provider() Provider { return ProviderSlack }

// Probe calls auth.test with the credential as a bearer token. Slack reports
// errors as HTTP 200 with ok=false, so the body decides the outcome.
func (p *SlackProber) Probe(ctx context.Context, credential, endpoint string) Result {
	start := time.Now()

	if strings.HasPrefix(credential, slackWebhookPrefix) {
		// Probing a webhook would post a visible message into the channel.
		return Result{
			OK:      true,
			Note:    "webhook URL format accepted (not called)",
			Elapsed: time.Since(start),
		}
	}

	base := p.BaseURL
	if base == "" {
		base = slackAPIBase
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/auth.test", nil)
	if err != nil {
		return Result{Note: "building request failed", Elapsed: time.Since(start)}
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := p.client().Do(req)
	if err != nil {
		return Result{
			Note:    "slack unreachable: " + classifyTransportError(err),
			Elapsed: time.Since(start),
		}
	}
	defer resp.Body.Close()

	elapsed := time.Since(start)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{Note: fmt.Sprintf("unexpected response (HTTP %d)", resp.StatusCode), Elapsed: elapsed}
	}

	var body struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Result{Note: "unparseable auth.test response", Elapsed: elapsed}
	}

	if body.OK {
		return Result{OK: true, Note: "slack auth.test ok", Elapsed: elapsed}
	}
	if _, invalid := invalidAuthErrors[body.Error]; invalid {
		return Result{Note: "invalid credential (" + body.Error + ")", Elapsed: elapsed}
	}
	return Result{Note: "slack API error: " + body.Error, Elapsed: elapsed}
}

func (p *SlackProber) client() *http.Client {
	if p.Client != nil {
		return p.Client
	}
	return http.DefaultClient
}
