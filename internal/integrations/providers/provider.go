// Package providers defines the closed catalog of external integrations and
// the probe clients that verify their connectivity.
package providers

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// Provider identifies an external integration.
type Provider string

const (
	ProviderResend      Provider = "resend"
	ProviderSlack       Provider = "slack"
	ProviderFirecrawl   Provider = "firecrawl"
	ProviderGoogleDrive Provider = "google_drive"
	ProviderPaddleOCR   Provider = "paddleocr"
	ProviderFigma       Provider = "figma"
)

// CatalogEntry describes one provider in the static catalog.
type CatalogEntry struct {
	Provider       Provider `json:"provider"`
	Label          string   `json:"label"`
	Description    string   `json:"description"`
	Icon           string   `json:"icon"`
	DocURL         string   `json:"doc_url"`
	RequiredSecret string   `json:"required_secret"`

	// Testable marks providers with a direct probe handler. A connection to
	// a non-testable provider is reported healthy on secret presence alone.
	Testable bool `json:"testable"`

	// Implemented is false for catalog entries that are visible to the UI
	// but whose integration is not built yet; probing them yields unknown.
	Implemented bool `json:"implemented"`
}

// catalog is the fixed provider list. Order is stable for API responses.
var catalog = []CatalogEntry{
	{
		Provider:       ProviderResend,
		Label:          "Resend",
		Description:    "Transactional and newsletter email delivery",
		Icon:           "mail",
		DocURL:         "https://resend.com/docs",
		RequiredSecret: "API Key (re_...)",
		Testable:       true,
		Implemented:    true,
	},
	{
		Provider:       ProviderSlack,
		Label:          "Slack",
		Description:    "Pipeline completion and error notifications",
		Icon:           "message-circle",
		DocURL:         "https://api.slack.com/",
		RequiredSecret: "Bot User OAuth Token (xoxb-...)",
		Testable:       true,
		Implemented:    true,
	},
	{
		Provider:       ProviderFirecrawl,
		Label:          "FireCrawl",
		Description:    "Web scraping and content extraction",
		Icon:           "globe",
		DocURL:         "https://www.firecrawl.dev/",
		RequiredSecret: "API Key (fc-...)",
		Testable:       true,
		Implemented:    true,
	},
	{
		Provider:       ProviderGoogleDrive,
		Label:          "Google Drive",
		Description:    "Automatic storage and sharing of pipeline artifacts",
		Icon:           "hard-drive",
		DocURL:         "https://developers.google.com/drive",
		RequiredSecret: "Service Account JSON",
		Testable:       false,
		Implemented:    true,
	},
	{
		Provider:       ProviderPaddleOCR,
		Label:          "PaddleOCR",
		Description:    "Text extraction from PDF and image documents",
		Icon:           "file-scan",
		DocURL:         "https://paddlepaddle.github.io/PaddleOCR/",
		RequiredSecret: "Endpoint URL (or local deployment)",
		Testable:       true,
		Implemented:    true,
	},
	{
		Provider:       ProviderFigma,
		Label:          "Figma",
		Description:    "Design file import for marketing assets",
		Icon:           "pen-tool",
		DocURL:         "https://www.figma.com/developers/api",
		RequiredSecret: "Personal Access Token",
		Testable:       false,
		Implemented:    false,
	},
}

// Catalog returns the static provider catalog.
func Catalog() []CatalogEntry {
	out := make([]CatalogEntry, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup returns the catalog entry for a provider identifier.
func Lookup(provider string) (CatalogEntry, bool) {
	for _, entry := range catalog {
		if string(entry.Provider) == provider {
			return entry, true
		}
	}
	return CatalogEntry{}, false
}

// Result is the classified outcome of one probe attempt. Probers never
// return errors; every failure mode collapses into OK=false with a note.
type Result struct {
	// OK is true only on a definitive success signal from the provider's
	// own API.
	OK bool
	// Note is a human-readable classification. It names response codes and
	// error classes, never credential material.
	Note string
	// Elapsed is the wall time of the provider call.
	Elapsed time.Duration
}

// Prober issues one lightweight request against a provider's public API
// using a decrypted credential. Implementations must respect ctx deadlines
// and must not retain or log the credential.
type Prober interface {
	Provider() Provider
	Probe(ctx context.Context, credential, endpoint string) Result
}

// ProberFor returns the probe client for a testable provider. The switch is
// exhaustive over the catalog; providers without a handler return false.
func ProberFor(provider Provider, client *http.Client) (Prober, bool) {
	switch provider {
	case ProviderResend:
		return &ResendProber{Client: client}, true
	case ProviderSlack:
		return &SlackProber{Client: client}, true
	case ProviderFirecrawl:
		return &FirecrawlProber{Client: client}, true
	case ProviderPaddleOCR:
		return &PaddleOCRProber{Client: client}, true
	case ProviderGoogleDrive, ProviderFigma:
		return nil, false
	}
	return nil, false
}

// classifyTransportError names the failure class for a request error.
func classifyTransportError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
		return "timeout"
	}
	return "network error"
}

func isTimeout(err error) bool {
	type timeouter interface{ Timeout() bool }
	for e := err; e != nil; {
		if t, ok := e.(timeouter); ok && t.Timeout() {
			return true
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			break
		}
		e = u.Unwrap()
	}
	return false
}
