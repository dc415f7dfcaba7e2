package models

import "time"

// SecretCategory classifies the kind of credential stored in the vault.
type SecretCategory string

const (
	CategoryAPIKey        SecretCategory = "api_key"
	CategoryOAuthToken    SecretCategory = "oauth_token"
	CategoryPassword      SecretCategory = "password"
	CategoryCertificate   SecretCategory = "certificate"
	CategoryWebhookSecret SecretCategory = "webhook_secret"
	CategoryOther         SecretCategory = "other"
)

// Valid reports whether the category is one of the closed enumeration.
func (c SecretCategory) Valid() bool {
	switch c {
	case CategoryAPIKey, CategoryOAuthToken, CategoryPassword,
		CategoryCertificate, CategoryWebhookSecret, CategoryOther:
		return true
	}
	return false
}

// SecretRecord represents an encrypted credential owned by a workspace.
//
// The envelope fields (EncryptedValue, IV, AuthTag) are written once at
// creation and excluded from JSON serialization. Redact must still be called
// before a record leaves the vault service boundary.
type SecretRecord struct {
	ID             string         `json:"id"`
	WorkspaceID    string         `json:"workspace_id"`
	Name           string         `json:"name"`
	Slug           string         `json:"slug"`
	Category       SecretCategory `json:"category"`
	EncryptedValue string         `json:"-"`
	IV             string         `json:"-"`
	AuthTag        string         `json:"-"`
	KeyVersion     int            `json:"key_version"`
	CreatedBy      string         `json:"created_by,omitempty"`
	ExpiresAt      *time.Time     `json:"expires_at,omitempty"`
	DeletedAt      *time.Time     `json:"-"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Redact returns a copy of the record with the envelope fields cleared.
func (s *SecretRecord) Redact() *SecretRecord {
	out := *s
	out.EncryptedValue = ""
	out.IV = ""
	out.AuthTag = ""
	return &out
}
