package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/strataops/vaulthub/internal/models"
	"github.com/strataops/vaulthub/internal/store"
	"github.com/strataops/vaulthub/internal/store/postgres"
)

var (
	// ErrDuplicateSecret is returned when the (workspace, slug) pair collides.
	ErrDuplicateSecret = errors.New("a secret with this name already exists in the workspace")

	// ErrSecretNotFound is returned when a referenced secret does not exist
	// or has been deleted.
	ErrSecretNotFound = errors.New("secret not found")
)

// Auditor records vault access events. Failures are intentionally ignored by
// the service.
type Auditor interface {
	Record(ctx context.Context, userID, action, resourceID string, details map[string]any) error
}

// Service owns secret creation, redacted retrieval, and in-memory decryption
// for the probe path. Plaintext never leaves this package except through
// Reveal, and is never persisted or logged.
type Service struct {
	cipher  *Cipher
	secrets store.SecretStore
	auditor Auditor
	logger  *slog.Logger
}

// NewService creates a vault service.
func NewService(cipher *Cipher, secrets store.SecretStore, auditor Auditor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cipher:  cipher,
		secrets: secrets,
		auditor: auditor,
		logger:  logger,
	}
}

// Create encrypts plaintext and persists the envelope, returning the redacted
// record. The plaintext is not retained.
func (s *Service) Create(ctx context.Context, workspaceID, name string, category models.SecretCategory, plaintext string, expiresAt *time.Time, createdBy string) (*models.SecretRecord, error) {
	if name == "" {
		return nil, fmt.Errorf("secret name is required")
	}
	if plaintext == "" {
		return nil, fmt.Errorf("secret value is required")
	}
	if !category.Valid() {
		return nil, fmt.Errorf("invalid secret category %q", category)
	}

	env, err := s.cipher.Encrypt(plaintext)
	if err != nil {
		return nil, err
	}

	rec := &models.SecretRecord{
		ID:             uuid.NewString(),
		WorkspaceID:    workspaceID,
		Name:           name,
		Slug:           deriveSlug(name),
		Category:       category,
		EncryptedValue: env.Ciphertext,
		IV:             env.IV,
		AuthTag:        env.AuthTag,
		KeyVersion:     CurrentKeyVersion,
		CreatedBy:      createdBy,
		ExpiresAt:      expiresAt,
	}

	if err := s.secrets.Create(ctx, rec); err != nil {
		if errors.Is(err, postgres.ErrDuplicateKey) {
			return nil, ErrDuplicateSecret
		}
		return nil, fmt.Errorf("storing secret: %w", err)
	}

	s.logger.Info("secret created",
		"workspace_id", workspaceID,
		"secret_id", rec.ID,
		"category", category,
	)

	// Audit failure is intentionally ignored; it must not fail the create.
	_ = s.auditor.Record(ctx, createdBy, "vault.secret.create", rec.ID, map[string]any{
		"workspace_id": workspaceID,
		"name":         name,
		"category":     string(category),
	})

	return rec.Redact(), nil
}

// List returns all non-deleted secrets for the workspace, redacted.
func (s *Service) List(ctx context.Context, workspaceID, userID string) ([]*models.SecretRecord, error) {
	records, err := s.secrets.List(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("listing secrets: %w", err)
	}

	redacted := make([]*models.SecretRecord, 0, len(records))
	for _, rec := range records {
		redacted = append(redacted, rec.Redact())
	}

	// Audit failure is intentionally ignored.
	_ = s.auditor.Record(ctx, userID, "vault.secret.list", "", map[string]any{
		"workspace_id": workspaceID,
		"count":        len(redacted),
	})

	return redacted, nil
}

// Delete soft-deletes a secret. The envelope row is retained.
func (s *Service) Delete(ctx context.Context, workspaceID, id, userID string) error {
	if err := s.secrets.SoftDelete(ctx, workspaceID, id); err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return ErrSecretNotFound
		}
		return fmt.Errorf("deleting secret: %w", err)
	}

	// Audit failure is intentionally ignored.
	_ = s.auditor.Record(ctx, userID, "vault.secret.delete", id, map[string]any{
		"workspace_id": workspaceID,
	})

	return nil
}

// Reveal loads a secret's envelope and decrypts it in memory. It exists for
// the probe dispatcher only; the plaintext must not be retained, cached, or
// logged by the caller, and no HTTP path exposes it.
func (s *Service) Reveal(ctx context.Context, workspaceID, id string) (string, error) {
	rec, err := s.secrets.Get(ctx, workspaceID, id)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return "", ErrSecretNotFound
		}
		return "", fmt.Errorf("loading secret: %w", err)
	}

	return s.cipher.Decrypt(Envelope{
		Ciphertext: rec.EncryptedValue,
		IV:         rec.IV,
		AuthTag:    rec.AuthTag,
	})
}

// deriveSlug builds a URL-safe slug from the name plus a base36 time suffix
// so that re-using a name does not collide with a soft-deleted predecessor.
func deriveSlug(name string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		slug = "secret"
	}
	return slug + "-" + strconv.FormatInt(time.Now().UnixMilli(), 36)
}
