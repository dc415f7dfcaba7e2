// Package store provides database access interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/strataops/vaulthub/internal/models"
)

// SecretStore defines persistence operations for vault secrets. Callers must
// redact records before they cross any public boundary; the store itself
// returns envelopes intact so the probe path can decrypt them.
type SecretStore interface {
	// Create persists a new secret record. Returns ErrDuplicateKey if the
	// (workspace, slug) pair already exists.
	Create(ctx context.Context, rec *models.SecretRecord) error
	// Get retrieves a non-deleted secret by workspace and ID.
	Get(ctx context.Context, workspaceID, id string) (*models.SecretRecord, error)
	// List retrieves all non-deleted secrets for a workspace.
	List(ctx context.Context, workspaceID string) ([]*models.SecretRecord, error)
	// Exists reports whether a non-deleted secret exists in the workspace.
	Exists(ctx context.Context, workspaceID, id string) (bool, error)
	// SoftDelete marks a secret deleted without removing the row.
	SoftDelete(ctx context.Context, workspaceID, id string) error
}

// ConnectionStore defines persistence operations for provider connections.
type ConnectionStore interface {
	// Upsert creates or replaces the connection identified by
	// (workspace, slug) and returns the stored record.
	Upsert(ctx context.Context, rec *models.ConnectionRecord) (*models.ConnectionRecord, error)
	// Resolve returns the active, non-deleted connection for a provider.
	Resolve(ctx context.Context, workspaceID, provider string) (*models.ConnectionRecord, error)
	// ListActive retrieves all active, non-deleted connections for a workspace.
	ListActive(ctx context.Context, workspaceID string) ([]*models.ConnectionRecord, error)
	// Deactivate soft-deletes a connection and marks it inactive. The
	// referenced secret is not touched.
	Deactivate(ctx context.Context, workspaceID, id string) error
	// UpdateHealth replaces the health status and latest test result for the
	// active connection of a provider. Used only by the probe write-back.
	UpdateHealth(ctx context.Context, workspaceID, provider string, status models.HealthStatus, checkedAt time.Time, result *models.TestResult) error
}

// AuditStore defines append-only persistence for audit entries.
type AuditStore interface {
	// Insert appends one audit entry.
	Insert(ctx context.Context, entry *models.AuditEntry) error
}

// Store is the main interface for database operations.
type Store interface {
	// Secrets returns the SecretStore for vault secret operations.
	Secrets() SecretStore
	// Connections returns the ConnectionStore for provider connections.
	Connections() ConnectionStore
	// Audit returns the AuditStore for audit log operations.
	Audit() AuditStore

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error
	// Close closes the database connection.
	Close() error
}
