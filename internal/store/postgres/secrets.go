package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/strataops/vaulthub/internal/models"
)

// SecretStore implements store.SecretStore using PostgreSQL.
type SecretStore struct {
	db     *sql.DB
	logger *slog.Logger
}

const secretColumns = `
	id, workspace_id, name, slug, category, encrypted_value, iv, auth_tag,
	key_version, created_by, expires_at, deleted_at, created_at, updated_at`

// Create persists a new secret record. The envelope is written exactly once;
// there is no update path for it.
func (s *SecretStore) Create(ctx context.Context, rec *models.SecretRecord) error {
	query := `
		INSERT INTO secret_vault (
			id, workspace_id, name, slug, category, encrypted_value, iv, auth_tag,
			key_version, created_by, expires_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)`

	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.WorkspaceID, rec.Name, rec.Slug, rec.Category,
		rec.EncryptedValue, rec.IV, rec.AuthTag, rec.KeyVersion,
		rec.CreatedBy, rec.ExpiresAt, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("inserting secret: %w", err)
	}

	return nil
}

// Get retrieves a non-deleted secret by workspace and ID.
func (s *SecretStore) Get(ctx context.Context, workspaceID, id string) (*models.SecretRecord, error) {
	query := `
		SELECT ` + secretColumns + `
		FROM secret_vault
		WHERE workspace_id = $1 AND id = $2 AND deleted_at IS NULL`

	rec, err := scanSecret(s.db.QueryRowContext(ctx, query, workspaceID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying secret: %w", err)
	}
	return rec, nil
}

// List retrieves all non-deleted secrets for a workspace, newest first.
func (s *SecretStore) List(ctx context.Context, workspaceID string) ([]*models.SecretRecord, error) {
	query := `
		SELECT ` + secretColumns + `
		FROM secret_vault
		WHERE workspace_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("querying secrets: %w", err)
	}
	defer rows.Close()

	var records []*models.SecretRecord

	for rows.Next() {
		rec, err := scanSecret(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning secret: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating secrets: %w", err)
	}

	return records, nil
}

// Exists reports whether a non-deleted secret exists in the workspace.
func (s *SecretStore) Exists(ctx context.Context, workspaceID, id string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM secret_vault
			WHERE workspace_id = $1 AND id = $2 AND deleted_at IS NULL
		)`

	var exists bool
	if err := s.db.QueryRowContext(ctx, query, workspaceID, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking secret existence: %w", err)
	}
	return exists, nil
}

// SoftDelete marks a secret deleted without removing the row.
func (s *SecretStore) SoftDelete(ctx context.Context, workspaceID, id string) error {
	query := `
		UPDATE secret_vault
		SET deleted_at = $3, updated_at = $3
		WHERE workspace_id = $1 AND id = $2 AND deleted_at IS NULL`

	result, err := s.db.ExecContext(ctx, query, workspaceID, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("soft-deleting secret: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// rowScanner abstracts sql.Row and sql.Rows for scanSecret.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSecret(row rowScanner) (*models.SecretRecord, error) {
	var rec models.SecretRecord
	err := row.Scan(
		&rec.ID, &rec.WorkspaceID, &rec.Name, &rec.Slug, &rec.Category,
		&rec.EncryptedValue, &rec.IV, &rec.AuthTag, &rec.KeyVersion,
		&rec.CreatedBy, &rec.ExpiresAt, &rec.DeletedAt,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
