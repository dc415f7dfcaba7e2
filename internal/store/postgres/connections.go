package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/strataops/vaulthub/internal/models"
)

// ConnectionStore implements store.ConnectionStore using PostgreSQL.
type ConnectionStore struct {
	db     *sql.DB
	logger *slog.Logger
}

const connectionColumns = `
	id, workspace_id, provider, name, slug, endpoint_url, config, auth_method,
	secret_ref, status, health_status, last_health_check, test_result,
	is_active, created_by, deleted_at, created_at, updated_at`

// Upsert creates or replaces the connection identified by (workspace, slug).
// Re-connecting a provider reactivates and updates the existing row; the
// health status of a brand-new connection starts at unknown.
func (c *ConnectionStore) Upsert(ctx context.Context, rec *models.ConnectionRecord) (*models.ConnectionRecord, error) {
	configJSON, err := json.Marshal(rec.Config)
	if err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}

	query := `
		INSERT INTO mcp_connections (
			id, workspace_id, provider, name, slug, endpoint_url, config,
			auth_method, secret_ref, status, health_status, is_active,
			created_by, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, TRUE, $12, $13, $13)
		ON CONFLICT (workspace_id, slug) DO UPDATE SET
			name = EXCLUDED.name,
			endpoint_url = EXCLUDED.endpoint_url,
			config = EXCLUDED.config,
			auth_method = EXCLUDED.auth_method,
			secret_ref = EXCLUDED.secret_ref,
			status = EXCLUDED.status,
			is_active = TRUE,
			deleted_at = NULL,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + connectionColumns

	now := time.Now().UTC()

	stored, err := scanConnection(c.db.QueryRowContext(ctx, query,
		rec.ID, rec.WorkspaceID, rec.Provider, rec.Name, rec.Slug,
		rec.EndpointURL, configJSON, rec.AuthMethod, rec.SecretRef,
		rec.Status, rec.HealthStatus, rec.CreatedBy, now,
	))
	if err != nil {
		return nil, fmt.Errorf("upserting connection: %w", err)
	}

	return stored, nil
}

// Resolve returns the active, non-deleted connection for a provider.
func (c *ConnectionStore) Resolve(ctx context.Context, workspaceID, provider string) (*models.ConnectionRecord, error) {
	query := `
		SELECT ` + connectionColumns + `
		FROM mcp_connections
		WHERE workspace_id = $1 AND provider = $2
		  AND is_active = TRUE AND deleted_at IS NULL`

	rec, err := scanConnection(c.db.QueryRowContext(ctx, query, workspaceID, provider))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("resolving connection: %w", err)
	}
	return rec, nil
}

// ListActive retrieves all active, non-deleted connections for a workspace.
func (c *ConnectionStore) ListActive(ctx context.Context, workspaceID string) ([]*models.ConnectionRecord, error) {
	query := `
		SELECT ` + connectionColumns + `
		FROM mcp_connections
		WHERE workspace_id = $1 AND is_active = TRUE AND deleted_at IS NULL
		ORDER BY provider`

	rows, err := c.db.QueryContext(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("querying connections: %w", err)
	}
	defer rows.Close()

	var records []*models.ConnectionRecord

	for rows.Next() {
		rec, err := scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning connection: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating connections: %w", err)
	}

	return records, nil
}

// Deactivate soft-deletes a connection and marks it inactive.
func (c *ConnectionStore) Deactivate(ctx context.Context, workspaceID, id string) error {
	query := `
		UPDATE mcp_connections
		SET is_active = FALSE, status = $3, deleted_at = $4, updated_at = $4
		WHERE workspace_id = $1 AND id = $2 AND deleted_at IS NULL`

	result, err := c.db.ExecContext(ctx, query, workspaceID, id,
		models.ConnectionInactive, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("deactivating connection: %w", err)
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

// UpdateHealth replaces the health status and latest test result for the
// active connection of a provider. A missing connection is not an error; the
// write-back is advisory.
func (c *ConnectionStore) UpdateHealth(ctx context.Context, workspaceID, provider string, status models.HealthStatus, checkedAt time.Time, result *models.TestResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshaling test result: %w", err)
	}

	query := `
		UPDATE mcp_connections
		SET health_status = $3, last_health_check = $4, test_result = $5, updated_at = $6
		WHERE workspace_id = $1 AND provider = $2
		  AND is_active = TRUE AND deleted_at IS NULL`

	_, err = c.db.ExecContext(ctx, query, workspaceID, provider,
		status, checkedAt, resultJSON, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("updating connection health: %w", err)
	}

	return nil
}

func scanConnection(row rowScanner) (*models.ConnectionRecord, error) {
	var rec models.ConnectionRecord
	var configJSON, resultJSON []byte

	err := row.Scan(
		&rec.ID, &rec.WorkspaceID, &rec.Provider, &rec.Name, &rec.Slug,
		&rec.EndpointURL, &configJSON, &rec.AuthMethod, &rec.SecretRef,
		&rec.Status, &rec.HealthStatus, &rec.LastHealthCheck, &resultJSON,
		&rec.IsActive, &rec.CreatedBy, &rec.DeletedAt,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(configJSON) > 0 {
		if err := json.Unmarshal(configJSON, &rec.Config); err != nil {
			return nil, fmt.Errorf("unmarshaling config: %w", err)
		}
	}
	if len(resultJSON) > 0 {
		if err := json.Unmarshal(resultJSON, &rec.TestResult); err != nil {
			return nil, fmt.Errorf("unmarshaling test result: %w", err)
		}
	}

	return &rec, nil
}
