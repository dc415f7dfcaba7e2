package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/strataops/vaulthub/internal/models"
)

// AuditStore implements store.AuditStore using PostgreSQL. The audit_logs
// table is insert-only; there is no update or delete path.
type AuditStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// Insert appends one audit entry.
func (a *AuditStore) Insert(ctx context.Context, entry *models.AuditEntry) error {
	detailsJSON, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("marshaling audit details: %w", err)
	}

	query := `
		INSERT INTO audit_logs (id, user_id, action, resource_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err = a.db.ExecContext(ctx, query,
		entry.ID, entry.UserID, entry.Action, entry.ResourceID,
		detailsJSON, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}

	return nil
}
