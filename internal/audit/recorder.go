// Package audit provides best-effort append-only logging of vault access and
// mutation events.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/strataops/vaulthub/internal/models"
	"github.com/strataops/vaulthub/internal/store"
)

// sensitiveKeys must never appear in audit details.
var sensitiveKeys = map[string]struct{}{
	"password":        {},
	"secret":          {},
	"value":           {},
	"token":           {},
	"api_key":         {},
	"encrypted_value": {},
	"iv":              {},
	"auth_tag":        {},
	"authorization":   {},
	"cookie":          {},
}

// Recorder appends audit entries. Record returns its error so call sites can
// discard it explicitly; a failed audit write must never fail the operation
// it observes.
type Recorder struct {
	store  store.AuditStore
	logger *slog.Logger
}

// NewRecorder creates a new audit recorder.
func NewRecorder(st store.AuditStore, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: st, logger: logger}
}

// Record appends one audit entry with scrubbed details. The returned error is
// informational; callers on the primary vault path discard it.
func (r *Recorder) Record(ctx context.Context, userID, action, resourceID string, details map[string]any) error {
	entry := &models.AuditEntry{
		ID:         uuid.NewString(),
		UserID:     userID,
		Action:     action,
		ResourceID: resourceID,
		Details:    Scrub(details),
		CreatedAt:  time.Now().UTC(),
	}

	if err := r.store.Insert(ctx, entry); err != nil {
		r.logger.Warn("audit write failed",
			"action", action,
			"resource_id", resourceID,
			"error", err,
		)
		return err
	}

	return nil
}

// Scrub returns a copy of details with sensitive keys removed.
func Scrub(details map[string]any) map[string]any {
	if details == nil {
		return nil
	}
	out := make(map[string]any, len(details))
	for k, v := range details {
		if _, sensitive := sensitiveKeys[k]; sensitive {
			continue
		}
		out[k] = v
	}
	return out
}
