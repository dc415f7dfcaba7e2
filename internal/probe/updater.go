package probe

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/strataops/vaulthub/internal/models"
	"github.com/strataops/vaulthub/internal/store"
)

// Updater persists probe outcomes without blocking the response path. Each
// dispatch runs as a detached goroutine with its own timeout; a failed
// write-back is observable only through logging. Callers may therefore read
// a stale health status immediately after a probe returns.
type Updater struct {
	connections store.ConnectionStore
	timeout     time.Duration
	logger      *slog.Logger
	wg          sync.WaitGroup
}

// NewUpdater creates a health state updater.
func NewUpdater(connections store.ConnectionStore, timeout time.Duration, logger *slog.Logger) *Updater {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Updater{
		connections: connections,
		timeout:     timeout,
		logger:      logger,
	}
}

// Dispatch schedules the write-back for an outcome and returns immediately.
// The background context is deliberate: an abandoned HTTP request must not
// orphan the persistence of a probe that already ran.
func (u *Updater) Dispatch(outcome *models.TestOutcome) {
	u.wg.Add(1)
	go func() {
		defer u.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), u.timeout)
		defer cancel()

		err := u.connections.UpdateHealth(ctx,
			outcome.WorkspaceID, outcome.Provider,
			outcome.HealthStatus, outcome.TestedAt, outcome.Result())
		if err != nil {
			u.logger.Warn("health write-back failed",
				"workspace_id", outcome.WorkspaceID,
				"provider", outcome.Provider,
				"health_status", outcome.HealthStatus,
				"error", err,
			)
		}
	}()
}

// Close waits for all in-flight write-backs to finish.
func (u *Updater) Close() {
	u.wg.Wait()
}
