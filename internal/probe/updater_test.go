package probe

import (
	"errors"
	"testing"
	"time"

	"github.com/strataops/vaulthub/internal/models"
)

func TestUpdaterPersistsOutcome(t *testing.T) {
	connections := newStubConnectionStore()
	u := NewUpdater(connections, time.Second, nil)

	u.Dispatch(&models.TestOutcome{
		Provider:     "resend",
		WorkspaceID:  "ws-1",
		Healthy:      true,
		HealthStatus: models.HealthHealthy,
		TestedAt:     time.Now().UTC(),
	})
	u.Close()

	writes := connections.writes()
	if len(writes) != 1 || writes[0] != models.HealthHealthy {
		t.Fatalf("health writes = %v", writes)
	}
}

func TestUpdaterPersistErrorDoesNotPropagate(t *testing.T) {
	connections := newStubConnectionStore()
	connections.updateErr = errors.New("database down")
	u := NewUpdater(connections, time.Second, nil)

	// Dispatch must not panic or block; the failure is log-only.
	u.Dispatch(&models.TestOutcome{
		Provider:     "resend",
		WorkspaceID:  "ws-1",
		HealthStatus: models.HealthDown,
		TestedAt:     time.Now().UTC(),
	})
	u.Close()

	if len(connections.writes()) != 0 {
		t.Fatal("failed write recorded as success")
	}
}

func TestUpdaterCloseDrainsAllDispatches(t *testing.T) {
	connections := newStubConnectionStore()
	u := NewUpdater(connections, time.Second, nil)

	for i := 0; i < 20; i++ {
		u.Dispatch(&models.TestOutcome{
			Provider:     "resend",
			WorkspaceID:  "ws-1",
			HealthStatus: models.HealthHealthy,
			TestedAt:     time.Now().UTC(),
		})
	}
	u.Close()

	if got := len(connections.writes()); got != 20 {
		t.Fatalf("writes = %d, want 20", got)
	}
}
