package models

import "time"

// HealthStatus describes the last known connectivity state of a connection.
type HealthStatus string

const (
	// HealthNotConnected means no connection has ever been configured.
	HealthNotConnected HealthStatus = "not_connected"
	// HealthUnknown means a connection exists but has not been probed yet.
	HealthUnknown HealthStatus = "unknown"
	// HealthHealthy means the last probe succeeded.
	HealthHealthy HealthStatus = "healthy"
	// HealthDown means the last probe failed or could not be attempted.
	HealthDown HealthStatus = "down"
)

// ConnectionStatus is the lifecycle status of a connection.
type ConnectionStatus string

const (
	ConnectionActive   ConnectionStatus = "active"
	ConnectionInactive ConnectionStatus = "inactive"
)

// TestResult is the persisted outcome of the most recent probe. Only the
// latest result is retained; each probe monotonically replaces it.
type TestResult struct {
	Healthy        bool      `json:"healthy"`
	ResponseTimeMS int64     `json:"response_time_ms"`
	Note           string    `json:"note,omitempty"`
	TestedAt       time.Time `json:"tested_at"`
	TestedBy       string    `json:"tested_by,omitempty"`
}

// TestOutcome is the structured result returned to a caller of a
// connectivity test. Probe failures are represented here, never as errors.
type TestOutcome struct {
	Provider       string       `json:"provider"`
	WorkspaceID    string       `json:"workspace_id"`
	Healthy        bool         `json:"healthy"`
	HealthStatus   HealthStatus `json:"health_status"`
	ResponseTimeMS int64        `json:"response_time_ms"`
	Note           string       `json:"note,omitempty"`
	TestedAt       time.Time    `json:"tested_at"`
	TestedBy       string       `json:"tested_by,omitempty"`
}

// Result converts the outcome into the persisted TestResult form.
func (o *TestOutcome) Result() *TestResult {
	return &TestResult{
		Healthy:        o.Healthy,
		ResponseTimeMS: o.ResponseTimeMS,
		Note:           o.Note,
		TestedAt:       o.TestedAt,
		TestedBy:       o.TestedBy,
	}
}

// ConnectionRecord binds a workspace and an external provider to a vault
// secret. Health fields are written only by the probe write-back path.
type ConnectionRecord struct {
	ID              string           `json:"id"`
	WorkspaceID     string           `json:"workspace_id"`
	Provider        string           `json:"provider"`
	Name            string           `json:"name"`
	Slug            string           `json:"slug"`
	EndpointURL     string           `json:"endpoint_url,omitempty"`
	Config          map[string]any   `json:"config,omitempty"`
	AuthMethod      string           `json:"auth_method"`
	SecretRef       string           `json:"secret_ref,omitempty"`
	Status          ConnectionStatus `json:"status"`
	HealthStatus    HealthStatus     `json:"health_status"`
	LastHealthCheck *time.Time       `json:"last_health_check,omitempty"`
	TestResult      *TestResult      `json:"test_result,omitempty"`
	IsActive        bool             `json:"is_active"`
	CreatedBy       string           `json:"created_by,omitempty"`
	DeletedAt       *time.Time       `json:"-"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// ProviderStatus joins a catalog entry with the workspace's connection state.
// Providers without a connection report not_connected, never down.
type ProviderStatus struct {
	Provider        string       `json:"provider"`
	Label           string       `json:"label"`
	Description     string       `json:"description"`
	Icon            string       `json:"icon"`
	DocURL          string       `json:"doc_url"`
	RequiredSecret  string       `json:"required_secret"`
	ConnectionID    string       `json:"connection_id,omitempty"`
	SecretRef       string       `json:"secret_ref,omitempty"`
	HealthStatus    HealthStatus `json:"health_status"`
	LastHealthCheck *time.Time   `json:"last_health_check,omitempty"`
	TestResult      *TestResult  `json:"test_result,omitempty"`
	IsConnected     bool         `json:"is_connected"`
}
