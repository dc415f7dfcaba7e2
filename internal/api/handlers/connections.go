package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/strataops/vaulthub/internal/api/middleware"
	"github.com/strataops/vaulthub/internal/integrations/providers"
	"github.com/strataops/vaulthub/internal/models"
	"github.com/strataops/vaulthub/internal/store"
	"github.com/strataops/vaulthub/internal/store/postgres"
)

// Tester runs a connectivity test and always returns a structured outcome.
type Tester interface {
	Test(ctx context.Context, workspaceID, provider, actor, bearer string) *models.TestOutcome
}

// Auditor records connection lifecycle events. Failures are ignored by the
// handler.
type Auditor interface {
	Record(ctx context.Context, userID, action, resourceID string, details map[string]any) error
}

// ConnectionHandler handles provider connection HTTP requests.
type ConnectionHandler struct {
	store   store.Store
	tester  Tester
	auditor Auditor
	logger  *slog.Logger
}

// NewConnectionHandler creates a new connection handler.
func NewConnectionHandler(st store.Store, tester Tester, auditor Auditor, logger *slog.Logger) *ConnectionHandler {
	return &ConnectionHandler{
		store:   st,
		tester:  tester,
		auditor: auditor,
		logger:  logger,
	}
}

// UpsertConnectionRequest represents the request body for creating or
// replacing a connection.
type UpsertConnectionRequest struct {
	WorkspaceID string         `json:"workspace_id"`
	Provider    string         `json:"provider"`
	Name        string         `json:"name,omitempty"`
	EndpointURL string         `json:"endpoint_url,omitempty"`
	Config      map[string]any `json:"config,omitempty"`
	SecretRef   string         `json:"secret_ref,omitempty"`
}

// Validate validates the upsert connection request.
func (r *UpsertConnectionRequest) Validate() error {
	if r.WorkspaceID == "" {
		return &APIError{Code: ErrCodeInvalidRequest, Message: "workspace_id is required"}
	}
	if r.Provider == "" {
		return &APIError{Code: ErrCodeInvalidRequest, Message: "provider is required"}
	}
	if _, ok := providers.Lookup(r.Provider); !ok {
		return &APIError{Code: ErrCodeInvalidRequest, Message: "unknown provider"}
	}
	return nil
}

// Upsert handles POST /v1/connections - creates or replaces the connection
// for (workspace, provider).
func (h *ConnectionHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req UpsertConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := req.Validate(); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			WriteError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message)
			return
		}
		WriteBadRequest(w, err.Error())
		return
	}

	// A connection must not point at a secret the workspace does not own.
	if req.SecretRef != "" {
		exists, err := h.store.Secrets().Exists(r.Context(), req.WorkspaceID, req.SecretRef)
		if err != nil {
			h.logger.Error("failed to check secret existence", "error", err,
				"workspace_id", req.WorkspaceID, "secret_ref", req.SecretRef)
			WriteInternalError(w, "Failed to verify referenced secret")
			return
		}
		if !exists {
			WriteUnprocessable(w, "secret_not_found", "Referenced secret does not exist in this workspace")
			return
		}
	}

	entry, _ := providers.Lookup(req.Provider)
	name := req.Name
	if name == "" {
		name = entry.Label
	}

	userID := middleware.GetUserID(r.Context())
	rec := &models.ConnectionRecord{
		ID:           uuid.NewString(),
		WorkspaceID:  req.WorkspaceID,
		Provider:     req.Provider,
		Name:         name,
		Slug:         connectionSlug(req.Provider, req.WorkspaceID),
		EndpointURL:  req.EndpointURL,
		Config:       req.Config,
		AuthMethod:   "bearer",
		SecretRef:    req.SecretRef,
		Status:       models.ConnectionActive,
		HealthStatus: models.HealthUnknown,
		IsActive:     true,
		CreatedBy:    userID,
	}

	stored, err := h.store.Connections().Upsert(r.Context(), rec)
	if err != nil {
		h.logger.Error("failed to upsert connection", "error", err,
			"workspace_id", req.WorkspaceID, "provider", req.Provider)
		WriteInternalError(w, "Failed to store connection")
		return
	}

	// Audit failure is intentionally ignored.
	_ = h.auditor.Record(r.Context(), userID, "connection.upsert", stored.ID, map[string]any{
		"workspace_id": req.WorkspaceID,
		"provider":     req.Provider,
	})

	WriteJSON(w, http.StatusCreated, stored)
}

// Deactivate handles DELETE /v1/connections/{connectionID} - soft-deletes a
// connection. The referenced secret is untouched.
func (h *ConnectionHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	connectionID := chi.URLParam(r, "connectionID")
	workspaceID := r.URL.Query().Get("workspace_id")
	if workspaceID == "" {
		WriteBadRequest(w, "workspace_id is required")
		return
	}

	if err := h.store.Connections().Deactivate(r.Context(), workspaceID, connectionID); err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			WriteNotFound(w, "Connection not found")
			return
		}
		h.logger.Error("failed to deactivate connection", "error", err,
			"workspace_id", workspaceID, "connection_id", connectionID)
		WriteInternalError(w, "Failed to deactivate connection")
		return
	}

	userID := middleware.GetUserID(r.Context())
	// Audit failure is intentionally ignored.
	_ = h.auditor.Record(r.Context(), userID, "connection.deactivate", connectionID, map[string]any{
		"workspace_id": workspaceID,
	})

	w.WriteHeader(http.StatusNoContent)
}

// ListProviderStatuses handles GET /v1/connections/providers - the full
// provider catalog joined with the workspace's connection state.
func (h *ConnectionHandler) ListProviderStatuses(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.URL.Query().Get("workspace_id")
	if workspaceID == "" {
		WriteBadRequest(w, "workspace_id is required")
		return
	}

	connections, err := h.store.Connections().ListActive(r.Context(), workspaceID)
	if err != nil {
		h.logger.Error("failed to list connections", "error", err, "workspace_id", workspaceID)
		WriteInternalError(w, "Failed to list providers")
		return
	}

	byProvider := make(map[string]*models.ConnectionRecord, len(connections))
	for _, conn := range connections {
		byProvider[conn.Provider] = conn
	}

	catalog := providers.Catalog()
	statuses := make([]*models.ProviderStatus, 0, len(catalog))
	for _, entry := range catalog {
		status := &models.ProviderStatus{
			Provider:       string(entry.Provider),
			Label:          entry.Label,
			Description:    entry.Description,
			Icon:           entry.Icon,
			DocURL:         entry.DocURL,
			RequiredSecret: entry.RequiredSecret,
			HealthStatus:   models.HealthNotConnected,
		}
		if conn, ok := byProvider[string(entry.Provider)]; ok {
			status.ConnectionID = conn.ID
			status.SecretRef = conn.SecretRef
			status.HealthStatus = conn.HealthStatus
			status.LastHealthCheck = conn.LastHealthCheck
			status.TestResult = conn.TestResult
			status.IsConnected = true
		}
		statuses = append(statuses, status)
	}

	WriteJSON(w, http.StatusOK, map[string]any{"providers": statuses})
}

// Test handles POST /v1/connections/test/{provider} - runs a connectivity
// probe. The response is always 200 with a structured outcome; failure modes
// are data.
func (h *ConnectionHandler) Test(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	workspaceID := r.URL.Query().Get("workspace_id")
	if workspaceID == "" {
		WriteBadRequest(w, "workspace_id is required")
		return
	}

	userID := middleware.GetUserID(r.Context())
	bearer := middleware.GetBearerToken(r.Context())

	outcome := h.tester.Test(r.Context(), workspaceID, provider, userID, bearer)
	WriteJSON(w, http.StatusOK, outcome)
}

// connectionSlug derives the stable slug for a workspace's provider
// connection.
func connectionSlug(provider, workspaceID string) string {
	short := workspaceID
	if len(short) > 8 {
		short = short[:8]
	}
	return provider + "-" + short
}
