package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/strataops/vaulthub/internal/api/middleware"
	"github.com/strataops/vaulthub/internal/models"
	"github.com/strataops/vaulthub/internal/vault"
)

// VaultHandler handles encrypted secret HTTP requests. Secret values enter
// through Create and never leave; every response body carries redacted
// records only.
type VaultHandler struct {
	vault  *vault.Service
	logger *slog.Logger
}

// NewVaultHandler creates a new vault handler.
func NewVaultHandler(vaultSvc *vault.Service, logger *slog.Logger) *VaultHandler {
	return &VaultHandler{
		vault:  vaultSvc,
		logger: logger,
	}
}

// CreateSecretRequest represents the request body for creating a secret.
type CreateSecretRequest struct {
	WorkspaceID string     `json:"workspace_id"`
	Name        string     `json:"name"`
	Category    string     `json:"category"`
	Value       string     `json:"value"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// Validate validates the create secret request.
func (r *CreateSecretRequest) Validate() error {
	if r.WorkspaceID == "" {
		return &APIError{Code: ErrCodeInvalidRequest, Message: "workspace_id is required"}
	}
	if r.Name == "" {
		return &APIError{Code: ErrCodeInvalidRequest, Message: "name is required"}
	}
	if r.Value == "" {
		return &APIError{Code: ErrCodeInvalidRequest, Message: "value is required"}
	}
	if !models.SecretCategory(r.Category).Valid() {
		return &APIError{Code: ErrCodeInvalidRequest, Message: "category must be one of: api_key, oauth_token, password, certificate, webhook_secret, other"}
	}
	return nil
}

// Create handles POST /v1/vault/secrets - encrypts and stores a secret.
func (h *VaultHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSecretRequest
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

	userID := middleware.GetUserID(r.Context())
	rec, err := h.vault.Create(r.Context(), req.WorkspaceID, req.Name,
		models.SecretCategory(req.Category), req.Value, req.ExpiresAt, userID)
	if err != nil {
		switch {
		case errors.Is(err, vault.ErrDuplicateSecret):
			WriteConflict(w, "A secret with this name already exists in the workspace")
		case errors.Is(err, vault.ErrKeyMissing), errors.Is(err, vault.ErrKeyMalformed):
			// Operator misconfiguration. The error text never includes key
			// material.
			h.logger.Error("vault master key unusable", "error", err)
			WriteInternalError(w, "Vault encryption is not configured")
		default:
			h.logger.Error("failed to create secret", "error", err, "workspace_id", req.WorkspaceID)
			WriteInternalError(w, "Failed to store secret")
		}
		return
	}

	WriteJSON(w, http.StatusCreated, rec)
}

// List handles GET /v1/vault/secrets - lists redacted secrets for a workspace.
func (h *VaultHandler) List(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.URL.Query().Get("workspace_id")
	if workspaceID == "" {
		WriteBadRequest(w, "workspace_id is required")
		return
	}

	userID := middleware.GetUserID(r.Context())
	records, err := h.vault.List(r.Context(), workspaceID, userID)
	if err != nil {
		h.logger.Error("failed to list secrets", "error", err, "workspace_id", workspaceID)
		WriteInternalError(w, "Failed to list secrets")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"secrets": records})
}

// Delete handles DELETE /v1/vault/secrets/{secretID} - soft-deletes a secret.
func (h *VaultHandler) Delete(w http.ResponseWriter, r *http.Request) {
	secretID := chi.URLParam(r, "secretID")
	workspaceID := r.URL.Query().Get("workspace_id")
	if workspaceID == "" {
		WriteBadRequest(w, "workspace_id is required")
		return
	}

	userID := middleware.GetUserID(r.Context())
	if err := h.vault.Delete(r.Context(), workspaceID, secretID, userID); err != nil {
		if errors.Is(err, vault.ErrSecretNotFound) {
			WriteNotFound(w, "Secret not found")
			return
		}
		h.logger.Error("failed to delete secret", "error", err,
			"workspace_id", workspaceID, "secret_id", secretID)
		WriteInternalError(w, "Failed to delete secret")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
