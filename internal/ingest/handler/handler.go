// Package handler exposes the ingestion pipeline over HTTP. Handlers only
// decode, validate and translate; all semantics live in the service layer.
package handler

import (
	"errors"
	"net/http"

	"crm_inbox_backend/internal/ingest/repository"
	"crm_inbox_backend/internal/ingest/service"
	"crm_inbox_backend/internal/ingest/transport"
	"crm_inbox_backend/platform/httpkit"
	"crm_inbox_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	errInvalidRequest = "invalid request body"
	errValidation     = "validation error"
)

// Handler handles inbound webhook and API key management requests.
type Handler struct {
	pipeline *service.Pipeline
	keys     *repository.APIKeyRepository
	val      *validator.Validator
}

// NewHandler creates a new ingestion handler.
func NewHandler(pipeline *service.Pipeline, keys *repository.APIKeyRepository, val *validator.Validator) *Handler {
	return &Handler{pipeline: pipeline, keys: keys, val: val}
}

// HandleInbound processes one inbound provider message.
// POST /api/v1/webhook/inbound
// Authenticated via X-Webhook-API-Key header (set by middleware).
func (h *Handler) HandleInbound(c *gin.Context) {
	var req transport.InboundMessageRequest
	if !h.bindAndValidate(c, &req) {
		return
	}

	result, err := h.pipeline.Ingest(c.Request.Context(), req)
	if errors.Is(err, service.ErrDuplicateMessage) {
		// Already handled. From the caller's perspective this is success.
		result.WasDuplicate = true
		c.JSON(http.StatusOK, result)
		return
	}
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ---- Admin API Key Management (JWT authenticated) ----

// CreateAPIKeyRequest is the request body for creating a new API key.
type CreateAPIKeyRequest struct {
	Name           string   `json:"name" validate:"required,min=1,max=100"`
	AllowedDomains []string `json:"allowedDomains" validate:"max=20,dive,max=200"`
}

// APIKeyResponse is returned when listing or creating API keys.
type APIKeyResponse struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	KeyPrefix      string    `json:"keyPrefix"`
	AllowedDomains []string  `json:"allowedDomains"`
	IsActive       bool      `json:"isActive"`
	CreatedAt      string    `json:"createdAt"`
}

// CreateAPIKeyResponse includes the plaintext key (shown only once).
type CreateAPIKeyResponse struct {
	APIKeyResponse
	Key string `json:"key"` // plaintext, shown only once
}

// HandleCreateAPIKey creates a new webhook API key.
// POST /api/v1/admin/webhook/keys
func (h *Handler) HandleCreateAPIKey(c *gin.Context) {
	var req CreateAPIKeyRequest
	if !h.bindAndValidate(c, &req) {
		return
	}

	plaintext, hash, prefix, err := repository.GenerateAPIKey()
	if err != nil {
		httpkit.Error(c, http.StatusInternalServerError, "failed to generate API key", nil)
		return
	}

	domains := req.AllowedDomains
	if domains == nil {
		domains = []string{}
	}

	key, err := h.keys.Create(c.Request.Context(), req.Name, hash, prefix, domains)
	if httpkit.HandleError(c, err) {
		return
	}

	c.JSON(http.StatusCreated, CreateAPIKeyResponse{
		APIKeyResponse: toAPIKeyResponse(key),
		Key:            plaintext,
	})
}

// HandleListAPIKeys lists all webhook API keys.
// GET /api/v1/admin/webhook/keys
func (h *Handler) HandleListAPIKeys(c *gin.Context) {
	keys, err := h.keys.List(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}

	out := make([]APIKeyResponse, 0, len(keys))
	for _, key := range keys {
		out = append(out, toAPIKeyResponse(key))
	}
	c.JSON(http.StatusOK, gin.H{"keys": out})
}

// HandleRevokeAPIKey deactivates an API key.
// DELETE /api/v1/admin/webhook/keys/:keyId
func (h *Handler) HandleRevokeAPIKey(c *gin.Context) {
	keyID, err := uuid.Parse(c.Param("keyId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid key ID", nil)
		return
	}

	if err := h.keys.Revoke(c.Request.Context(), keyID); err != nil {
		if errors.Is(err, repository.ErrAPIKeyNotFound) {
			httpkit.Error(c, http.StatusNotFound, "API key not found", nil)
			return
		}
		httpkit.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) bindAndValidate(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, errInvalidRequest, err.Error())
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, errValidation, err.Error())
		return false
	}
	return true
}

func toAPIKeyResponse(key repository.APIKey) APIKeyResponse {
	return APIKeyResponse{
		ID:             key.ID,
		Name:           key.Name,
		KeyPrefix:      key.KeyPrefix,
		AllowedDomains: key.AllowedDomains,
		IsActive:       key.IsActive,
		CreatedAt:      key.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}
