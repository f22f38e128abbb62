// Package ingest provides the inbound message ingestion bounded context.
// This file defines the module that encapsulates wiring and route registration.
package ingest

import (
	"crm_inbox_backend/internal/events"
	"crm_inbox_backend/internal/extract"
	apphttp "crm_inbox_backend/internal/http"
	"crm_inbox_backend/internal/ingest/handler"
	"crm_inbox_backend/internal/ingest/repository"
	"crm_inbox_backend/internal/ingest/service"
	"crm_inbox_backend/platform/config"
	"crm_inbox_backend/platform/logger"
	"crm_inbox_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the ingestion bounded context module implementing http.Module.
type Module struct {
	handler  *handler.Handler
	pipeline *service.Pipeline
	keys     *repository.APIKeyRepository
	leads    *repository.LeadRepository
	messages *repository.MessageRepository
	tasks    *repository.TaskRepository
	contacts *repository.ContactRepository
}

// NewModule creates and initializes the ingestion module with all its dependencies.
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, val *validator.Validator, cfg config.IngestConfig, log *logger.Logger) (*Module, error) {
	extractor := extract.New()
	if path := cfg.GetExtractorDictPath(); path != "" {
		if err := extractor.LoadOverrides(path); err != nil {
			return nil, err
		}
	}

	leads := repository.NewLeadRepository(pool)
	messages := repository.NewMessageRepository(pool)
	tasks := repository.NewTaskRepository(pool)
	contacts := repository.NewContactRepository(pool)
	keys := repository.NewAPIKeyRepository(pool)

	pipeline := service.NewPipeline(
		repository.NewDedupRepository(pool),
		contacts,
		leads,
		repository.NewConversationRepository(pool),
		messages,
		tasks,
		extractor,
		eventBus,
		log,
		cfg.GetLeadReuseWindow(),
	)

	return &Module{
		handler:  handler.NewHandler(pipeline, keys, val),
		pipeline: pipeline,
		keys:     keys,
		leads:    leads,
		messages: messages,
		tasks:    tasks,
		contacts: contacts,
	}, nil
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "ingest"
}

// Pipeline exposes the ingestion pipeline for non-HTTP intakes (IMAP poller).
func (m *Module) Pipeline() *service.Pipeline {
	return m.pipeline
}

// LeadRepository exposes lead access for the background worker.
func (m *Module) LeadRepository() *repository.LeadRepository {
	return m.leads
}

// MessageRepository exposes message access for the background worker.
func (m *Module) MessageRepository() *repository.MessageRepository {
	return m.messages
}

// TaskRepository exposes task access for the notification worker.
func (m *Module) TaskRepository() *repository.TaskRepository {
	return m.tasks
}

// RegisterRoutes mounts ingestion routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// Public webhook endpoint (API key auth, no JWT)
	webhookGroup := ctx.V1.Group("/webhook")
	webhookGroup.Use(handler.APIKeyAuthMiddleware(m.keys))
	webhookGroup.POST("/inbound", m.handler.HandleInbound)

	// Admin API key management (JWT auth + admin role)
	adminGroup := ctx.Admin.Group("/webhook/keys")
	adminGroup.POST("", m.handler.HandleCreateAPIKey)
	adminGroup.GET("", m.handler.HandleListAPIKeys)
	adminGroup.DELETE("/:keyId", m.handler.HandleRevokeAPIKey)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
