// Package service implements the inbound ingestion pipeline: dedup claim,
// identity normalization, contact/lead/conversation resolution, message
// recording, deterministic extraction, safe merge and follow-up task
// triggering. All coordination between concurrent invocations happens in
// the database; the pipeline itself holds no locks.
package service

import (
	"context"
	"time"

	"crm_inbox_backend/internal/extract"
	"crm_inbox_backend/internal/ingest/domain"

	"github.com/google/uuid"
)

// The pipeline depends on narrow store interfaces instead of concrete
// repositories so tests can substitute in-memory fakes.

// DedupStore claims (channel, provider message id) pairs exactly once.
type DedupStore interface {
	Claim(ctx context.Context, channel domain.Channel, providerMessageID string) (bool, error)
}

// ContactStore resolves and enriches contacts.
type ContactStore interface {
	Upsert(ctx context.Context, identifier, displayName, email string, channel domain.Channel) (domain.Contact, error)
	FillExtractedFields(ctx context.Context, contactID uuid.UUID, displayName, email, nationality string) error
}

// LeadStore resolves and updates leads.
type LeadStore interface {
	FindByProviderMessage(ctx context.Context, channel domain.Channel, providerMessageID string) (*domain.Lead, error)
	FindReusable(ctx context.Context, contactID uuid.UUID, createdAfter time.Time) (*domain.Lead, error)
	Create(ctx context.Context, contactID uuid.UUID, lastInboundAt time.Time) (domain.Lead, error)
	TouchInbound(ctx context.Context, leadID uuid.UUID, messageAt time.Time) error
	UpdateMerged(ctx context.Context, leadID uuid.UUID, data map[string]any, serviceType, serviceRaw, businessActivity string, expiryDate *time.Time) error
}

// ConversationStore resolves and updates conversation threads.
type ConversationStore interface {
	Upsert(ctx context.Context, contactID uuid.UUID, channel domain.Channel, leadID uuid.UUID, messageAt time.Time, externalThreadID string) (domain.Conversation, error)
	RelinkToLead(ctx context.Context, contactID, leadID uuid.UUID) error
	IncrementUnread(ctx context.Context, conversationID uuid.UUID) error
	UpdateKnownFields(ctx context.Context, conversationID uuid.UUID, knownFields map[string]any) error
	SetLastQuestion(ctx context.Context, conversationID uuid.UUID, question string) error
}

// MessageStore records inbound messages. Insert reports created=false when
// the (channel, provider message id) row already exists, returning that row.
type MessageStore interface {
	Insert(ctx context.Context, msg domain.Message) (domain.Message, bool, error)
}

// TaskStore creates follow-up tasks idempotently.
type TaskStore interface {
	CreateIfAbsent(ctx context.Context, task domain.FollowupTask) (bool, error)
}

// FieldExtractor runs deterministic extraction over message text.
type FieldExtractor interface {
	Extract(text string) extract.Fields
}
