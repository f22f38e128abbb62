// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"crm_inbox_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Ingestion Domain Events
// =============================================================================

// MessageIngested is published after a new inbound message has been recorded
// and merged. Duplicate deliveries never publish it.
type MessageIngested struct {
	BaseEvent
	MessageID      uuid.UUID `json:"messageId"`
	ConversationID uuid.UUID `json:"conversationId"`
	LeadID         uuid.UUID `json:"leadId"`
	ContactID      uuid.UUID `json:"contactId"`
	Channel        string    `json:"channel"`
	SentAt         time.Time `json:"sentAt"`
}

func (e MessageIngested) EventName() string { return "ingest.message.ingested" }

// LeadCreated is published when the lead resolver creates a fresh lead
// instead of reusing an open one.
type LeadCreated struct {
	BaseEvent
	LeadID    uuid.UUID `json:"leadId"`
	ContactID uuid.UUID `json:"contactId"`
	Channel   string    `json:"channel"`
}

func (e LeadCreated) EventName() string { return "ingest.lead.created" }

// FollowupTasksCreated is published when the task trigger creates at least
// one follow-up task for an ingested message.
type FollowupTasksCreated struct {
	BaseEvent
	LeadID         uuid.UUID `json:"leadId"`
	ConversationID uuid.UUID `json:"conversationId"`
	Channel        string    `json:"channel"`
	Count          int       `json:"count"`
}

func (e FollowupTasksCreated) EventName() string { return "ingest.tasks.created" }
