// Package transport defines the request and response contracts of the
// ingestion pipeline. Handlers decode into these types; the service layer
// never touches gin or raw JSON.
package transport

import (
	"time"

	"crm_inbox_backend/internal/ingest/domain"
)

// InboundMetadata carries the optional provider envelope fields that travel
// alongside the message text. Everything here is best-effort: missing or
// malformed metadata never rejects a message.
type InboundMetadata struct {
	ProviderMediaID string         `json:"providerMediaId,omitempty"`
	MediaURL        string         `json:"mediaUrl,omitempty"`
	MediaMimeType   string         `json:"mediaMimeType,omitempty"`
	MediaFilename   string         `json:"mediaFilename,omitempty"`
	MediaSize       int64          `json:"mediaSize,omitempty"`
	MediaSha256     string         `json:"mediaSha256,omitempty"`
	MediaCaption    string         `json:"mediaCaption,omitempty"`
	RawPayload      map[string]any `json:"rawPayload,omitempty"`
	Payload         map[string]any `json:"payload,omitempty"`
	WebhookEntry    map[string]any `json:"webhookEntry,omitempty"`
	WebhookValue    map[string]any `json:"webhookValue,omitempty"`
	SenderID        string         `json:"senderId,omitempty"`
	ThreadID        string         `json:"threadId,omitempty"`
}

// InboundMessageRequest is one inbound provider message presented to the
// pipeline. Timestamp defaults to processing time when absent.
type InboundMessageRequest struct {
	Channel           string          `json:"channel" validate:"required"`
	ProviderMessageID string          `json:"providerMessageId" validate:"required,max=512"`
	FromPhone         string          `json:"fromPhone,omitempty" validate:"omitempty,max=64"`
	FromEmail         string          `json:"fromEmail,omitempty" validate:"omitempty,email"`
	FromName          string          `json:"fromName,omitempty" validate:"omitempty,max=256"`
	Text              string          `json:"text"`
	Timestamp         *time.Time      `json:"timestamp,omitempty"`
	Metadata          InboundMetadata `json:"metadata,omitempty"`
}

// IngestResult is the pipeline's output contract. AutoReplied is carried for
// the caller contract and is always false; reply generation happens elsewhere.
type IngestResult struct {
	Contact         domain.Contact      `json:"contact"`
	Conversation    domain.Conversation `json:"conversation"`
	Lead            domain.Lead         `json:"lead"`
	Message         domain.Message      `json:"message"`
	ExtractedFields map[string]any      `json:"extractedFields"`
	TasksCreated    int                 `json:"tasksCreated"`
	AutoReplied     bool                `json:"autoReplied"`
	WasDuplicate    bool                `json:"wasDuplicate"`
}
