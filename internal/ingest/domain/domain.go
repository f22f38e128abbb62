// Package domain defines the entities and closed enumerations of the inbound
// ingestion pipeline. Channel, direction and stage values are normalized once
// at the ingestion boundary; everything downstream works with these types.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Channel identifies the messaging platform a message arrived on.
type Channel string

const (
	ChannelWhatsApp  Channel = "WHATSAPP"
	ChannelEmail     Channel = "EMAIL"
	ChannelInstagram Channel = "INSTAGRAM"
	ChannelFacebook  Channel = "FACEBOOK"
	ChannelWebchat   Channel = "WEBCHAT"
)

// ParseChannel normalizes a raw channel token into a Channel.
// This is the single normalization boundary; no downstream code
// case-folds channel strings again.
func ParseChannel(raw string) (Channel, error) {
	switch Channel(strings.ToUpper(strings.TrimSpace(raw))) {
	case ChannelWhatsApp:
		return ChannelWhatsApp, nil
	case ChannelEmail:
		return ChannelEmail, nil
	case ChannelInstagram:
		return ChannelInstagram, nil
	case ChannelFacebook:
		return ChannelFacebook, nil
	case ChannelWebchat:
		return ChannelWebchat, nil
	}
	return "", fmt.Errorf("unknown channel %q", raw)
}

// Direction indicates whether a message was received or sent.
type Direction string

const (
	DirectionInbound  Direction = "INBOUND"
	DirectionOutbound Direction = "OUTBOUND"
)

// LeadStage is the lifecycle stage of a lead.
type LeadStage string

const (
	StageNew          LeadStage = "NEW"
	StageQualifying   LeadStage = "QUALIFYING"
	StageProposal     LeadStage = "PROPOSAL"
	StageNegotiation  LeadStage = "NEGOTIATION"
	StageCompletedWon LeadStage = "COMPLETED_WON"
	StageLost         LeadStage = "LOST"
	StageOnHold       LeadStage = "ON_HOLD"
)

// ClosedStages are the stages that never receive new inbound activity.
// A lead in one of these stages is skipped by the reuse search and a
// fresh lead is created instead.
var ClosedStages = []LeadStage{StageCompletedWon, StageLost, StageOnHold}

// IsOpen reports whether the stage may still receive inbound activity.
func (s LeadStage) IsOpen() bool {
	for _, closed := range ClosedStages {
		if s == closed {
			return false
		}
	}
	return true
}

// ConversationStatus is the open/closed state of a conversation thread.
type ConversationStatus string

const (
	ConversationOpen   ConversationStatus = "open"
	ConversationClosed ConversationStatus = "closed"
)

// LeadReuseWindow is how long after creation an open lead keeps absorbing
// new inbound messages. Measured against the message timestamp, not the
// processing time, so delayed webhook deliveries do not age a lead early.
const LeadReuseWindow = 30 * 24 * time.Hour

// Contact is the resolved identity of a message sender on one channel family.
// Fields are only ever filled in by later messages, never blanked.
type Contact struct {
	ID            uuid.UUID
	Identifier    string // E.164 phone or channel-prefixed pseudo-id
	DisplayName   string
	Email         string
	Nationality   string
	SourceChannel Channel
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Lead is a tracked sales/service opportunity tied to one contact.
type Lead struct {
	ID               uuid.UUID
	ContactID        uuid.UUID
	Stage            LeadStage
	ServiceType      string // requested-service enum value, empty until extracted
	ServiceRaw       string
	BusinessActivity string
	Data             map[string]any // extracted structured data blob
	ExpiryDate       *time.Time
	Score            float64
	LastInboundAt    *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Conversation is the single thread for a (contact, channel) pair.
type Conversation struct {
	ID               uuid.UUID
	ContactID        uuid.UUID
	Channel          Channel
	LeadID           uuid.UUID
	Status           ConversationStatus
	LastInboundAt    *time.Time
	LastOutboundAt   *time.Time
	UnreadCount      int
	KnownFields      map[string]any // extraction cache
	LastQuestion     string
	ExternalThreadID string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// MediaMeta carries the media-resolution fields persisted on a message.
type MediaMeta struct {
	MediaID  string
	MimeType string
	Filename string
	Size     int64
	SHA256   string
	Caption  string
}

// Message is one distinct provider message on one channel. Immutable once
// created; uniqueness on (channel, provider_message_id) is the second
// idempotency barrier after the dedup claim.
type Message struct {
	ID                uuid.UUID
	ConversationID    uuid.UUID
	LeadID            uuid.UUID
	ContactID         uuid.UUID
	Channel           Channel
	ProviderMessageID string
	Direction         Direction
	Body              string
	Media             MediaMeta
	RawPayload        []byte
	SentAt            time.Time
	CreatedAt         time.Time
}

// FollowupTask is a follow-up action derived from extracted fields.
// TriggerKey makes creation idempotent per (provider message, task type).
type FollowupTask struct {
	ID             uuid.UUID
	LeadID         uuid.UUID
	ConversationID uuid.UUID
	Channel        Channel
	TaskType       string
	TriggerKey     string
	Title          string
	DueAt          *time.Time
	Status         string
	CreatedAt      time.Time
}
