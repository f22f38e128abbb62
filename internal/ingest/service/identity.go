package service

import (
	"strings"

	"crm_inbox_backend/internal/ingest/domain"
	"crm_inbox_backend/internal/ingest/transport"
	"crm_inbox_backend/platform/phone"
)

// Identity is the canonical sender key for one channel family, plus whatever
// display fields the provider sent along.
type Identity struct {
	Identifier  string
	DisplayName string
	Email       string
	// NormalizedOK is false when phone normalization fell back to the raw
	// token. The message is still ingested; a mis-keyed contact beats a
	// dropped message.
	NormalizedOK bool
}

// NormalizeIdentity maps a channel and raw sender fields to the canonical
// contact identifier. Platform user ids get a channel prefix so they never
// collide with phone-keyed contacts.
func NormalizeIdentity(channel domain.Channel, req transport.InboundMessageRequest) Identity {
	id := Identity{
		DisplayName:  strings.TrimSpace(req.FromName),
		Email:        strings.ToLower(strings.TrimSpace(req.FromEmail)),
		NormalizedOK: true,
	}

	switch channel {
	case domain.ChannelWhatsApp:
		id.Identifier, id.NormalizedOK = phone.NormalizeWhatsApp(req.FromPhone)
	case domain.ChannelEmail:
		id.Identifier = id.Email
	case domain.ChannelInstagram:
		id.Identifier = "ig:" + senderToken(req)
	case domain.ChannelFacebook:
		id.Identifier = "fb:" + senderToken(req)
	case domain.ChannelWebchat:
		id.Identifier = "wc:" + senderToken(req)
	}

	if id.Identifier == "" || strings.HasSuffix(id.Identifier, ":") {
		// No usable sender token at all; key on whatever raw field is
		// present rather than dropping the message.
		id.Identifier = firstNonEmpty(strings.TrimSpace(req.FromPhone), id.Email, req.ProviderMessageID)
		id.NormalizedOK = false
	}
	return id
}

func senderToken(req transport.InboundMessageRequest) string {
	return firstNonEmpty(
		strings.TrimSpace(req.Metadata.SenderID),
		strings.TrimSpace(req.FromPhone),
		strings.ToLower(strings.TrimSpace(req.FromEmail)),
	)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
