package service

import (
	"testing"

	"crm_inbox_backend/internal/ingest/domain"
	"crm_inbox_backend/internal/ingest/transport"
)

func TestNormalizeIdentity(t *testing.T) {
	tests := []struct {
		name    string
		channel domain.Channel
		req     transport.InboundMessageRequest
		want    string
		wantOK  bool
	}{
		{
			name:    "whatsapp local mobile",
			channel: domain.ChannelWhatsApp,
			req:     transport.InboundMessageRequest{FromPhone: "0501234567"},
			want:    "+971501234567",
			wantOK:  true,
		},
		{
			name:    "whatsapp international",
			channel: domain.ChannelWhatsApp,
			req:     transport.InboundMessageRequest{FromPhone: "919876543210"},
			want:    "+919876543210",
			wantOK:  true,
		},
		{
			name:    "whatsapp garbage falls back to raw",
			channel: domain.ChannelWhatsApp,
			req:     transport.InboundMessageRequest{FromPhone: "1234"},
			want:    "1234",
			wantOK:  false,
		},
		{
			name:    "instagram sender id gets prefix",
			channel: domain.ChannelInstagram,
			req:     transport.InboundMessageRequest{Metadata: transport.InboundMetadata{SenderID: "17840012345"}},
			want:    "ig:17840012345",
			wantOK:  true,
		},
		{
			name:    "facebook sender id gets prefix",
			channel: domain.ChannelFacebook,
			req:     transport.InboundMessageRequest{Metadata: transport.InboundMetadata{SenderID: "99881122"}},
			want:    "fb:99881122",
			wantOK:  true,
		},
		{
			name:    "email lowercased and trimmed",
			channel: domain.ChannelEmail,
			req:     transport.InboundMessageRequest{FromEmail: "  Ahmed@Example.COM "},
			want:    "ahmed@example.com",
			wantOK:  true,
		},
		{
			name:    "webchat sender id gets prefix",
			channel: domain.ChannelWebchat,
			req:     transport.InboundMessageRequest{Metadata: transport.InboundMetadata{SenderID: "session-abc"}},
			want:    "wc:session-abc",
			wantOK:  true,
		},
		{
			name:    "no sender token keys on provider message id",
			channel: domain.ChannelWebchat,
			req:     transport.InboundMessageRequest{ProviderMessageID: "web-123"},
			want:    "web-123",
			wantOK:  false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := NormalizeIdentity(tc.channel, tc.req)
			if got.Identifier != tc.want {
				t.Errorf("identifier = %q, want %q", got.Identifier, tc.want)
			}
			if got.NormalizedOK != tc.wantOK {
				t.Errorf("normalizedOK = %v, want %v", got.NormalizedOK, tc.wantOK)
			}
		})
	}
}
