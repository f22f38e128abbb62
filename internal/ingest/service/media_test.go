package service

import (
	"testing"

	"crm_inbox_backend/internal/ingest/transport"
)

func TestResolveMediaPriority(t *testing.T) {
	tests := []struct {
		name string
		md   transport.InboundMetadata
		want string
	}{
		{
			name: "explicit id wins over everything",
			md: transport.InboundMetadata{
				ProviderMediaID: "media-1",
				MediaURL:        "12345",
				RawPayload:      map[string]any{"image": map[string]any{"id": "raw-9"}},
			},
			want: "media-1",
		},
		{
			name: "numeric legacy url field",
			md:   transport.InboundMetadata{MediaURL: "987654321"},
			want: "987654321",
		},
		{
			name: "non-numeric url is not an id",
			md:   transport.InboundMetadata{MediaURL: "https://cdn.example.com/a.jpg"},
			want: "",
		},
		{
			name: "raw payload nested image id",
			md:   transport.InboundMetadata{RawPayload: map[string]any{"image": map[string]any{"id": "img-7"}}},
			want: "img-7",
		},
		{
			name: "raw payload beats normalized payload",
			md: transport.InboundMetadata{
				RawPayload: map[string]any{"video": map[string]any{"id": "raw-vid"}},
				Payload:    map[string]any{"video": map[string]any{"id": "norm-vid"}},
			},
			want: "raw-vid",
		},
		{
			name: "webhook envelope as last resort",
			md:   transport.InboundMetadata{WebhookValue: map[string]any{"media_id": "env-3"}},
			want: "env-3",
		},
		{
			name: "numeric json id",
			md:   transport.InboundMetadata{Payload: map[string]any{"document": map[string]any{"id": float64(4411)}}},
			want: "4411",
		},
		{
			name: "nothing resolvable stays empty",
			md:   transport.InboundMetadata{MediaMimeType: "image/jpeg"},
			want: "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ResolveMedia(tc.md)
			if got.MediaID != tc.want {
				t.Errorf("mediaID = %q, want %q", got.MediaID, tc.want)
			}
		})
	}
}

func TestResolveMediaCarriesMetadata(t *testing.T) {
	got := ResolveMedia(transport.InboundMetadata{
		ProviderMediaID: "m-1",
		MediaMimeType:   "application/pdf",
		MediaFilename:   "passport.pdf",
		MediaSize:       2048,
		MediaSha256:     "abc123",
		MediaCaption:    "my passport",
	})
	if got.MimeType != "application/pdf" || got.Filename != "passport.pdf" || got.Size != 2048 || got.SHA256 != "abc123" || got.Caption != "my passport" {
		t.Errorf("metadata not carried through: %+v", got)
	}
}
