package service

import (
	"strconv"
	"strings"

	"crm_inbox_backend/internal/ingest/domain"
	"crm_inbox_backend/internal/ingest/transport"
)

// ResolveMedia populates the media fields of a message from the provider
// metadata. Sources are tried in priority order: the explicit media id, a
// numeric id stored in the legacy URL field, the raw provider payload, the
// normalized payload, then the webhook envelope. A message typed as media
// with no resolvable id is still stored with an empty id; recovery is a
// later reconciliation concern, never a rejection.
func ResolveMedia(md transport.InboundMetadata) domain.MediaMeta {
	meta := domain.MediaMeta{
		MimeType: md.MediaMimeType,
		Filename: md.MediaFilename,
		Size:     md.MediaSize,
		SHA256:   md.MediaSha256,
		Caption:  md.MediaCaption,
	}

	if id := strings.TrimSpace(md.ProviderMediaID); id != "" {
		meta.MediaID = id
		return meta
	}
	if id := numericToken(md.MediaURL); id != "" {
		meta.MediaID = id
		return meta
	}
	for _, payload := range []map[string]any{md.RawPayload, md.Payload, md.WebhookValue, md.WebhookEntry} {
		if id := mediaIDFromPayload(payload); id != "" {
			meta.MediaID = id
			return meta
		}
	}
	return meta
}

// numericToken returns s when it is a bare numeric media id that older
// integrations stored in the URL field, empty otherwise.
func numericToken(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if _, err := strconv.ParseUint(s, 10, 64); err != nil {
		return ""
	}
	return s
}

// mediaIDFromPayload digs through a provider payload for a media id. Known
// shapes: {"image": {"id": ...}}, {"video": {"id": ...}}, {"document":
// {"id": ...}}, {"audio": {"id": ...}}, {"sticker": {"id": ...}}, or a
// top-level {"media_id": ...} / {"id": ...} on an attachment object.
func mediaIDFromPayload(payload map[string]any) string {
	if len(payload) == 0 {
		return ""
	}
	for _, key := range []string{"image", "video", "document", "audio", "sticker"} {
		if nested, ok := payload[key].(map[string]any); ok {
			if id := stringValue(nested["id"]); id != "" {
				return id
			}
		}
	}
	if id := stringValue(payload["media_id"]); id != "" {
		return id
	}
	if id := stringValue(payload["mediaId"]); id != "" {
		return id
	}
	return ""
}

func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatInt(int64(t), 10)
	}
	return ""
}
