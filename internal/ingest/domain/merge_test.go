package domain

import (
	"reflect"
	"testing"
)

func TestMergeSafeEmptyNeverOverwrites(t *testing.T) {
	tests := []struct {
		name     string
		existing map[string]any
		incoming map[string]any
		want     map[string]any
	}{
		{
			name:     "nil incoming value skipped",
			existing: map[string]any{"service": "FREELANCE_VISA"},
			incoming: map[string]any{"service": nil},
			want:     map[string]any{"service": "FREELANCE_VISA"},
		},
		{
			name:     "empty string never blanks",
			existing: map[string]any{"nationality": "Indian"},
			incoming: map[string]any{"nationality": ""},
			want:     map[string]any{"nationality": "Indian"},
		},
		{
			name:     "empty existing takes incoming",
			existing: map[string]any{"nationality": ""},
			incoming: map[string]any{"nationality": "Indian"},
			want:     map[string]any{"nationality": "Indian"},
		},
		{
			name:     "missing key takes incoming",
			existing: map[string]any{},
			incoming: map[string]any{"partnerCount": 3},
			want:     map[string]any{"partnerCount": 3},
		},
		{
			name:     "non-empty incoming refines",
			existing: map[string]any{"service": "VISIT_VISA"},
			incoming: map[string]any{"service": "FREELANCE_VISA"},
			want:     map[string]any{"service": "FREELANCE_VISA"},
		},
		{
			name:     "empty incoming array ignored",
			existing: map[string]any{"expiries": []any{"2026-02-10"}},
			incoming: map[string]any{"expiries": []any{}},
			want:     map[string]any{"expiries": []any{"2026-02-10"}},
		},
		{
			name:     "non-empty incoming array replaces",
			existing: map[string]any{"expiries": []any{"2025-01-01"}},
			incoming: map[string]any{"expiries": []any{"2026-02-10"}},
			want:     map[string]any{"expiries": []any{"2026-02-10"}},
		},
		{
			name: "nested maps merge recursively",
			existing: map[string]any{
				"identity": map[string]any{"name": "Ali Khan", "email": ""},
			},
			incoming: map[string]any{
				"identity": map[string]any{"name": "", "email": "ali@example.com"},
			},
			want: map[string]any{
				"identity": map[string]any{"name": "Ali Khan", "email": "ali@example.com"},
			},
		},
		{
			name:     "unrelated keys preserved",
			existing: map[string]any{"service": "GOLDEN_VISA", "visaCount": 2},
			incoming: map[string]any{"nationality": "British"},
			want:     map[string]any{"service": "GOLDEN_VISA", "visaCount": 2, "nationality": "British"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := MergeSafe(tc.existing, tc.incoming)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("MergeSafe() = %#v, want %#v", got, tc.want)
			}
		})
	}
}

func TestMergeSafeDoesNotMutateInputs(t *testing.T) {
	existing := map[string]any{"nested": map[string]any{"a": "1"}}
	incoming := map[string]any{"nested": map[string]any{"b": "2"}}

	_ = MergeSafe(existing, incoming)

	if len(existing["nested"].(map[string]any)) != 1 {
		t.Error("existing map was mutated")
	}
	if len(incoming["nested"].(map[string]any)) != 1 {
		t.Error("incoming map was mutated")
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := FirstNonEmpty("kept", "new"); got != "kept" {
		t.Errorf("FirstNonEmpty = %q", got)
	}
	if got := FirstNonEmpty("", "new"); got != "new" {
		t.Errorf("FirstNonEmpty = %q", got)
	}
}

func TestParseChannel(t *testing.T) {
	tests := []struct {
		raw     string
		want    Channel
		wantErr bool
	}{
		{"whatsapp", ChannelWhatsApp, false},
		{" WhatsApp ", ChannelWhatsApp, false},
		{"EMAIL", ChannelEmail, false},
		{"instagram", ChannelInstagram, false},
		{"facebook", ChannelFacebook, false},
		{"webchat", ChannelWebchat, false},
		{"sms", "", true},
		{"", "", true},
	}

	for _, tc := range tests {
		got, err := ParseChannel(tc.raw)
		if (err != nil) != tc.wantErr || got != tc.want {
			t.Errorf("ParseChannel(%q) = (%q, %v), want (%q, wantErr=%v)", tc.raw, got, err, tc.want, tc.wantErr)
		}
	}
}

func TestLeadStageIsOpen(t *testing.T) {
	open := []LeadStage{StageNew, StageQualifying, StageProposal, StageNegotiation}
	for _, s := range open {
		if !s.IsOpen() {
			t.Errorf("stage %s should be open", s)
		}
	}
	for _, s := range ClosedStages {
		if s.IsOpen() {
			t.Errorf("stage %s should be closed", s)
		}
	}
}
