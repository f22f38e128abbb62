package phone

import "testing"

func TestNormalizeWhatsApp(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{"local nine digit mobile", "501234567", "+971501234567", true},
		{"leading zero local mobile", "0501234567", "+971501234567", true},
		{"already prefixed", "+971501234567", "+971501234567", true},
		{"formatted with spaces", "+971 50 123 4567", "+971501234567", true},
		{"international other region", "919876543210", "+919876543210", true},
		{"too short", "1234", "1234", false},
		{"empty", "", "", false},
		{"garbage", "abc", "abc", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := NormalizeWhatsApp(tc.input)
			if got != tc.want || ok != tc.wantOK {
				t.Errorf("NormalizeWhatsApp(%q) = (%q, %v), want (%q, %v)", tc.input, got, ok, tc.want, tc.wantOK)
			}
		})
	}
}

func TestNormalizeE164FallsBackToInput(t *testing.T) {
	if got := NormalizeE164("not a number"); got != "not a number" {
		t.Errorf("NormalizeE164 fallback = %q", got)
	}
	if got := NormalizeE164("  +971501234567  "); got != "+971501234567" {
		t.Errorf("NormalizeE164 = %q", got)
	}
}
