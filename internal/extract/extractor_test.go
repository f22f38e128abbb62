package extract

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestExtractService(t *testing.T) {
	e := New()

	tests := []struct {
		text string
		want ServiceType
	}{
		{"I need a freelance visa", ServiceFreelanceVisa},
		{"how much for a FAMILY VISA for my wife", ServiceFamilyVisa},
		{"interested in golden visa requirements", ServiceGoldenVisa},
		{"can you arrange a visit visa for 30 days", ServiceVisitVisa},
		{"i want to start a business in dubai", ServiceBusinessSetup},
		{"trade license renewal cost please", ServiceTradeLicenseRenewal},
		{"emirates id renewal", ServiceEmiratesID},
		{"need health insurance for my employees", ServiceMedicalInsurance},
		{"degree certificate attestation", ServiceAttestation},
		{"hello, are you open today?", ""},
	}

	for _, tc := range tests {
		got := e.Extract(tc.text)
		if got.Service != tc.want {
			t.Errorf("Extract(%q).Service = %q, want %q", tc.text, got.Service, tc.want)
		}
	}
}

func TestExtractNationality(t *testing.T) {
	e := New()

	tests := []struct {
		text string
		want string
	}{
		{"I am Indian", "Indian"},
		{"i am indian and need a visa", "Indian"},
		{"I am from India", "Indian"},
		{"my partner is Filipina", "Filipino"},
		{"we are from the philippines", "Filipino"},
		{"no nationality here", ""},
	}

	for _, tc := range tests {
		got := e.Extract(tc.text)
		if got.Nationality != tc.want {
			t.Errorf("Extract(%q).Nationality = %q, want %q", tc.text, got.Nationality, tc.want)
		}
	}
}

func TestExtractExpiryDayFirst(t *testing.T) {
	e := New()

	// DD/MM pinned: 10/02/2026 is February 10th.
	got := e.Extract("my visa expires on 10/02/2026")
	if len(got.Expiries) != 1 {
		t.Fatalf("expected 1 expiry, got %d", len(got.Expiries))
	}
	if got.Expiries[0].Kind != ExpiryVisa {
		t.Errorf("expiry kind = %q, want VISA", got.Expiries[0].Kind)
	}
	if !got.Expiries[0].Date.Equal(date(2026, time.February, 10)) {
		t.Errorf("expiry date = %s, want 2026-02-10", got.Expiries[0].Date.Format("2006-01-02"))
	}
}

func TestExtractExpiryKinds(t *testing.T) {
	e := New()

	tests := []struct {
		text string
		kind ExpiryKind
		want time.Time
	}{
		{"emirates id expires 01/03/2026", ExpiryEmiratesID, date(2026, time.March, 1)},
		{"passport expiry is 2027-05-20", ExpiryPassport, date(2027, time.May, 20)},
		{"trade license is valid until 15 Jan 2026", ExpiryTradeLicense, date(2026, time.January, 15)},
		{"my insurance expires on Feb 10, 2026", ExpiryInsurance, date(2026, time.February, 10)},
	}

	for _, tc := range tests {
		got := e.Extract(tc.text)
		if len(got.Expiries) != 1 {
			t.Errorf("Extract(%q): expected 1 expiry, got %d", tc.text, len(got.Expiries))
			continue
		}
		if got.Expiries[0].Kind != tc.kind || !got.Expiries[0].Date.Equal(tc.want) {
			t.Errorf("Extract(%q) = {%s %s}, want {%s %s}", tc.text,
				got.Expiries[0].Kind, got.Expiries[0].Date.Format("2006-01-02"),
				tc.kind, tc.want.Format("2006-01-02"))
		}
	}
}

func TestExtractExpiryHintWithoutDate(t *testing.T) {
	e := New()

	got := e.Extract("my visa is expiring soon, what should I do")
	if len(got.Expiries) != 0 {
		t.Fatalf("expected no dated expiries, got %d", len(got.Expiries))
	}
	if got.ExpiryHint != ExpiryVisa {
		t.Errorf("ExpiryHint = %q, want VISA", got.ExpiryHint)
	}

	// A bare mention without expiry talk produces no hint.
	got = e.Extract("I need a visa for my brother")
	if got.ExpiryHint != "" {
		t.Errorf("ExpiryHint = %q, want empty", got.ExpiryHint)
	}
}

func TestExtractCounts(t *testing.T) {
	e := New()

	got := e.Extract("company setup with 3 partners and 2 visas")
	if got.Counts.Partners != 3 {
		t.Errorf("Partners = %d, want 3", got.Counts.Partners)
	}
	if got.Counts.Visas != 2 {
		t.Errorf("Visas = %d, want 2", got.Counts.Visas)
	}

	// "10 year visa" is not a visa count.
	got = e.Extract("tell me about the 10 year visa")
	if got.Counts.Visas != 0 {
		t.Errorf("Visas = %d, want 0", got.Counts.Visas)
	}
}

func TestExtractIdentity(t *testing.T) {
	e := New()

	got := e.Extract("Hello, my name is Ali Khan, email ali.khan@example.com")
	if got.Identity.Name != "Ali Khan" {
		t.Errorf("Name = %q, want %q", got.Identity.Name, "Ali Khan")
	}
	if got.Identity.Email != "ali.khan@example.com" {
		t.Errorf("Email = %q", got.Identity.Email)
	}

	// Stoplisted bigrams are not names.
	got = e.Extract("I want the Golden Visa in Abu Dhabi")
	if got.Identity.Name != "" {
		t.Errorf("Name = %q, want empty", got.Identity.Name)
	}
}

func TestExtractBusinessActivity(t *testing.T) {
	e := New()

	got := e.Extract("business activity: general trading and import export")
	if got.BusinessActivityRaw != "general trading and import export" {
		t.Errorf("BusinessActivityRaw = %q", got.BusinessActivityRaw)
	}
}

func TestExtractEmptyInput(t *testing.T) {
	e := New()

	for _, text := range []string{"", "   ", "ok", "👍"} {
		got := e.Extract(text)
		if !got.IsEmpty() {
			t.Errorf("Extract(%q) should be empty, got %#v", text, got)
		}
	}
}

func TestToMapOmitsEmpty(t *testing.T) {
	f := Fields{Service: ServiceFreelanceVisa, Nationality: "Indian"}
	m := f.ToMap()

	if m["serviceTypeEnum"] != "FREELANCE_VISA" {
		t.Errorf("serviceTypeEnum = %v", m["serviceTypeEnum"])
	}
	if m["nationality"] != "Indian" {
		t.Errorf("nationality = %v", m["nationality"])
	}
	if _, ok := m["expiries"]; ok {
		t.Error("empty expiries should be omitted")
	}
	if _, ok := m["name"]; ok {
		t.Error("empty name should be omitted")
	}

	if len(Fields{}.ToMap()) != 0 {
		t.Error("empty fields should produce an empty map")
	}
}
