// Package extract derives structured fields from free-text message bodies.
// Extraction is purely deterministic keyword/regex matching: auditable,
// testable, and with no external-service failure modes. Finding nothing is
// not an error; the safe-merge rule guarantees an empty result never
// regresses previously captured state.
package extract

import (
	"regexp"
	"strings"
	"time"
)

// ServiceType is the requested-service enum derived from message text.
type ServiceType string

const (
	ServiceFreelanceVisa       ServiceType = "FREELANCE_VISA"
	ServiceFamilyVisa          ServiceType = "FAMILY_VISA"
	ServiceGoldenVisa          ServiceType = "GOLDEN_VISA"
	ServiceVisitVisa           ServiceType = "VISIT_VISA"
	ServiceEmploymentVisa      ServiceType = "EMPLOYMENT_VISA"
	ServiceBusinessSetup       ServiceType = "BUSINESS_SETUP"
	ServiceTradeLicenseRenewal ServiceType = "TRADE_LICENSE_RENEWAL"
	ServiceEmiratesID          ServiceType = "EMIRATES_ID_RENEWAL"
	ServiceMedicalInsurance    ServiceType = "MEDICAL_INSURANCE"
	ServiceAttestation         ServiceType = "ATTESTATION"
)

// ExpiryKind classifies which document an expiry date belongs to.
type ExpiryKind string

const (
	ExpiryVisa         ExpiryKind = "VISA"
	ExpiryEmiratesID   ExpiryKind = "EMIRATES_ID"
	ExpiryPassport     ExpiryKind = "PASSPORT"
	ExpiryTradeLicense ExpiryKind = "TRADE_LICENSE"
	ExpiryInsurance    ExpiryKind = "INSURANCE"
)

// Expiry is one extracted document-expiry date.
type Expiry struct {
	Kind ExpiryKind
	Date time.Time
}

// Identity holds name/email candidates found in the text.
type Identity struct {
	Name  string
	Email string
}

// Counts holds numeric quantities found near count keywords.
type Counts struct {
	Partners int
	Visas    int
}

// Fields is the transient result of extraction; it is merged into lead,
// conversation and contact state by the safe-merge engine, never persisted
// as its own entity.
type Fields struct {
	Service             ServiceType
	ServiceRaw          string
	Nationality         string
	Expiries            []Expiry
	ExpiryHint          ExpiryKind
	Counts              Counts
	Identity            Identity
	BusinessActivityRaw string
}

// IsEmpty reports whether extraction found nothing at all.
func (f Fields) IsEmpty() bool {
	return f.Service == "" && f.Nationality == "" && len(f.Expiries) == 0 &&
		f.ExpiryHint == "" && f.Counts == (Counts{}) && f.Identity == (Identity{}) &&
		f.BusinessActivityRaw == ""
}

// ToMap renders the non-empty fields as a JSON-shaped map for the safe-merge
// engine. Empty fields are omitted entirely so they can never blank stored
// values.
func (f Fields) ToMap() map[string]any {
	out := map[string]any{}
	if f.Service != "" {
		out["serviceTypeEnum"] = string(f.Service)
	}
	if f.ServiceRaw != "" {
		out["serviceRaw"] = f.ServiceRaw
	}
	if f.Nationality != "" {
		out["nationality"] = f.Nationality
	}
	if len(f.Expiries) > 0 {
		items := make([]any, 0, len(f.Expiries))
		for _, e := range f.Expiries {
			items = append(items, map[string]any{
				"kind": string(e.Kind),
				"date": e.Date.Format("2006-01-02"),
			})
		}
		out["expiries"] = items
	}
	if f.ExpiryHint != "" {
		out["expiryHint"] = string(f.ExpiryHint)
	}
	if f.Counts.Partners > 0 {
		out["partnerCount"] = f.Counts.Partners
	}
	if f.Counts.Visas > 0 {
		out["visaCount"] = f.Counts.Visas
	}
	if f.Identity.Name != "" {
		out["name"] = f.Identity.Name
	}
	if f.Identity.Email != "" {
		out["email"] = f.Identity.Email
	}
	if f.BusinessActivityRaw != "" {
		out["businessActivityRaw"] = f.BusinessActivityRaw
	}
	return out
}

type serviceEntry struct {
	service  ServiceType
	keywords []string
}

// Extractor holds the keyword dictionaries. The zero tables come from
// dictionaries.go; LoadOverrides extends them from a YAML file.
type Extractor struct {
	services []serviceEntry
	demonyms map[string]string
	stoplist map[string]struct{}
}

// New creates an Extractor with the built-in dictionaries.
func New() *Extractor {
	services := make([]serviceEntry, 0, len(serviceKeywords))
	for _, entry := range serviceKeywords {
		services = append(services, serviceEntry{service: entry.service, keywords: entry.keywords})
	}

	dem := make(map[string]string, len(demonyms))
	for k, v := range demonyms {
		dem[k] = v
	}

	stop := make(map[string]struct{}, len(nameStoplist))
	for k := range nameStoplist {
		stop[k] = struct{}{}
	}

	return &Extractor{services: services, demonyms: dem, stoplist: stop}
}

// expiryKeywords ties document keywords to an expiry kind. Ordered so the
// more specific phrases win ("trade license" before "license", "emirates id"
// before "id").
var expiryKeywords = []struct {
	keyword string
	kind    ExpiryKind
}{
	{"emirates id", ExpiryEmiratesID},
	{"eid", ExpiryEmiratesID},
	{"passport", ExpiryPassport},
	{"trade license", ExpiryTradeLicense},
	{"trade licence", ExpiryTradeLicense},
	{"license", ExpiryTradeLicense},
	{"licence", ExpiryTradeLicense},
	{"insurance", ExpiryInsurance},
	{"visa", ExpiryVisa},
}

// expiryProximity is how far (in bytes of the lower-cased text) a date may
// sit from its triggering keyword and still be attributed to it.
const expiryProximity = 60

var (
	emailRe    = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	nameLeadRe = regexp.MustCompile(`(?:my name is|this is)\s+([A-Z][A-Za-z'\-]+(?:\s+[A-Z][A-Za-z'\-]+)+)`)
	bigramRe   = regexp.MustCompile(`\b([A-Z][a-z'\-]+)\s+([A-Z][a-z'\-]+)\b`)
	partnersRe = regexp.MustCompile(`(\d{1,3})\s+(?:business\s+)?partners?\b`)
	visasRe    = regexp.MustCompile(`(\d{1,3})\s+visas?\b`)
	activityRe = regexp.MustCompile(`(?i)\bbusiness activity\s*(?:is|:|-)?\s*([^.\n!?]{3,80})`)
)

// Extract derives candidate fields from a message body. Every rule prefers a
// false negative over a false positive: an unmatched message yields an empty
// result rather than a guess.
func (e *Extractor) Extract(text string) Fields {
	var fields Fields

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return fields
	}
	lower := strings.ToLower(trimmed)

	fields.Service, fields.ServiceRaw = e.matchService(lower)
	fields.Nationality = e.matchNationality(lower)
	fields.Expiries, fields.ExpiryHint = matchExpiries(lower)
	fields.Counts = matchCounts(lower)
	fields.Identity = e.matchIdentity(trimmed)
	fields.BusinessActivityRaw = matchBusinessActivity(trimmed)

	return fields
}

func (e *Extractor) matchService(lower string) (ServiceType, string) {
	for _, entry := range e.services {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.service, kw
			}
		}
	}
	return "", ""
}

func (e *Extractor) matchNationality(lower string) string {
	for word, canonical := range e.demonyms {
		if containsWord(lower, word) {
			return canonical
		}
	}

	// "I am from India" style.
	if idx := strings.Index(lower, "from "); idx >= 0 {
		rest := lower[idx+len("from "):]
		for country, canonical := range countryDemonyms {
			if strings.HasPrefix(rest, country) && isWordBoundary(rest, len(country)) {
				return canonical
			}
		}
	}

	return ""
}

func matchExpiries(lower string) ([]Expiry, ExpiryKind) {
	dates := findDates(lower)

	var expiries []Expiry
	var hint ExpiryKind
	seen := make(map[string]bool)
	claimed := make(map[int]bool)

	for _, entry := range expiryKeywords {
		for _, pos := range keywordPositions(lower, entry.keyword) {
			matched := false
			for _, d := range dates {
				if claimed[d.pos] || !withinProximity(pos, pos+len(entry.keyword), d.pos) {
					continue
				}
				key := string(entry.kind) + d.date.Format("2006-01-02")
				if !seen[key] {
					expiries = append(expiries, Expiry{Kind: entry.kind, Date: d.date})
					seen[key] = true
				}
				claimed[d.pos] = true
				matched = true
			}
			if !matched && hint == "" && mentionsExpiry(lower, pos) {
				hint = entry.kind
			}
		}
	}

	return expiries, hint
}

// mentionsExpiry checks for an expiry word near the keyword so a bare
// "visa" mention without any expiry talk does not produce a hint.
func mentionsExpiry(lower string, keywordPos int) bool {
	start := keywordPos - expiryProximity
	if start < 0 {
		start = 0
	}
	end := keywordPos + expiryProximity
	if end > len(lower) {
		end = len(lower)
	}
	window := lower[start:end]
	return strings.Contains(window, "expir") || strings.Contains(window, "renew") || strings.Contains(window, "valid until")
}

func withinProximity(kwStart, kwEnd, datePos int) bool {
	if datePos >= kwEnd {
		return datePos-kwEnd <= expiryProximity
	}
	return kwStart-datePos <= expiryProximity
}

func keywordPositions(text, keyword string) []int {
	var out []int
	offset := 0
	for {
		idx := strings.Index(text[offset:], keyword)
		if idx < 0 {
			return out
		}
		pos := offset + idx
		// Whole-word occurrences only.
		if (pos == 0 || !isLetter(text[pos-1])) && isWordBoundary(text[pos:], len(keyword)) {
			out = append(out, pos)
		}
		offset = pos + len(keyword)
	}
}

func matchCounts(lower string) Counts {
	var counts Counts
	if m := partnersRe.FindStringSubmatch(lower); m != nil {
		counts.Partners = atoiSafe(m[1])
	}
	if m := visasRe.FindStringSubmatch(lower); m != nil {
		counts.Visas = atoiSafe(m[1])
	}
	return counts
}

func (e *Extractor) matchIdentity(text string) Identity {
	var identity Identity

	if m := emailRe.FindString(text); m != "" {
		identity.Email = strings.ToLower(m)
	}

	if m := nameLeadRe.FindStringSubmatch(text); m != nil {
		if !e.stopped(m[1]) {
			identity.Name = m[1]
		}
	}

	if identity.Name == "" {
		for _, m := range bigramRe.FindAllStringSubmatch(text, -1) {
			candidate := m[1] + " " + m[2]
			if e.stopped(candidate) {
				continue
			}
			identity.Name = candidate
			break
		}
	}

	return identity
}

func (e *Extractor) stopped(candidate string) bool {
	_, ok := e.stoplist[strings.ToLower(candidate)]
	return ok
}

func matchBusinessActivity(text string) string {
	m := activityRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(strings.Trim(m[1], " ,;"))
}

func containsWord(text, word string) bool {
	offset := 0
	for {
		idx := strings.Index(text[offset:], word)
		if idx < 0 {
			return false
		}
		pos := offset + idx
		if (pos == 0 || !isLetter(text[pos-1])) && isWordBoundary(text[pos:], len(word)) {
			return true
		}
		offset = pos + len(word)
	}
}

func isWordBoundary(text string, end int) bool {
	return end >= len(text) || !isLetter(text[end])
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}
