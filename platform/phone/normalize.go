// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const defaultRegion = "AE"

const (
	minDigits = 8
	maxDigits = 15
)

// NormalizeE164 formats a phone number to E.164. If parsing fails, it returns the trimmed input.
func NormalizeE164(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed
	}

	number, err := phonenumbers.Parse(trimmed, defaultRegion)
	if err != nil {
		return trimmed
	}

	if !phonenumbers.IsValidNumber(number) {
		return trimmed
	}

	return phonenumbers.Format(number, phonenumbers.E164)
}

// NormalizeWhatsApp canonicalizes a raw WhatsApp sender token into an E.164-style
// key. It strips non-digits, drops a single leading zero, and prefixes local
// 9-digit mobile numbers with the UAE country code. The second return value is
// false when the result does not land in the 8-15 digit window; callers should
// then fall back to the raw token rather than abort ingestion.
func NormalizeWhatsApp(input string) (string, bool) {
	digits := stripNonDigits(input)
	if digits == "" {
		return strings.TrimSpace(input), false
	}

	if strings.HasPrefix(digits, "0") {
		digits = strings.TrimPrefix(digits, "0")
	}

	// Local mobiles arrive as 9 digits starting with 5 (e.g. 5XXXXXXXX).
	if len(digits) == 9 && strings.HasPrefix(digits, "5") {
		digits = "971" + digits
	}

	if len(digits) < minDigits || len(digits) > maxDigits {
		return strings.TrimSpace(input), false
	}

	normalized := "+" + digits
	if parsed, err := phonenumbers.Parse(normalized, defaultRegion); err == nil && phonenumbers.IsValidNumber(parsed) {
		return phonenumbers.Format(parsed, phonenumbers.E164), true
	}

	// Keep the digit form even when the library rejects it; a mis-keyed
	// message is more valuable than a dropped one.
	return normalized, true
}

func stripNonDigits(input string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, input)
}
