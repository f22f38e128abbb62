package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DayFirst pins the ambiguous numeric date order to DD/MM/YYYY, the UAE
// convention. "10/02/2026" is the 10th of February, never October 2nd.
const DayFirst = true

var (
	numericDateRe = regexp.MustCompile(`\b(\d{1,2})[/.\-](\d{1,2})[/.\-](\d{2,4})\b`)
	isoDateRe     = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	// "10 Feb 2026", "10th February 2026"
	dayMonthRe = regexp.MustCompile(`\b(\d{1,2})(?:st|nd|rd|th)?\s+(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?,?\s+(\d{4})\b`)
	// "Feb 10, 2026", "February 10 2026"
	monthDayRe = regexp.MustCompile(`\b(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})\b`)
)

var monthsByPrefix = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// foundDate is a parsed date plus where it starts in the scanned text,
// so expiry matching can test proximity to the triggering keyword.
type foundDate struct {
	date time.Time
	pos  int
}

// findDates returns every parseable date in text (already lower-cased),
// ordered by position. Numeric dates follow the DayFirst convention;
// when the day slot exceeds 12 and the month slot does not, the
// unambiguous reading wins regardless.
func findDates(text string) []foundDate {
	var out []foundDate
	taken := make(map[int]bool)

	for _, m := range isoDateRe.FindAllStringSubmatchIndex(text, -1) {
		year, _ := strconv.Atoi(text[m[2]:m[3]])
		month, _ := strconv.Atoi(text[m[4]:m[5]])
		day, _ := strconv.Atoi(text[m[6]:m[7]])
		if d, ok := makeDate(year, month, day); ok {
			out = append(out, foundDate{date: d, pos: m[0]})
			taken[m[0]] = true
		}
	}

	for _, m := range numericDateRe.FindAllStringSubmatchIndex(text, -1) {
		if taken[m[0]] {
			continue
		}
		first, _ := strconv.Atoi(text[m[2]:m[3]])
		second, _ := strconv.Atoi(text[m[4]:m[5]])
		year := normalizeYear(text[m[6]:m[7]])

		day, month := first, second
		if !DayFirst {
			day, month = second, first
		}
		// Disambiguate when only one reading is legal.
		if month > 12 && day <= 12 {
			day, month = month, day
		}

		if d, ok := makeDate(year, month, day); ok {
			out = append(out, foundDate{date: d, pos: m[0]})
		}
	}

	for _, m := range dayMonthRe.FindAllStringSubmatchIndex(text, -1) {
		day, _ := strconv.Atoi(text[m[2]:m[3]])
		month := monthsByPrefix[text[m[4]:m[5]]]
		year, _ := strconv.Atoi(text[m[6]:m[7]])
		if d, ok := makeDate(year, int(month), day); ok {
			out = append(out, foundDate{date: d, pos: m[0]})
		}
	}

	for _, m := range monthDayRe.FindAllStringSubmatchIndex(text, -1) {
		month := monthsByPrefix[text[m[2]:m[3]]]
		day, _ := strconv.Atoi(text[m[4]:m[5]])
		year, _ := strconv.Atoi(text[m[6]:m[7]])
		if d, ok := makeDate(year, int(month), day); ok {
			out = append(out, foundDate{date: d, pos: m[0]})
		}
	}

	return out
}

func makeDate(year, month, day int) (time.Time, bool) {
	if year < 1990 || year > 2100 || month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// Reject overflowed dates like 31/02.
	if d.Day() != day || d.Month() != time.Month(month) {
		return time.Time{}, false
	}
	return d, true
}

func normalizeYear(raw string) int {
	year, _ := strconv.Atoi(strings.TrimSpace(raw))
	if year < 100 {
		year += 2000
	}
	return year
}
