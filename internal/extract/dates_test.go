package extract

import (
	"testing"
	"time"
)

func TestFindDatesFormats(t *testing.T) {
	tests := []struct {
		text string
		want time.Time
	}{
		{"10/02/2026", date(2026, time.February, 10)},
		{"10-02-2026", date(2026, time.February, 10)},
		{"10.02.2026", date(2026, time.February, 10)},
		{"10/02/26", date(2026, time.February, 10)},
		{"2026-02-10", date(2026, time.February, 10)},
		{"10 feb 2026", date(2026, time.February, 10)},
		{"10th february 2026", date(2026, time.February, 10)},
		{"feb 10, 2026", date(2026, time.February, 10)},
		{"february 10 2026", date(2026, time.February, 10)},
	}

	for _, tc := range tests {
		got := findDates(tc.text)
		if len(got) != 1 {
			t.Errorf("findDates(%q): got %d dates, want 1", tc.text, len(got))
			continue
		}
		if !got[0].date.Equal(tc.want) {
			t.Errorf("findDates(%q) = %s, want %s", tc.text, got[0].date.Format("2006-01-02"), tc.want.Format("2006-01-02"))
		}
	}
}

func TestFindDatesDayFirstDisambiguation(t *testing.T) {
	// Day-first by convention.
	got := findDates("05/03/2026")
	if len(got) != 1 || !got[0].date.Equal(date(2026, time.March, 5)) {
		t.Fatalf("05/03/2026 parsed as %+v, want 2026-03-05", got)
	}

	// When the month slot is impossible, the unambiguous reading wins.
	got = findDates("12/25/2026")
	if len(got) != 1 || !got[0].date.Equal(date(2026, time.December, 25)) {
		t.Fatalf("12/25/2026 parsed as %+v, want 2026-12-25", got)
	}
}

func TestFindDatesRejectsInvalid(t *testing.T) {
	for _, text := range []string{"31/02/2026", "00/05/2026", "15/13/2026", "10/02/1980"} {
		if got := findDates(text); len(got) != 0 {
			t.Errorf("findDates(%q) = %+v, want none", text, got)
		}
	}
}
