package campaigns

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestEventDate_FloatingHolidays(t *testing.T) {
	cases := []struct {
		key  string
		year int
		want time.Time
	}{
		{"easter", 2024, date(2024, time.March, 31)},
		{"easter", 2025, date(2025, time.April, 20)},
		{"easter", 2026, date(2026, time.April, 5)},
		{"mothers-day", 2026, date(2026, time.May, 10)},
		{"fathers-day", 2026, date(2026, time.June, 21)},
		{"memorial-day", 2026, date(2026, time.May, 25)},
		{"labor-day", 2026, date(2026, time.September, 7)},
		{"thanksgiving", 2025, date(2025, time.November, 27)},
		{"thanksgiving", 2026, date(2026, time.November, 26)},
		{"black-friday", 2026, date(2026, time.November, 27)},
	}
	for _, tc := range cases {
		got, ok := EventDate(tc.key, tc.year)
		if !ok {
			t.Fatalf("%s: key not in catalog", tc.key)
		}
		if !got.Equal(tc.want) {
			t.Errorf("%s %d: expected %s got %s", tc.key, tc.year,
				tc.want.Format("2006-01-02"), got.Format("2006-01-02"))
		}
	}
}

func TestEventDate_UnknownKey(t *testing.T) {
	if _, ok := EventDate("festivus", 2026); ok {
		t.Fatalf("expected unknown key to miss")
	}
}

func TestSendDate_SubtractsLeadTime(t *testing.T) {
	got, ok := SendDate("christmas", 2026, 7)
	if !ok {
		t.Fatalf("christmas not in catalog")
	}
	if want := date(2026, time.December, 18); !got.Equal(want) {
		t.Fatalf("expected %s got %s", want, got)
	}
}

func TestSendDate_CrossesMonthBoundary(t *testing.T) {
	got, _ := SendDate("new-years", 2026, 3)
	if want := date(2025, time.December, 29); !got.Equal(want) {
		t.Fatalf("expected %s got %s", want, got)
	}
}

func TestSameDay_IgnoresTimeOfDay(t *testing.T) {
	a := time.Date(2026, time.July, 4, 0, 1, 0, 0, time.UTC)
	b := time.Date(2026, time.July, 4, 23, 59, 0, 0, time.UTC)
	if !SameDay(a, b) {
		t.Fatalf("expected same day")
	}
	if SameDay(a, b.AddDate(0, 0, 1)) {
		t.Fatalf("expected different days")
	}
}

func TestCatalog_KeysUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, ev := range Catalog {
		if seen[ev.Key] {
			t.Fatalf("duplicate catalog key %q", ev.Key)
		}
		seen[ev.Key] = true
	}
}
