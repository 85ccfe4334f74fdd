package campaigns

import (
	"testing"
	"time"
)

func TestParseBirthday_Formats(t *testing.T) {
	cases := []struct {
		in    string
		month time.Month
		day   int
		ok    bool
	}{
		{"1990-03-14", time.March, 14, true},
		{"03-14", time.March, 14, true},
		{"03/14", time.March, 14, true},
		{"1990/03/14", time.March, 14, true},
		{" 12-25 ", time.December, 25, true},
		{"3-7", time.March, 7, true},
		{"13-01", 0, 0, false},
		{"00-10", 0, 0, false},
		{"03-32", 0, 0, false},
		{"March 14", 0, 0, false},
		{"", 0, 0, false},
		{"1990", 0, 0, false},
	}
	for _, tc := range cases {
		m, d, ok := ParseBirthday(tc.in)
		if ok != tc.ok || m != tc.month || d != tc.day {
			t.Errorf("ParseBirthday(%q) = (%v, %d, %t), expected (%v, %d, %t)",
				tc.in, m, d, ok, tc.month, tc.day, tc.ok)
		}
	}
}

func TestBirthdayMatches_AnyYear(t *testing.T) {
	today := time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)
	if !BirthdayMatches("1958-03-14", today) {
		t.Fatalf("expected year-agnostic match")
	}
	if BirthdayMatches("1958-03-15", today) {
		t.Fatalf("expected no match on different day")
	}
	if BirthdayMatches("not a date", today) {
		t.Fatalf("unparseable birthday must never match")
	}
}

func TestPersonalize(t *testing.T) {
	got := Personalize("Hi {{first_name}}, enjoy {{offer}}!", "Ana", "10% off")
	if got != "Hi Ana, enjoy 10% off!" {
		t.Fatalf("got %q", got)
	}
	got = Personalize("Hi {{name}}!", "", "")
	if got != "Hi there!" {
		t.Fatalf("expected fallback name got %q", got)
	}
}
