package campaigns

import (
	"strconv"
	"strings"
	"time"
)

// ParseBirthday interprets a free-form birthday string as a (month, day)
// pair. Accepted shapes: YYYY-MM-DD, MM-DD, MM/DD (slashes normalize to
// dashes). Anything else is silently not a match.
func ParseBirthday(s string) (month time.Month, day int, ok bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), "/", "-")
	parts := strings.Split(s, "-")
	var ms, ds string
	switch len(parts) {
	case 3:
		ms, ds = parts[1], parts[2]
	case 2:
		ms, ds = parts[0], parts[1]
	default:
		return 0, 0, false
	}
	m, err := strconv.Atoi(ms)
	if err != nil || m < 1 || m > 12 {
		return 0, 0, false
	}
	d, err := strconv.Atoi(ds)
	if err != nil || d < 1 || d > 31 {
		return 0, 0, false
	}
	return time.Month(m), d, true
}

// BirthdayMatches reports whether the stored birthday string falls on the
// given date's month and day, any year.
func BirthdayMatches(birthday string, on time.Time) bool {
	m, d, ok := ParseBirthday(birthday)
	if !ok {
		return false
	}
	return m == on.UTC().Month() && d == on.UTC().Day()
}

// Personalize fills {{first_name}} (or {{name}}) and {{offer}} placeholders.
// An absent first name renders as "there".
func Personalize(template, firstName, offer string) string {
	name := strings.TrimSpace(firstName)
	if name == "" {
		name = "there"
	}
	out := strings.ReplaceAll(template, "{{first_name}}", name)
	out = strings.ReplaceAll(out, "{{name}}", name)
	out = strings.ReplaceAll(out, "{{offer}}", offer)
	return out
}
