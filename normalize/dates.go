// Package normalize holds the pure field normalisers: relative and literal
// dates, Australian phone numbers, and free text.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"gumtree-scraper/models"
)

// Months are approximated as 30 days and years as 365 days. Listing pages only
// give coarse "N months ago" phrases, so calendar-exact arithmetic would imply
// precision the source does not have.
const (
	approxMonth = 30 * 24 * time.Hour
	approxYear  = 365 * 24 * time.Hour
)

var labelPrefix = regexp.MustCompile(`^(?:date listed|listed|last edited|edited|posted|date)\s*:?\s*(?:on\s+)?`)

type dateRule struct {
	name    string
	pattern *regexp.Regexp
	apply   func(m []string, now time.Time) (models.Date, bool)
}

// dateRules are tried in order; the first pattern that matches decides the result.
var dateRules = []dateRule{
	{
		name:    "today",
		pattern: regexp.MustCompile(`^(?:today|just now|now)$`),
		apply: func(_ []string, now time.Time) (models.Date, bool) {
			return models.DateOf(now), true
		},
	},
	{
		name:    "yesterday",
		pattern: regexp.MustCompile(`^yesterday$`),
		apply: func(_ []string, now time.Time) (models.Date, bool) {
			return models.DateOf(now.AddDate(0, 0, -1)), true
		},
	},
	{
		name:    "relative",
		pattern: regexp.MustCompile(`^(\d+|an?)\s*(second|sec|minute|min|hour|hr|day|week|wk|month|mo|year|yr)s?\s+ago$`),
		apply:   applyRelative,
	},
	{
		name:    "numeric",
		pattern: regexp.MustCompile(`^(\d{1,2})[/.\-](\d{1,2})[/.\-](\d{2}|\d{4})$`),
		apply: func(m []string, _ time.Time) (models.Date, bool) {
			day, _ := strconv.Atoi(m[1])
			month, _ := strconv.Atoi(m[2])
			return models.NewDate(fullYear(m[3]), time.Month(month), day)
		},
	},
	{
		name:    "month-name",
		pattern: regexp.MustCompile(`^(\d{1,2})(?:st|nd|rd|th)?\s+([a-z]+)\.?,?\s+(\d{4})$`),
		apply: func(m []string, _ time.Time) (models.Date, bool) {
			month, ok := monthByName(m[2])
			if !ok {
				return models.Date{}, false
			}
			day, _ := strconv.Atoi(m[1])
			year, _ := strconv.Atoi(m[3])
			return models.NewDate(year, month, day)
		},
	},
	{
		name:    "iso",
		pattern: regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`),
		apply: func(m []string, _ time.Time) (models.Date, bool) {
			year, _ := strconv.Atoi(m[1])
			month, _ := strconv.Atoi(m[2])
			day, _ := strconv.Atoi(m[3])
			return models.NewDate(year, time.Month(month), day)
		},
	},
}

// ParseDate converts a listing date phrase into a calendar date relative to now.
// It reports false for anything it does not recognise; it never guesses.
func ParseDate(text string, now time.Time) (models.Date, bool) {
	s := strings.ToLower(Text(text))
	s = labelPrefix.ReplaceAllString(s, "")
	if s == "" {
		return models.Date{}, false
	}

	for _, r := range dateRules {
		if m := r.pattern.FindStringSubmatch(s); m != nil {
			return r.apply(m, now)
		}
	}
	return models.Date{}, false
}

// ParseDatePtr is ParseDate for optional record fields: nil means unknown.
func ParseDatePtr(text string, now time.Time) *models.Date {
	d, ok := ParseDate(text, now)
	if !ok {
		return nil
	}
	return &d
}

func applyRelative(m []string, now time.Time) (models.Date, bool) {
	n := 1
	if m[1] != "a" && m[1] != "an" {
		v, err := strconv.Atoi(m[1])
		if err != nil {
			return models.Date{}, false
		}
		n = v
	}

	var unit time.Duration
	switch m[2] {
	case "second", "sec":
		unit = time.Second
	case "minute", "min":
		unit = time.Minute
	case "hour", "hr":
		unit = time.Hour
	case "day":
		return models.DateOf(now.AddDate(0, 0, -n)), true
	case "week", "wk":
		return models.DateOf(now.AddDate(0, 0, -7*n)), true
	case "month", "mo":
		unit = approxMonth
	case "year", "yr":
		unit = approxYear
	default:
		return models.Date{}, false
	}
	return models.DateOf(now.Add(-time.Duration(n) * unit)), true
}

func fullYear(s string) int {
	y, _ := strconv.Atoi(s)
	if len(s) == 2 {
		return 2000 + y
	}
	return y
}

func monthByName(name string) (time.Month, bool) {
	for m := time.January; m <= time.December; m++ {
		full := strings.ToLower(m.String())
		if name == full || (len(name) >= 3 && strings.HasPrefix(full, name)) {
			return m, true
		}
	}
	return 0, false
}
