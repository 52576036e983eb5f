package normalize

import (
	"regexp"
	"strings"
)

// phoneCandidate finds separator-tolerant AU number shapes; NormalizeAUPhone decides validity.
var phoneCandidate = regexp.MustCompile(
	`(?:\+61|\b61)[\s\-]?(?:\(0\)[\s\-]?)?[23478](?:[\s\-]?\d){8}\b` +
		`|\(?\b0[23478]\)?(?:[\s\-]?\d){8}\b` +
		`|\b1[38]00(?:[\s\-]?\d){6}\b` +
		`|\b13(?:[\s\-]?\d){4}\b`,
)

var (
	nonDigit = regexp.MustCompile(`\D`)
	// large digit runs next to image/base64 markers are blob fragments, not numbers
	blobNoise = regexp.MustCompile(`(?i)\d{7,}.*\b(?:base64|jpeg|png)\b`)
)

// ExtractPhone returns the first valid Australian phone number found in text.
// exists is true exactly when a number was found.
func ExtractPhone(text string) (phone string, exists bool) {
	if text == "" {
		return "", false
	}
	for _, cand := range phoneCandidate.FindAllString(text, -1) {
		if p, ok := NormalizeAUPhone(cand); ok {
			return p, true
		}
	}
	return "", false
}

// NormalizeAUPhone validates raw as an Australian number and returns its compact form:
// 04xxxxxxxx, 0[2378]xxxxxxxx, +61xxxxxxxxx, 13xxxx, 1300xxxxxx or 1800xxxxxx.
// Bare 7 or 8 digit runs are rejected; they are usually ad or category ids.
func NormalizeAUPhone(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" || len(s) > 200 || blobNoise.MatchString(s) {
		return "", false
	}

	if strings.HasPrefix(s, "+") {
		s = strings.ReplaceAll(s, "(0)", "")
		digits := nonDigit.ReplaceAllString(s, "")
		if !strings.HasPrefix(digits, "61") {
			return "", false
		}
		rest := digits[2:]
		switch {
		case len(rest) == 9 && strings.ContainsRune("23478", rune(rest[0])):
			return "+61" + rest, true
		case len(rest) == 10 && rest[0] == '0' && strings.ContainsRune("23478", rune(rest[1])):
			return "+61" + rest[1:], true
		}
		return "", false
	}

	digits := nonDigit.ReplaceAllString(s, "")
	switch {
	case digits == "":
		return "", false
	case strings.HasPrefix(digits, "1300") && len(digits) == 10,
		strings.HasPrefix(digits, "1800") && len(digits) == 10,
		strings.HasPrefix(digits, "13") && len(digits) == 6:
		return digits, true
	case strings.HasPrefix(digits, "04") && len(digits) == 10:
		return digits, true
	case len(digits) == 10 && digits[0] == '0' && strings.ContainsRune("2378", rune(digits[1])):
		return digits, true
	case strings.HasPrefix(digits, "61") && len(digits) == 11 && strings.ContainsRune("23478", rune(digits[2])):
		return "+" + digits, true
	}
	return "", false
}
