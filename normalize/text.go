package normalize

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// Text strips leading/trailing whitespace and collapses internal whitespace.
func Text(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// TitleCase turns a URL slug such as "spring-plains" into "Spring Plains".
func TitleCase(slug string) string {
	s := Text(strings.NewReplacer("-", " ", "_", " ", "+", " ").Replace(slug))
	if s == "" {
		return ""
	}
	return titleCaser.String(s)
}
