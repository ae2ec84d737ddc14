package shared

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Humanize turns an upper snake case enum value such as IN_PROGRESS into
// "In Progress".
func Humanize(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	words := strings.ReplaceAll(strings.ToLower(value), "_", " ")
	return cases.Title(language.English).String(words)
}
