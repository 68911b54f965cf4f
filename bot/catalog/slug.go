package catalog

import (
	"strings"
	"unicode"
)

// Slugify normalizes a user-typed title into the canonical catalog key:
// lower case, single underscores for whitespace runs.
func Slugify(title string) string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(title)))
	return strings.Join(fields, "_")
}

// DisplayName renders a slug back into a title-cased human name.
func DisplayName(slug string) string {
	words := strings.Split(slug, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
