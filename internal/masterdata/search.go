package masterdata

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// foldSearch lowercases and strips diacritics so "catégorie" matches
// "categorie"; resource names here are French.
func foldSearch(s string) string {
	folded, _, err := transform.String(foldTransformer, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(folded))
}

// matchesSearch reports whether any of the row's display fields contains the
// folded needle.
func matchesSearch(row map[string]any, needle string) bool {
	if needle == "" {
		return true
	}
	for _, field := range []string{"name", "nom", "label", "designation", "email"} {
		if value, ok := row[field].(string); ok {
			if strings.Contains(foldSearch(value), needle) {
				return true
			}
		}
	}
	return false
}
