package canon

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var rePunct = regexp.MustCompile(`[^a-z0-9\s_-]`)

// TermKey folds a taxonomy label into the key used to match existing terms:
// accents removed, lower case, punctuation dropped, spaces collapsed.
// "Departamento ", "departamento" and "DEPARTAMENTO" share one key.
func TermKey(label string) string {
	s := foldAccents(strings.TrimSpace(label))
	s = strings.ToLower(s)
	s = rePunct.ReplaceAllString(s, " ")
	return collapseSpaces(s)
}

// Slug is the URL-safe form stored next to a term name.
func Slug(label string) string {
	k := TermKey(label)
	k = strings.ReplaceAll(k, "_", "-")
	return strings.ReplaceAll(k, " ", "-")
}

// CleanLabel trims and collapses whitespace but keeps case and accents,
// which is what gets stored as the display name of a created term.
func CleanLabel(label string) string {
	return collapseSpaces(strings.TrimSpace(label))
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
