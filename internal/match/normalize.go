// Package match provides text normalization and fuzzy matching for card
// titles. Marketplace listings mix full-width and half-width characters,
// katakana, and decorative noise; everything here funnels toward a canonical
// form that the catalog can score against.
package match

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// Normalize folds a raw title into canonical comparison form: full-width
// characters narrowed, compatibility forms decomposed (NFKC), lowercased, and
// whitespace collapsed to single spaces.
func Normalize(s string) string {
	s = width.Fold.String(s)
	s = norm.NFKC.String(s)
	s = strings.ToLower(s)
	return collapseSpaces(s)
}

// StripNoise removes bracketed seller decorations like 【美品】 or 《送料無料》
// that carry no identity information, then normalizes the remainder.
func StripNoise(s string) string {
	var b strings.Builder
	depth := 0
	for _, r := range s {
		switch r {
		case '【', '《', '〔', '［', '[':
			depth++
		case '】', '》', '〕', '］', ']':
			if depth > 0 {
				depth--
			}
		default:
			if depth == 0 {
				b.WriteRune(r)
			}
		}
	}
	return Normalize(b.String())
}

func collapseSpaces(s string) string {
	fields := strings.FieldsFunc(s, unicode.IsSpace)
	return strings.Join(fields, " ")
}
