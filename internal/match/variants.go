package match

import (
	"regexp"
	"strings"
)

// setCodePattern matches printed set codes like LOB-EN001 or 20TH-JPC01.
var setCodePattern = regexp.MustCompile(`\b([A-Z0-9]{2,5})-([A-Z]{2})?([A-Z]?\d{2,3})\b`)

// Variants derives the candidate name strings to look up in the catalog for
// one listing title, ordered from most to least specific. Duplicates are
// removed while preserving order.
func Variants(title string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(v string) {
		v = strings.TrimSpace(v)
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}

	norm := Normalize(title)
	add(norm)
	add(StripNoise(title))

	// Without the set code the free-text name matches more catalog rows.
	noCode := setCodePattern.ReplaceAllString(strings.ToUpper(norm), "")
	add(Normalize(noCode))

	add(Romanize(norm))
	add(Romanize(StripNoise(title)))

	return out
}

// ExtractSetCode returns the first printed set code in the title (upper-cased,
// normalized width) and whether one was found.
func ExtractSetCode(title string) (string, bool) {
	upper := strings.ToUpper(Normalize(title))
	m := setCodePattern.FindString(upper)
	if m == "" {
		return "", false
	}
	return m, true
}
