package match

// Similarity returns the Sorensen-Dice coefficient over character bigrams of
// the two strings, in [0,1]. Both inputs should already be normalized.
// Identical non-empty strings score 1; strings sharing no bigram score 0.
func Similarity(a, b string) float64 {
	if a == b {
		if a == "" {
			return 0
		}
		return 1
	}

	ba := bigrams(a)
	bb := bigrams(b)
	if len(ba) == 0 || len(bb) == 0 {
		return 0
	}

	counts := make(map[string]int, len(ba))
	for _, g := range ba {
		counts[g]++
	}
	overlap := 0
	for _, g := range bb {
		if counts[g] > 0 {
			counts[g]--
			overlap++
		}
	}
	return 2 * float64(overlap) / float64(len(ba)+len(bb))
}

// BestScore scores each variant against the candidate and returns the highest.
func BestScore(variants []string, candidate string) float64 {
	best := 0.0
	for _, v := range variants {
		if s := Similarity(v, candidate); s > best {
			best = s
		}
	}
	return best
}

func bigrams(s string) []string {
	runes := []rune(s)
	if len(runes) < 2 {
		return nil
	}
	out := make([]string, 0, len(runes)-1)
	for i := 0; i < len(runes)-1; i++ {
		out = append(out, string(runes[i:i+2]))
	}
	return out
}
