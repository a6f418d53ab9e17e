package analyze

import (
	"regexp"
	"strings"

	"cardhawk/internal/domain"
)

// Japanese dealers encode card condition as a letter rank in the listing
// title. The rank is an independent signal from the photo-based grade.
var dealerRankGrades = map[string]domain.Grade{
	"SS": domain.GradeMint,
	"S":  domain.GradeMint,
	"A":  domain.GradeNearMint,
	"B+": domain.GradeExcellent,
	"B":  domain.GradeVeryGood,
	"C":  domain.GradeGood,
	"D":  domain.GradeLightPlayed,
	"E":  domain.GradePlayed,
}

var rankPatterns = []*regexp.Regexp{
	regexp.MustCompile(`【ランク】\s*([A-Z+]+)`),
	regexp.MustCompile(`ランク\s*[：:]\s*([A-Z+]+)`),
	regexp.MustCompile(`状態\s*[：:]\s*([A-Z+]+)`),
	regexp.MustCompile(`グレード\s*[：:]\s*([A-Z+]+)`),
}

// conditionKeywords maps free-text condition phrases to grades, checked in
// order so more damaged states win over generic "beauty" claims.
var conditionKeywords = []struct {
	phrase string
	grade  domain.Grade
}{
	{"ジャンク", domain.GradePoor},
	{"damaged", domain.GradePoor},
	{"キズあり", domain.GradeLightPlayed},
	{"微傷", domain.GradeLightPlayed},
	{"lightly played", domain.GradeLightPlayed},
	{"傷あり", domain.GradePlayed},
	{"傷有り", domain.GradePlayed},
	{"プレイ用", domain.GradePlayed},
	{"played", domain.GradePlayed},
	{"極美品", domain.GradeNearMint},
	{"near mint", domain.GradeNearMint},
	{"完美品", domain.GradeMint},
	{"新品", domain.GradeMint},
	{"未使用", domain.GradeMint},
	{"美品", domain.GradeNearMint},
	{"mint", domain.GradeMint},
}

// Confidence levels for the text signal. An explicit dealer rank is a strong
// statement; a loose keyword much less so.
const (
	rankSignalConfidence    = 0.9
	keywordSignalConfidence = 0.6
)

// textSignal extracts a condition grade from the listing title. The boolean
// reports whether any signal was found.
func textSignal(title string) (domain.Grade, float64, bool) {
	upper := strings.ToUpper(title)
	for _, pat := range rankPatterns {
		if m := pat.FindStringSubmatch(upper); m != nil {
			if g, ok := dealerRankGrades[m[1]]; ok {
				return g, rankSignalConfidence, true
			}
		}
	}

	lower := strings.ToLower(title)
	for _, kw := range conditionKeywords {
		if strings.Contains(lower, kw.phrase) {
			return kw.grade, keywordSignalConfidence, true
		}
	}
	return domain.GradeUnknown, 0, false
}
