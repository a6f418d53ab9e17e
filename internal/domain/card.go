package domain

import (
	"fmt"
	"strings"
)

// Grade is the ordinal condition ladder for trading cards. Higher is better.
// GradeUnknown sorts below every real grade.
type Grade int

const (
	GradeUnknown Grade = iota
	GradePoor
	GradePlayed
	GradeLightPlayed
	GradeGood
	GradeVeryGood
	GradeExcellent
	GradeNearMint
	GradeMint
)

var gradeNames = map[Grade]string{
	GradeUnknown:     "Unknown",
	GradePoor:        "Poor",
	GradePlayed:      "Played",
	GradeLightPlayed: "Light Played",
	GradeGood:        "Good",
	GradeVeryGood:    "Very Good",
	GradeExcellent:   "Excellent",
	GradeNearMint:    "Near Mint",
	GradeMint:        "Mint",
}

func (g Grade) String() string {
	if s, ok := gradeNames[g]; ok {
		return s
	}
	return fmt.Sprintf("Grade(%d)", int(g))
}

// Distance returns the absolute number of ladder steps between two grades.
func (g Grade) Distance(other Grade) int {
	d := int(g) - int(other)
	if d < 0 {
		d = -d
	}
	return d
}

// ParseGrade maps a grade label to its ordinal value. Matching is
// case-insensitive and tolerates the common short forms (NM, EX, LP, HP).
func ParseGrade(s string) Grade {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mint", "m":
		return GradeMint
	case "near mint", "near-mint", "nm", "nm-mt":
		return GradeNearMint
	case "excellent", "ex", "ex-mt":
		return GradeExcellent
	case "very good", "vg", "vg-ex":
		return GradeVeryGood
	case "good", "g":
		return GradeGood
	case "light played", "lightly played", "lp":
		return GradeLightPlayed
	case "played", "p":
		return GradePlayed
	case "poor", "damaged", "heavily played", "hp":
		return GradePoor
	default:
		return GradeUnknown
	}
}

// CardIdentity is a normalized card reference. Two identities are equal only
// if every field matches exactly; fuzziness is resolved during identity
// resolution, never here. The struct is comparable and usable as a map key.
type CardIdentity struct {
	Name     string // canonical English name
	SetCode  string // e.g. "LOB", "SDK"
	Rarity   string // e.g. "Ultra Rare"
	Language string // language of print, e.g. "Japanese"
	Edition  string // print-run tag, e.g. "1st Edition", "Unlimited"
}

// Key renders the identity as a single stable string, used for cache keys and
// log fields.
func (c CardIdentity) Key() string {
	return strings.Join([]string{c.Name, c.SetCode, c.Rarity, c.Language, c.Edition}, "|")
}

// ConditionGrade is the structured output of condition analysis.
type ConditionGrade struct {
	Grade      Grade
	Confidence float64 // in [0,1]; reflects agreement between image and text signals
	Defects    []string
}
