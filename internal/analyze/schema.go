package analyze

import (
	"encoding/json"
	"strings"
)

// verdict classifies a model response against the expected contract.
type verdict int

const (
	verdictValid verdict = iota
	verdictEmpty
	verdictSchemaInvalid
)

func (v verdict) String() string {
	switch v {
	case verdictValid:
		return "valid"
	case verdictEmpty:
		return "empty"
	case verdictSchemaInvalid:
		return "schema_invalid"
	default:
		return "unknown"
	}
}

// Classification is the parsed model response.
type Classification struct {
	CardName       string   `json:"card_name"`
	SetCode        string   `json:"set_code"`
	Rarity         string   `json:"rarity"`
	Edition        string   `json:"edition"`
	Region         string   `json:"region"`
	Condition      string   `json:"condition"`
	ConditionNotes []string `json:"condition_notes"`
	Confidence     float64  `json:"confidence"`
}

// parseClassification validates a raw model response. Models occasionally
// wrap the object in markdown fences despite instructions, so fences are
// stripped before decoding.
func parseClassification(raw string) (Classification, verdict) {
	raw = stripFences(strings.TrimSpace(raw))
	if raw == "" || raw == "{}" {
		return Classification{}, verdictEmpty
	}

	var c Classification
	dec := json.NewDecoder(strings.NewReader(raw))
	if err := dec.Decode(&c); err != nil {
		return Classification{}, verdictSchemaInvalid
	}

	if strings.TrimSpace(c.Condition) == "" {
		return Classification{}, verdictSchemaInvalid
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		return Classification{}, verdictSchemaInvalid
	}
	if strings.TrimSpace(c.CardName) == "" && strings.TrimSpace(c.SetCode) == "" {
		return Classification{}, verdictSchemaInvalid
	}
	return c, verdictValid
}

// stripFences removes a surrounding markdown code fence if present.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
