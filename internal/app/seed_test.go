package app

import (
	"strings"
	"testing"

	"cardhawk/internal/domain"
)

func TestParseSeedFile(t *testing.T) {
	data := []byte(`{
		"cards": [
			{"name": "Blue-Eyes White Dragon", "set_code": "LOB", "rarity": "Ultra Rare", "language": "Japanese", "edition": "Unlimited"}
		],
		"prices": [
			{
				"card": {"name": "Blue-Eyes White Dragon", "set_code": "LOB"},
				"grade": "Near Mint",
				"amount": 9000,
				"currency": "JPY",
				"observed_at": "2026-08-01T00:00:00Z"
			}
		]
	}`)

	cards, prices, err := parseSeedFile(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(cards) != 1 || cards[0].Name != "Blue-Eyes White Dragon" || cards[0].SetCode != "LOB" {
		t.Errorf("cards = %+v", cards)
	}
	if len(prices) != 1 {
		t.Fatalf("prices = %+v", prices)
	}
	p := prices[0]
	if p.Grade != domain.GradeNearMint {
		t.Errorf("grade = %v", p.Grade)
	}
	if p.Price.Amount != 9000 || p.Price.Currency != domain.CurrencyJPY {
		t.Errorf("price = %+v", p.Price)
	}
	if p.Identity.Name != "Blue-Eyes White Dragon" {
		t.Errorf("identity = %+v", p.Identity)
	}
}

func TestParseSeedFileRejectsBadEntries(t *testing.T) {
	cases := []struct {
		name string
		data string
		want string
	}{
		{"missing card name", `{"cards": [{"set_code": "LOB"}]}`, "name is required"},
		{"zero amount", `{"prices": [{"card": {"name": "x"}, "amount": 0, "observed_at": "2026-08-01T00:00:00Z"}]}`, "amount must be > 0"},
		{"missing observed_at", `{"prices": [{"card": {"name": "x"}, "amount": 100}]}`, "observed_at is required"},
		{"not json", `{{`, "decode seed file"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := parseSeedFile([]byte(tc.data))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("err = %v, want %q", err, tc.want)
			}
		})
	}
}
