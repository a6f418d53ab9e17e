package browser

import (
	"strings"

	"cardhawk/internal/domain"
)

// Marker strings that identify non-result page states. The marketplace serves
// Japanese text to most sessions, so both language variants are listed.
var (
	botChallengeMarkers = []string{
		"captcha",
		"recaptcha",
		"verify you are human",
		"アクセスが集中",
		"一時的なアクセス制限",
	}
	maintenanceMarkers = []string{
		"under maintenance",
		"メンテナンス中",
		"メンテナンスのお知らせ",
		"ただいまメンテナンス",
	}
	noResultsMarkers = []string{
		"no results found",
		"該当する商品が見つかりませんでした",
		"検索結果はありませんでした",
	}
)

// DetectSignals inspects page HTML and the HTTP status to classify the page
// state. A challenge marker wins over a no-results marker: challenge pages
// sometimes embed empty-result scaffolding.
func DetectSignals(html string, status int) domain.FetchSignals {
	lower := strings.ToLower(html)

	var s domain.FetchSignals
	s.RateLimited = status == 429
	s.BotChallenge = status == 403 || containsAny(lower, botChallengeMarkers)
	s.Maintenance = status == 503 || containsAny(lower, maintenanceMarkers)
	if !s.BotChallenge && !s.Maintenance {
		s.NoResults = containsAny(lower, noResultsMarkers)
	}
	return s
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
