package browser

import (
	"testing"

	"cardhawk/internal/domain"
)

func TestDetectSignals(t *testing.T) {
	tests := []struct {
		name   string
		html   string
		status int
		want   domain.FetchSignals
	}{
		{
			name:   "clean results page",
			html:   `<html><li class="itemCard">...</li></html>`,
			status: 200,
			want:   domain.FetchSignals{},
		},
		{
			name:   "recaptcha challenge",
			html:   `<html><div class="g-recaptcha"></div></html>`,
			status: 200,
			want:   domain.FetchSignals{BotChallenge: true},
		},
		{
			name:   "japanese access restriction",
			html:   `<html><p>一時的なアクセス制限を行っています</p></html>`,
			status: 200,
			want:   domain.FetchSignals{BotChallenge: true},
		},
		{
			name:   "forbidden status implies challenge",
			html:   `<html></html>`,
			status: 403,
			want:   domain.FetchSignals{BotChallenge: true},
		},
		{
			name:   "rate limited",
			html:   `<html></html>`,
			status: 429,
			want:   domain.FetchSignals{RateLimited: true},
		},
		{
			name:   "maintenance japanese",
			html:   `<html><h1>ただいまメンテナンス中です</h1></html>`,
			status: 200,
			want:   domain.FetchSignals{Maintenance: true},
		},
		{
			name:   "maintenance status",
			html:   `<html></html>`,
			status: 503,
			want:   domain.FetchSignals{Maintenance: true},
		},
		{
			name:   "no results japanese",
			html:   `<html><p>該当する商品が見つかりませんでした。</p></html>`,
			status: 200,
			want:   domain.FetchSignals{NoResults: true},
		},
		{
			name:   "no results english",
			html:   `<html><p>No Results Found</p></html>`,
			status: 200,
			want:   domain.FetchSignals{NoResults: true},
		},
		{
			name:   "challenge wins over no-results scaffolding",
			html:   `<html><p>検索結果はありませんでした</p><div>captcha</div></html>`,
			status: 200,
			want:   domain.FetchSignals{BotChallenge: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectSignals(tt.html, tt.status)
			if got != tt.want {
				t.Errorf("DetectSignals = %+v, want %+v", got, tt.want)
			}
		})
	}
}
