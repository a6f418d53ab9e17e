package session

import (
	"context"
	"sync"

	"cardhawk/internal/domain"
)

// DefaultPool returns the built-in fingerprint pool: realistic desktop
// user agents paired with common viewport sizes. IDs are stable across runs so
// burn records in Redis survive process restarts.
func DefaultPool() []domain.Fingerprint {
	return []domain.Fingerprint{
		{
			ID:         "fp-chrome-win-1",
			UserAgent:  "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0.0.0 Safari/537.36",
			Locale:     "ja-JP",
			ViewportW:  1920,
			ViewportH:  1080,
			JitterSeed: 11,
		},
		{
			ID:         "fp-chrome-mac-1",
			UserAgent:  "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0.0.0 Safari/537.36",
			Locale:     "ja-JP",
			ViewportW:  1680,
			ViewportH:  1050,
			JitterSeed: 23,
		},
		{
			ID:         "fp-edge-win-1",
			UserAgent:  "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36 Edg/126.0.0.0",
			Locale:     "ja-JP",
			ViewportW:  1536,
			ViewportH:  864,
			JitterSeed: 37,
		},
		{
			ID:         "fp-chrome-win-2",
			UserAgent:  "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
			Locale:     "en-US",
			ViewportW:  1440,
			ViewportH:  900,
			JitterSeed: 53,
		},
		{
			ID:         "fp-firefox-win-1",
			UserAgent:  "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:128.0) Gecko/20100101 Firefox/128.0",
			Locale:     "ja-JP",
			ViewportW:  1920,
			ViewportH:  1080,
			JitterSeed: 71,
		},
	}
}

// MemoryBurnedStore is an in-process BurnedStore used when Redis is not
// configured and in tests. Burns last for the process lifetime.
type MemoryBurnedStore struct {
	mu     sync.Mutex
	burned map[string]bool
}

// NewMemoryBurnedStore returns an empty in-memory burn store.
func NewMemoryBurnedStore() *MemoryBurnedStore {
	return &MemoryBurnedStore{burned: make(map[string]bool)}
}

func (s *MemoryBurnedStore) Burn(_ context.Context, fingerprintID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.burned[fingerprintID] = true
	return nil
}

func (s *MemoryBurnedStore) IsBurned(_ context.Context, fingerprintID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.burned[fingerprintID], nil
}

var _ domain.BurnedStore = (*MemoryBurnedStore)(nil)
