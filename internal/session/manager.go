// Package session manages the pool of browsing-identity fingerprints used to
// resist marketplace bot detection. A fingerprint that trips a bot challenge
// is burned for the remainder of its TTL and never handed out again.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"

	"cardhawk/internal/domain"
)

// Manager hands out fingerprints from a fixed pool, skipping burned entries.
// It is safe for concurrent use.
type Manager struct {
	store domain.BurnedStore
	log   *slog.Logger

	mu      sync.Mutex
	pool    []domain.Fingerprint
	current int
}

// NewManager builds a Manager over the given pool. The pool order is
// shuffled once so repeated runs do not always lead with the same identity.
func NewManager(pool []domain.Fingerprint, store domain.BurnedStore, log *slog.Logger, seed int64) *Manager {
	shuffled := make([]domain.Fingerprint, len(pool))
	copy(shuffled, pool)
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	return &Manager{
		store:   store,
		log:     log.With(slog.String("component", "session")),
		pool:    shuffled,
		current: -1,
	}
}

// Acquire returns the fingerprint currently in use, selecting the first
// unburned one if none is active yet. It returns domain.ErrSessionExhausted
// when every fingerprint in the pool has been burned.
func (m *Manager) Acquire(ctx context.Context) (domain.Fingerprint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current >= 0 {
		fp := m.pool[m.current]
		burned, err := m.store.IsBurned(ctx, fp.ID)
		if err != nil {
			return domain.Fingerprint{}, fmt.Errorf("session: check burned: %w", err)
		}
		if !burned {
			return fp, nil
		}
		m.current = -1
	}
	return m.advanceLocked(ctx)
}

// Rotate burns the active fingerprint and switches to the next unburned one.
// It returns domain.ErrSessionExhausted when no fresh identity remains.
func (m *Manager) Rotate(ctx context.Context) (domain.Fingerprint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current >= 0 {
		fp := m.pool[m.current]
		if err := m.store.Burn(ctx, fp.ID); err != nil {
			return domain.Fingerprint{}, fmt.Errorf("session: burn %s: %w", fp.ID, err)
		}
		m.log.Info("fingerprint burned", slog.String("fingerprint_id", fp.ID))
		m.current = -1
	}
	return m.advanceLocked(ctx)
}

// Remaining reports how many fingerprints in the pool are not burned.
func (m *Manager) Remaining(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, fp := range m.pool {
		burned, err := m.store.IsBurned(ctx, fp.ID)
		if err != nil {
			return 0, fmt.Errorf("session: check burned: %w", err)
		}
		if !burned {
			n++
		}
	}
	return n, nil
}

func (m *Manager) advanceLocked(ctx context.Context) (domain.Fingerprint, error) {
	for i, fp := range m.pool {
		burned, err := m.store.IsBurned(ctx, fp.ID)
		if err != nil {
			return domain.Fingerprint{}, fmt.Errorf("session: check burned: %w", err)
		}
		if !burned {
			m.current = i
			m.log.Debug("fingerprint active", slog.String("fingerprint_id", fp.ID))
			return fp, nil
		}
	}
	return domain.Fingerprint{}, domain.ErrSessionExhausted
}
