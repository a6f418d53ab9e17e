package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"cardhawk/internal/domain"
)

// unlockLua deletes the lock key only if its value matches the caller's
// token, so one holder can never release another holder's lock.
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

const runLockKey = "cardhawk:run_lock"

// RunLock serializes pipeline runs across processes. Two concurrent runs
// would double the marketplace traffic and race on the fingerprint pool.
type RunLock struct {
	rdb      *redis.Client
	unlockSc *redis.Script
}

// NewRunLock creates a RunLock backed by the given Client.
func NewRunLock(c *Client) *RunLock {
	return &RunLock{
		rdb:      c.Underlying(),
		unlockSc: redis.NewScript(unlockLua),
	}
}

// Acquire obtains the run lock with the given TTL. On success it returns a
// release function that is safe to call more than once. It returns
// domain.ErrRunInProgress when another process holds the lock.
func (rl *RunLock) Acquire(ctx context.Context, ttl time.Duration) (func(), error) {
	token := uuid.New().String()

	ok, err := rl.rdb.SetNX(ctx, runLockKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire run lock: %w", err)
	}
	if !ok {
		return nil, domain.ErrRunInProgress
	}

	released := false
	release := func() {
		if released {
			return
		}
		released = true

		// Background context so release succeeds even after the run's
		// context is cancelled.
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = rl.unlockSc.Run(unlockCtx, rl.rdb, []string{runLockKey}, token).Err()
	}
	return release, nil
}
