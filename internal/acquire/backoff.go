package acquire

import (
	"math/rand"
	"time"
)

// backoff returns the wait before retry number attempt (0-based): exponential
// from base, capped at max, with the upper half jittered so synchronized
// retries spread out.
func backoff(base, max time.Duration, attempt int, rng *rand.Rand) time.Duration {
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= max {
			d = max
			break
		}
	}
	if d > max {
		d = max
	}
	half := d / 2
	return half + time.Duration(rng.Int63n(int64(half)+1))
}

// pacingDelay returns a uniformly random human-like pause in [min, max].
func pacingDelay(min, max time.Duration, rng *rand.Rand) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rng.Int63n(int64(max-min)+1))
}
