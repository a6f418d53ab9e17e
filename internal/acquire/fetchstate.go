package acquire

import "time"

// pageState tracks where one page fetch sits in its retry lifecycle.
type pageState int

const (
	statePending pageState = iota
	stateBackoff
	stateDone
	stateFailed
)

func (s pageState) String() string {
	switch s {
	case statePending:
		return "pending"
	case stateBackoff:
		return "backoff"
	case stateDone:
		return "done"
	case stateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// fetchState is the per-page retry record. The state, attempt count, and
// eligibility time are plain data so the engine's decisions stay inspectable.
type fetchState struct {
	state        pageState
	attempt      int
	challenges   int // consecutive bot challenges seen for this page
	nextEligible time.Time
	lastErr      error
}

// eligible reports whether the page may be fetched at time now.
func (f *fetchState) eligible(now time.Time) bool {
	if f.state == stateDone || f.state == stateFailed {
		return false
	}
	return !now.Before(f.nextEligible)
}

// recordFailure advances the attempt count and schedules the next try.
func (f *fetchState) recordFailure(err error, now time.Time, wait time.Duration) {
	f.attempt++
	f.lastErr = err
	f.state = stateBackoff
	f.nextEligible = now.Add(wait)
}

// recordChallenge notes a bot challenge without consuming a retry attempt.
func (f *fetchState) recordChallenge() {
	f.challenges++
}

// clearChallenges resets the consecutive-challenge counter after any fetch
// that did not trip detection.
func (f *fetchState) clearChallenges() {
	f.challenges = 0
}
