package domain

import "time"

// ReferencePrice is a point-in-time market snapshot for one card in one
// condition bucket. It is read-only external data; staleness is judged by
// age-from-snapshot, the record itself is never mutated.
type ReferencePrice struct {
	Identity   CardIdentity
	Grade      Grade // condition bucket
	Price      Money
	ObservedAt time.Time
}

// Age returns how old the snapshot is relative to now.
func (r ReferencePrice) Age(now time.Time) time.Duration {
	return now.Sub(r.ObservedAt)
}
