package domain

import "time"

// Opportunity is the pipeline's output unit: a listing judged underpriced
// relative to its reference price. Created once per successfully correlated
// listing and never mutated afterwards.
type Opportunity struct {
	ID            string // uuid assigned at creation
	RunID         string
	Listing       RawListing
	Identity      CardIdentity
	IdentityScore float64 // similarity of the winning catalog match, in [0,1]
	Grade         ConditionGrade
	Reference     ReferencePrice
	// Margin is reference price minus listing price minus the fee estimate,
	// expressed in the run's normalized currency.
	Margin Money
	// Confidence combines identity-match similarity and grade confidence.
	Confidence float64
	DetectedAt time.Time
}
