package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionExhausted means every known browsing identity is burned.
	// Fatal for the run.
	ErrSessionExhausted = errors.New("session pool exhausted")
	// ErrIdentityUnresolved means no catalog candidate cleared the similarity
	// threshold. The listing is excluded from correlation.
	ErrIdentityUnresolved = errors.New("card identity unresolved")
	// ErrNoMatch means correlation found no usable reference price. This is
	// an expected outcome, not a failure.
	ErrNoMatch = errors.New("no reference price match")
	// ErrSchemaInvalid means the classifier response failed schema validation.
	ErrSchemaInvalid = errors.New("classifier response failed schema validation")
	// ErrEmptyResponse means the classifier returned no content at all.
	ErrEmptyResponse = errors.New("classifier returned empty response")
	// ErrNotFound is returned by stores and caches for missing records.
	ErrNotFound = errors.New("not found")
	// ErrRunInProgress means another process already holds the run lock.
	ErrRunInProgress = errors.New("another run is in progress")
)

// AcquisitionError reports a failed page fetch. Fatal is set when the failure
// poisons the whole search (persistent bot detection) rather than one page.
type AcquisitionError struct {
	Query string
	Page  int
	Fatal bool
	Cause error
}

func (e *AcquisitionError) Error() string {
	scope := "page"
	if e.Fatal {
		scope = "search"
	}
	return fmt.Sprintf("acquisition failed (%s %q, page %d): %v", scope, e.Query, e.Page, e.Cause)
}

func (e *AcquisitionError) Unwrap() error { return e.Cause }

// AnalysisError reports a per-listing analysis failure. The listing is
// excluded from correlation, counted, and logged; the run continues.
type AnalysisError struct {
	ListingID string
	Cause     error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis failed for listing %s: %v", e.ListingID, e.Cause)
}

func (e *AnalysisError) Unwrap() error { return e.Cause }
