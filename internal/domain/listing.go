// Package domain defines the core data model of the acquisition-and-correlation
// pipeline: scraped listings, card identities, condition grades, reference
// prices, and arbitrage opportunities, together with the capability interfaces
// the pipeline depends on.
package domain

import "time"

// Currency is an ISO 4217 currency code.
type Currency string

const (
	CurrencyJPY Currency = "JPY"
	CurrencyUSD Currency = "USD"
)

// Money is a price amount in major units of its currency (yen for JPY,
// dollars for USD). Amounts are kept in the currency the marketplace listed;
// conversion happens only in the correlation engine.
type Money struct {
	Amount   float64
	Currency Currency
}

// RawPage is one fetched search-results page, before parsing.
type RawPage struct {
	Query     string
	Number    int // 1-based page number within the search
	URL       string
	HTML      string
	FetchedAt time.Time
}

// RawListing is one scraped auction entry. It is immutable once captured and
// owned exclusively by the pipeline run that produced it.
type RawListing struct {
	// ID is the marketplace-assigned listing identifier (e.g. the Yahoo
	// Auctions id embedded in the listing URL).
	ID        string
	Title     string // raw title text, mixed Japanese/English
	Price     Money  // exactly as listed, no conversion
	Seller    string
	ImageURLs []string // ordered; first is the primary photo
	URL       string
	FetchedAt time.Time
}
