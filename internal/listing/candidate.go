// Package listing extracts a priced candidate from a single marketplace page.
package listing

import "github.com/shopspring/decimal"

// Candidate is one priced listing pulled from a crawled page. Price is in the
// page's own currency; conversion happens downstream.
type Candidate struct {
	Price        decimal.Decimal
	Currency     string
	Title        string
	URL          string
	ModelName    string
	Manufacturer string
	Scale        string
	Seller       string
	Confidence   float64
}

// Target identifies the car whose market price is being looked up.
type Target struct {
	Manufacturer string
	ModelName    string
	Scale        string
}
