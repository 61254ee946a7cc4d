package quote

import (
	"github.com/shopspring/decimal"
)

// Outcome classifies what Add did with a candidate quote.
type Outcome int

const (
	Accepted Outcome = iota
	Duplicate
	Rejected
)

// Result summarizes one aggregation run.
type Result struct {
	Count      int
	Average    decimal.Decimal
	PerSource  map[string]int
	Comparison *decimal.Decimal
	Duplicates int
	Rejected   int
}

// Aggregator collects the accepted quotes of a single fetch run and computes
// the batch average. Duplicate detection is by exact source URL string;
// normalized URL comparison is a known gap.
type Aggregator struct {
	accepted   []MarketQuote
	seenURLs   map[string]bool
	duplicates int
	rejected   int
}

func NewAggregator() *Aggregator {
	return &Aggregator{seenURLs: make(map[string]bool)}
}

// Add classifies and possibly keeps q. Rejection means a non-positive
// converted price; duplication means the source URL was already accepted in
// this run.
func (a *Aggregator) Add(q MarketQuote) Outcome {
	if !q.PriceINR.IsPositive() {
		a.rejected++
		return Rejected
	}
	if q.SourceURL != "" && a.seenURLs[q.SourceURL] {
		a.duplicates++
		return Duplicate
	}
	if q.SourceURL != "" {
		a.seenURLs[q.SourceURL] = true
	}
	a.accepted = append(a.accepted, q)
	return Accepted
}

// FilterOutliers drops quotes outside [0.1x, 10x] of the batch mean. The
// bounds are deliberately wide; collectible price spreads across markets are
// naturally large. Applies only when more than two quotes exist.
func (a *Aggregator) FilterOutliers() {
	if len(a.accepted) <= 2 {
		return
	}
	mean := mean(a.accepted)
	if !mean.IsPositive() {
		return
	}

	low := mean.Mul(decimal.RequireFromString("0.1"))
	high := mean.Mul(decimal.NewFromInt(10))

	kept := a.accepted[:0]
	for _, q := range a.accepted {
		if q.PriceINR.GreaterThanOrEqual(low) && q.PriceINR.LessThanOrEqual(high) {
			kept = append(kept, q)
		} else {
			a.rejected++
		}
	}
	a.accepted = kept
}

// Quotes returns the accepted quotes in acceptance order.
func (a *Aggregator) Quotes() []MarketQuote {
	return a.accepted
}

// Finalize computes the batch summary. The comparison against reference is
// (reference - average) / average * 100: positive means the reference sits
// above the market average. It is nil when there are no quotes or no
// positive reference.
func (a *Aggregator) Finalize(reference decimal.Decimal) Result {
	res := Result{
		Count:      len(a.accepted),
		PerSource:  make(map[string]int),
		Duplicates: a.duplicates,
		Rejected:   a.rejected,
	}
	if len(a.accepted) == 0 {
		return res
	}

	avg := mean(a.accepted)
	res.Average = avg.Round(2)
	for _, q := range a.accepted {
		res.PerSource[q.Source]++
	}

	if reference.IsPositive() && avg.IsPositive() {
		cmp := reference.Sub(avg).Div(avg).Mul(decimal.NewFromInt(100)).Round(2)
		res.Comparison = &cmp
	}
	return res
}

func mean(quotes []MarketQuote) decimal.Decimal {
	sum := decimal.Zero
	for _, q := range quotes {
		sum = sum.Add(q.PriceINR)
	}
	return sum.Div(decimal.NewFromInt(int64(len(quotes))))
}
