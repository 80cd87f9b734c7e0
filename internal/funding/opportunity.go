package funding

import (
	"context"
	"sort"
	"time"

	"github.com/sawpanic/fundingkeeper/internal/cache"
	"github.com/sawpanic/fundingkeeper/internal/venue"
)

// Opportunity is the transient tuple from spec.md §3 — never stored,
// recomputed on every scan.
type Opportunity struct {
	Normalized      string
	LongVenue       venue.Name
	ShortVenue      venue.Name
	LongRate        float64
	ShortRate       float64
	Spread          float64
	ExpectedReturn  float64
	LongMarkPrice   float64
	ShortMarkPrice  float64
	LongOI          *float64
	ShortOI         *float64
	Observed        time.Time
}

// HoursPerYear is used to annualize an hourly spread (spec.md §3).
const HoursPerYear = 24 * 365

// FindArbitrageOpportunities scans symbols in bounded batches (default 5 at
// a time with a 1s inter-batch pause, spec.md §4.F) and returns every
// Opportunity clearing minSpread, sorted by expected annualized return, tie
// broken by combined open interest then normalized symbol.
func (a *Aggregator) FindArbitrageOpportunities(ctx context.Context, snap cache.Snapshot, symbols []string, minSpread float64) []Opportunity {
	var out []Opportunity

	for start := 0; start < len(symbols); start += a.batchSize {
		end := start + a.batchSize
		if end > len(symbols) {
			end = len(symbols)
		}
		batch := symbols[start:end]

		for _, sym := range batch {
			rates := a.GetFundingRates(ctx, snap, sym)
			out = append(out, candidatesFor(sym, rates, minSpread)...)
		}

		if end < len(symbols) && a.batchPause > 0 {
			select {
			case <-ctx.Done():
				return out
			case <-time.After(a.batchPause):
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		ei, ej := out[i].ExpectedReturn, out[j].ExpectedReturn
		if ei != ej {
			return ei > ej
		}
		oiI, oiJ := combinedOI(out[i]), combinedOI(out[j])
		if oiI != oiJ {
			return oiI > oiJ
		}
		return out[i].Normalized < out[j].Normalized
	})
	return out
}

// candidatesFor yields up to two opportunities for one symbol: a directional
// cross (long the negative-rate venue, short the positive-rate one) and the
// simple-extremes pairing (highest vs lowest rate regardless of sign),
// independently gated on minSpread (spec.md §4.F).
func candidatesFor(normalized string, rates []venue.FundingRate, minSpread float64) []Opportunity {
	if len(rates) < 2 {
		return nil
	}

	var out []Opportunity
	now := time.Now()

	if pos, neg, ok := findDirectionalCross(rates); ok {
		spread := pos.HourlyRate() - neg.HourlyRate()
		if spread >= minSpread {
			out = append(out, build(normalized, neg, pos, spread, now))
		}
	}

	sorted := append([]venue.FundingRate(nil), rates...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].HourlyRate() > sorted[j].HourlyRate() })
	highest, lowest := sorted[0], sorted[len(sorted)-1]
	if highest.Venue != lowest.Venue {
		spread := highest.HourlyRate() - lowest.HourlyRate()
		if spread >= minSpread {
			out = append(out, build(normalized, lowest, highest, spread, now))
		}
	}

	return out
}

// findDirectionalCross looks for an r+ > 0 and r- < 0 on different venues.
// Long goes on the negative-rate venue (it receives funding), short on the
// positive-rate one (spec.md §4.F candidate 1).
func findDirectionalCross(rates []venue.FundingRate) (pos, neg venue.FundingRate, ok bool) {
	var bestPos, bestNeg venue.FundingRate
	havePos, haveNeg := false, false
	for _, r := range rates {
		hr := r.HourlyRate()
		if hr > 0 && (!havePos || hr > bestPos.HourlyRate()) {
			bestPos, havePos = r, true
		}
		if hr < 0 && (!haveNeg || hr < bestNeg.HourlyRate()) {
			bestNeg, haveNeg = r, true
		}
	}
	if havePos && haveNeg && bestPos.Venue != bestNeg.Venue {
		return bestPos, bestNeg, true
	}
	return venue.FundingRate{}, venue.FundingRate{}, false
}

func build(normalized string, long, short venue.FundingRate, spread float64, now time.Time) Opportunity {
	absSpread := spread
	if absSpread < 0 {
		absSpread = -absSpread
	}
	return Opportunity{
		Normalized:     normalized,
		LongVenue:      long.Venue,
		ShortVenue:     short.Venue,
		LongRate:       long.HourlyRate(),
		ShortRate:      short.HourlyRate(),
		Spread:         spread,
		ExpectedReturn: absSpread * HoursPerYear,
		LongMarkPrice:  long.MarkPrice,
		ShortMarkPrice: short.MarkPrice,
		LongOI:         long.OpenInterest,
		ShortOI:        short.OpenInterest,
		Observed:       now,
	}
}

func combinedOI(o Opportunity) float64 {
	var sum float64
	if o.LongOI != nil {
		sum += *o.LongOI
	}
	if o.ShortOI != nil {
		sum += *o.ShortOI
	}
	return sum
}
