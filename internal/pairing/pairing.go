// Package pairing implements the conceptual grouping of per-venue legs into
// PairedPositions and the VALID/SINGLE_LEG/EMPTY classification that drives
// component I, the Pairing / Single-Leg Scheduler (spec.md §3, §4.I).
package pairing

import "github.com/sawpanic/fundingkeeper/internal/venue"

// Status classifies one normalized symbol's current leg configuration.
type Status string

const (
	Valid     Status = "VALID"
	SingleLeg Status = "SINGLE_LEG"
	Empty     Status = "EMPTY"
)

// PairedPosition groups at most one LONG and one SHORT leg for the same
// normalized symbol, one per distinct venue (spec.md §3 glossary).
type PairedPosition struct {
	Normalized string
	Long       *venue.Position
	Short      *venue.Position
	Status     Status
}

// Classify groups legs (spec.md §4.I step 2):
//   - VALID: one LONG on venue A and one SHORT on venue B, A != B.
//   - SINGLE_LEG: exactly one side present, or both sides present but on the
//     same venue.
//   - EMPTY: no legs.
func Classify(normalized string, legs []venue.Position) PairedPosition {
	pp := PairedPosition{Normalized: normalized}

	var longs, shorts []venue.Position
	for _, p := range legs {
		if p.Closed() {
			continue
		}
		switch p.Side {
		case venue.Long:
			longs = append(longs, p)
		case venue.Short:
			shorts = append(shorts, p)
		}
	}

	switch {
	case len(longs) == 0 && len(shorts) == 0:
		pp.Status = Empty
	case len(longs) >= 1 && len(shorts) >= 1:
		l, s := longs[0], shorts[0]
		pp.Long, pp.Short = &l, &s
		if l.Venue != s.Venue {
			pp.Status = Valid
		} else {
			pp.Status = SingleLeg
		}
	case len(longs) >= 1:
		l := longs[0]
		pp.Long = &l
		pp.Status = SingleLeg
	default:
		s := shorts[0]
		pp.Short = &s
		pp.Status = SingleLeg
	}
	return pp
}

// ClassifyAll groups a full snapshot's positions by normalized symbol.
func ClassifyAll(positions []venue.Position) map[string]PairedPosition {
	bySymbol := map[string][]venue.Position{}
	for _, p := range positions {
		bySymbol[p.Normalized] = append(bySymbol[p.Normalized], p)
	}
	out := make(map[string]PairedPosition, len(bySymbol))
	for normalized, legs := range bySymbol {
		out[normalized] = Classify(normalized, legs)
	}
	return out
}
