package scheduler

import (
	"fmt"
	"time"

	"github.com/sawpanic/fundingkeeper/internal/venue"
)

// SingleLegRetryInfo pins the venue assignment decided when a pair was
// opened, so market moves can never flip which venue the recovery leg
// targets (spec.md §3, §4.I "Critical rule").
type SingleLegRetryInfo struct {
	Normalized    string
	LongVenue     venue.Name
	ShortVenue    venue.Name
	RetryCount    int
	LastRetryTime time.Time
}

// retryKey indexes the in-memory retryInfo table. Keying on the venue pair
// (not just the symbol) matches spec.md's `normalized|longVenue|shortVenue`
// scoping so a symbol's retryInfo survives being looked up mid-recovery.
type retryKey struct {
	normalized string
	longVenue  venue.Name
	shortVenue venue.Name
}

func keyFor(info SingleLegRetryInfo) retryKey {
	return retryKey{normalized: info.Normalized, longVenue: info.LongVenue, shortVenue: info.ShortVenue}
}

// ErrNoCounterparty is returned when no venue besides the existing leg's is
// available to host the missing side.
var ErrNoCounterparty = fmt.Errorf("no counterparty venue available")

// preferredVenue is consulted only when no retryInfo exists yet for this
// symbol (spec.md §4.I pseudocode: "preferred = HYPERLIQUID if in others
// else first(others)").
const preferredVenue = venue.Hyperliquid

// determineMissingSide is the recovery algorithm from spec.md §4.I,
// transcribed verbatim. retryInfo, when non-nil and naming position.Venue
// among its two venues, takes absolute precedence over any fresh
// derivation — this is the safety-critical branch that prevents the
// recovery leg from flipping venues on subsequent ticks. preferredOrder is
// spec.md §6's configured venue preference list, consulted ahead of the
// preferredVenue fallback.
func determineMissingSide(position venue.Position, retryInfo *SingleLegRetryInfo, availableVenues []venue.Name, preferredOrder []string) (missingVenue venue.Name, missingSide venue.Side, info SingleLegRetryInfo, err error) {
	var longVenue, shortVenue venue.Name

	if retryInfo != nil && (retryInfo.LongVenue == position.Venue || retryInfo.ShortVenue == position.Venue) {
		longVenue, shortVenue = retryInfo.LongVenue, retryInfo.ShortVenue
		info = *retryInfo
	} else {
		others := excludeVenue(availableVenues, position.Venue)
		if len(others) == 0 {
			return "", "", SingleLegRetryInfo{}, ErrNoCounterparty
		}
		preferred := pickPreferred(others, preferredOrder)
		if position.Side == venue.Long {
			longVenue, shortVenue = position.Venue, preferred
		} else {
			longVenue, shortVenue = preferred, position.Venue
		}
		info = SingleLegRetryInfo{Normalized: position.Normalized, LongVenue: longVenue, ShortVenue: shortVenue}
	}

	if position.Side == venue.Long {
		missingVenue, missingSide = shortVenue, venue.Short
	} else {
		missingVenue, missingSide = longVenue, venue.Long
	}

	if missingVenue == position.Venue {
		return "", "", SingleLegRetryInfo{}, fmt.Errorf("scheduler: derived missing venue %s equals position venue, safety invariant violated", missingVenue)
	}
	return missingVenue, missingSide, info, nil
}

func excludeVenue(venues []venue.Name, exclude venue.Name) []venue.Name {
	out := make([]venue.Name, 0, len(venues))
	for _, v := range venues {
		if v != exclude {
			out = append(out, v)
		}
	}
	return out
}

// pickPreferred honors the configured preferredOrder override first (first
// entry that is actually present in others wins), falling back to the
// spec.md §4.I default of preferredVenue, then others[0].
func pickPreferred(others []venue.Name, preferredOrder []string) venue.Name {
	for _, name := range preferredOrder {
		candidate := venue.Name(name)
		for _, v := range others {
			if v == candidate {
				return candidate
			}
		}
	}
	for _, v := range others {
		if v == preferredVenue {
			return preferredVenue
		}
	}
	return others[0]
}
