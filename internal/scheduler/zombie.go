package scheduler

import "github.com/sawpanic/fundingkeeper/internal/venue"

// findZombies implements spec.md §4.I step 3: an open order is a zombie iff
// no position or other order for the same normalized symbol exists on a
// different venue. Reduce-only orders on the same venue as a matching
// position are never zombies (spec.md §9 resolved open question).
func findZombies(orders []venue.Order, positions []venue.Position) []venue.Order {
	posVenues := map[string]map[venue.Name]bool{}
	for _, p := range positions {
		if p.Closed() {
			continue
		}
		if posVenues[p.Normalized] == nil {
			posVenues[p.Normalized] = map[venue.Name]bool{}
		}
		posVenues[p.Normalized][p.Venue] = true
	}

	orderVenues := map[string]map[venue.Name]bool{}
	for _, o := range orders {
		if orderVenues[o.Normalized] == nil {
			orderVenues[o.Normalized] = map[venue.Name]bool{}
		}
		orderVenues[o.Normalized][o.Venue] = true
	}

	var zombies []venue.Order
	for _, o := range orders {
		hasOtherVenuePosition := hasOtherVenue(posVenues[o.Normalized], o.Venue)
		hasOtherVenueOrder := hasOtherVenueOtherThanThis(orders, o)
		if o.ReduceOnly && posVenues[o.Normalized][o.Venue] {
			// Legitimate same-venue close; its coherence with a
			// counterparty close is judged by the next tick's pairing
			// classification, not by the zombie sweep.
			continue
		}
		if !hasOtherVenuePosition && !hasOtherVenueOrder {
			zombies = append(zombies, o)
		}
	}
	return zombies
}

func hasOtherVenue(venues map[venue.Name]bool, exclude venue.Name) bool {
	for v := range venues {
		if v != exclude {
			return true
		}
	}
	return false
}

func hasOtherVenueOtherThanThis(orders []venue.Order, self venue.Order) bool {
	for _, o := range orders {
		if o.Normalized == self.Normalized && o.Venue != self.Venue && o.OrderID != self.OrderID {
			return true
		}
	}
	return false
}
