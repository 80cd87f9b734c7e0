package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sawpanic/fundingkeeper/internal/venue"
)

// Scenario S2: a SHORT position on LIGHTER with an open LONG order on
// LIGHTER (no position or order on any other venue) is a zombie.
func TestFindZombies_SameVenueNoCounterparty(t *testing.T) {
	positions := []venue.Position{
		{Venue: venue.Lighter, Normalized: "MEGA-USD", Side: venue.Short, Size: 158},
	}
	orders := []venue.Order{
		{OrderID: "o1", Venue: venue.Lighter, Normalized: "MEGA-USD", Side: venue.Long, Size: 158},
	}

	zombies := findZombies(orders, positions)
	assert.Len(t, zombies, 1)
	assert.Equal(t, "o1", zombies[0].OrderID)
}

func TestFindZombies_CrossVenuePositionIsNotZombie(t *testing.T) {
	positions := []venue.Position{
		{Venue: venue.Lighter, Normalized: "MEGA-USD", Side: venue.Short, Size: 158},
		{Venue: venue.Hyperliquid, Normalized: "MEGA-USD", Side: venue.Long, Size: 158},
	}
	orders := []venue.Order{
		{OrderID: "o1", Venue: venue.Lighter, Normalized: "MEGA-USD", Side: venue.Long, Size: 158},
	}

	zombies := findZombies(orders, positions)
	assert.Empty(t, zombies)
}

func TestFindZombies_ReduceOnlySameVenueCloseIsNotZombie(t *testing.T) {
	positions := []venue.Position{
		{Venue: venue.Lighter, Normalized: "MEGA-USD", Side: venue.Short, Size: 158},
	}
	orders := []venue.Order{
		{OrderID: "o1", Venue: venue.Lighter, Normalized: "MEGA-USD", Side: venue.Long, Size: 158, ReduceOnly: true},
	}

	zombies := findZombies(orders, positions)
	assert.Empty(t, zombies)
}

func TestFindZombies_CrossVenueOrderIsNotZombie(t *testing.T) {
	orders := []venue.Order{
		{OrderID: "o1", Venue: venue.Lighter, Normalized: "MEGA-USD", Side: venue.Long, Size: 158},
		{OrderID: "o2", Venue: venue.Hyperliquid, Normalized: "MEGA-USD", Side: venue.Short, Size: 158},
	}

	zombies := findZombies(orders, nil)
	assert.Empty(t, zombies)
}
