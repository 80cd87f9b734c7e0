package scheduler

import "time"

// Config holds the engine configuration keys spec.md §6 assigns to the
// scheduler.
type Config struct {
	TickInterval time.Duration // default 1h

	MinSpread float64 // openThreshold, default 1e-4

	MaxSingleLegRetries int           // default 3
	SingleLegBackoff    time.Duration // default 60s, linear per attempt
	SingleLegFillWait   time.Duration // default 60s
	SingleLegPoll       time.Duration // default 5s

	PreferredVenueForMissingLeg []string // ordered override of preferredVenue
}

// DefaultConfig returns the spec.md §6 defaults.
func DefaultConfig() Config {
	return Config{
		TickInterval:        time.Hour,
		MinSpread:           1e-4,
		MaxSingleLegRetries: 3,
		SingleLegBackoff:    60 * time.Second,
		SingleLegFillWait:   60 * time.Second,
		SingleLegPoll:       5 * time.Second,
	}
}
