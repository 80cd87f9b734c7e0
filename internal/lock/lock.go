// Package lock implements component C, the Execution Lock Service: symbol
// mutual exclusion plus the active-order registry that is the authoritative
// record for invariant I4 (spec.md §4.C).
package lock

import "time"

// Purpose labels why a symbol lock was taken, for diagnostics only.
type Purpose string

const (
	PurposeOpen      Purpose = "open"
	PurposeClosePair Purpose = "close-pair"
	PurposeRecover   Purpose = "recover"
)

// OrderKey identifies one slot in the active-order registry.
type OrderKey struct {
	Venue      string
	Normalized string
	Side       string
}

// OrderState is the registry's record for one active-order slot.
type OrderState struct {
	Key       OrderKey
	OrderID   string
	ThreadID  string
	Size      float64
	Price     float64
	Status    string // mirrors venue.OrderStatus as a string to avoid an import cycle
	UpdatedAt time.Time
}

// Service is the Execution Lock Service contract (spec.md §4.C).
type Service interface {
	// TryAcquireSymbolLock is non-blocking: it succeeds iff nobody currently
	// holds the lock for normalized. The lock is not re-entrant: a holder
	// calling it again with the same threadID is rejected until it releases.
	TryAcquireSymbolLock(normalized, threadID string, purpose Purpose) bool
	// ReleaseSymbolLock releases only if threadID is the current holder; it
	// is idempotent otherwise.
	ReleaseSymbolLock(normalized, threadID string)

	// RegisterOrderPlacing succeeds iff no active order is already
	// registered for key, enforcing I4.
	RegisterOrderPlacing(key OrderKey, threadID string, size, price float64) bool
	// UpdateOrderStatus transitions a registered order's status. Passing a
	// terminal status (FILLED/CANCELLED/FAILED/EXPIRED) frees the slot.
	UpdateOrderStatus(key OrderKey, status string, orderID string, fillPrice float64)
	// HasActiveOrder is an O(1) query used by the zombie sweep and recovery
	// machine.
	HasActiveOrder(key OrderKey) bool

	// GlobalLockHolder is a diagnostics-only label (Design Notes §9): the
	// source's "global lock" never serialized execution, and this method
	// preserves that — it is never consulted for mutual exclusion.
	GlobalLockHolder() string
}
