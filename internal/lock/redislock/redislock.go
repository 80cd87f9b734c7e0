// Package redislock is the optional distributed Execution Lock Service
// backend, selected when config sets redis.enabled, connecting to
// redis.addr (the in-memory memlock.Service remains the null-object
// default). Grounded on
// data/cache/cache.go's NewAuto() env-gated *redis.Client pattern.
package redislock

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/sawpanic/fundingkeeper/internal/lock"
)

const callTimeout = 500 * time.Millisecond

// releaseScript only deletes the key if the stored value still matches the
// caller's threadID, so ReleaseSymbolLock stays idempotent for non-holders
// (mirrors the semantics required by spec.md §4.C).
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Service backs lock.Service with Redis SETNX for the symbol lock and one
// SETNX string key per order slot for the active-order registry, so
// multiple keeper instances can share a
// single source of truth for I4 across processes.
type Service struct {
	r          *redis.Client
	lockTTL    time.Duration
	globalKey  string
}

func New(addr string) *Service {
	return &Service{
		r:         redis.NewClient(&redis.Options{Addr: addr}),
		lockTTL:   5 * time.Minute, // safety net against a crashed holder never releasing
		globalKey: "fundingkeeper:global-lock-holder",
	}
}

func symbolKey(normalized string) string { return "fundingkeeper:symlock:" + normalized }
func orderKey(key lock.OrderKey) string {
	return "fundingkeeper:order:" + key.Venue + "|" + key.Normalized + "|" + key.Side
}

func (s *Service) TryAcquireSymbolLock(normalized, threadID string, purpose lock.Purpose) bool {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	ok, err := s.r.SetNX(ctx, symbolKey(normalized), threadID, s.lockTTL).Result()
	if err != nil {
		return false
	}
	if ok && purpose == lock.PurposeClosePair {
		s.r.Set(ctx, s.globalKey, normalized+":"+threadID, s.lockTTL)
	}
	return ok
}

func (s *Service) ReleaseSymbolLock(normalized, threadID string) {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	releaseScript.Run(ctx, s.r, []string{symbolKey(normalized)}, threadID)
}

func (s *Service) RegisterOrderPlacing(key lock.OrderKey, threadID string, size, price float64) bool {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	ok, err := s.r.SetNX(ctx, orderKey(key), "SUBMITTED", s.lockTTL).Result()
	return err == nil && ok
}

func (s *Service) UpdateOrderStatus(key lock.OrderKey, status string, orderID string, fillPrice float64) {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	if isTerminal(status) {
		s.r.Del(ctx, orderKey(key))
		return
	}
	s.r.Set(ctx, orderKey(key), status, s.lockTTL)
}

func (s *Service) HasActiveOrder(key lock.OrderKey) bool {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	n, err := s.r.Exists(ctx, orderKey(key)).Result()
	return err == nil && n > 0
}

func (s *Service) GlobalLockHolder() string {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	v, err := s.r.Get(ctx, s.globalKey).Result()
	if err != nil {
		return ""
	}
	return v
}

func isTerminal(status string) bool {
	switch status {
	case "FILLED", "CANCELLED", "FAILED", "EXPIRED":
		return true
	default:
		return false
	}
}
