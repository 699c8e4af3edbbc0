// Package budget implements per-product and per-session ceilings on
// external calls (§4.10 Budget Tracker), backed by Redis INCR/EXPIRE so
// ceilings hold across the worker cluster described in §5, not just
// per-process.
package budget

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shelfmark/productpipeline/internal/errs"
	"github.com/shelfmark/productpipeline/internal/httpapi"
)

// Defaults per §4.10.
const (
	MaxURLsPerProduct       = 5
	MaxSearchesPerProduct   = 3
	MaxEnrichmentTime       = 120 * time.Second
	SessionMaxSearches      = 6
	SessionMaxSources       = 8
	SessionMaxTime          = 180 * time.Second
)

// Counter names tracked per product key.
const (
	CounterURLs     = "urls"
	CounterSearches = "searches"
)

// Ceilings bundles the tunable limits a Tracker enforces, defaulting to the
// §4.10 constants.
type Ceilings struct {
	MaxURLsPerProduct     int
	MaxSearchesPerProduct int
	MaxEnrichmentTime     time.Duration
	SessionMaxSearches    int
	SessionMaxSources     int
	SessionMaxTime        time.Duration
}

// DefaultCeilings returns the spec's hardcoded ceilings (§4.10).
func DefaultCeilings() Ceilings {
	return Ceilings{
		MaxURLsPerProduct:     MaxURLsPerProduct,
		MaxSearchesPerProduct: MaxSearchesPerProduct,
		MaxEnrichmentTime:     MaxEnrichmentTime,
		SessionMaxSearches:    SessionMaxSearches,
		SessionMaxSources:     SessionMaxSources,
		SessionMaxTime:        SessionMaxTime,
	}
}

// redisClient is the slice of go-redis's Cmdable this package needs.
// *redis.Client satisfies it directly; tests use a fake built from the same
// redis.New*Cmd constructors the real client returns.
type redisClient interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Decr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Tracker enforces per-product-key counters shared across a worker cluster
// via Redis. Keys expire so an abandoned product/session doesn't leak
// Redis memory forever.
type Tracker struct {
	rdb      redisClient
	ceilings Ceilings
	ttl      time.Duration
}

// New builds a Tracker. ttl bounds how long a product/session's counters
// survive with no activity (a safety net, not a budget concept itself).
func New(rdb redisClient, ceilings Ceilings, ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = 1 * time.Hour
	}
	return &Tracker{rdb: rdb, ceilings: ceilings, ttl: ttl}
}

func counterKey(productKey, counter string) string {
	return fmt.Sprintf("budget:product:%s:%s", productKey, counter)
}

func startKey(productKey string) string {
	return fmt.Sprintf("budget:product:%s:started_at", productKey)
}

func sessionCounterKey(sessionKey, counter string) string {
	return fmt.Sprintf("budget:session:%s:%s", sessionKey, counter)
}

// CanContinue checks a per-product counter against its ceiling before an
// external call is made (§4.10 "Before each external call, the
// orchestrator calls can_continue(key)"). It increments the counter as
// part of the check (callers that back out must call Refund).
func (t *Tracker) CanContinue(ctx context.Context, productKey, counter string) (bool, string, error) {
	limit, err := t.limitFor(counter)
	if err != nil {
		return false, "", err
	}
	if ok, reason, err := t.checkElapsed(ctx, productKey); !ok || err != nil {
		return ok, reason, err
	}

	key := counterKey(productKey, counter)
	n, err := t.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, "", fmt.Errorf("incrementing budget counter %s: %w", key, err)
	}
	if n == 1 {
		t.rdb.Expire(ctx, key, t.ttl)
	}
	if int(n) > limit {
		httpapi.RecordBudgetExhausted("product")
		return false, fmt.Sprintf("%s ceiling of %d exceeded for product", counter, limit), nil
	}
	return true, "", nil
}

func (t *Tracker) limitFor(counter string) (int, error) {
	switch counter {
	case CounterURLs:
		return t.ceilings.MaxURLsPerProduct, nil
	case CounterSearches:
		return t.ceilings.MaxSearchesPerProduct, nil
	default:
		return 0, fmt.Errorf("unknown budget counter %q", counter)
	}
}

func (t *Tracker) checkElapsed(ctx context.Context, productKey string) (bool, string, error) {
	key := startKey(productKey)
	set, err := t.rdb.SetNX(ctx, key, time.Now().Unix(), t.ceilings.MaxEnrichmentTime+t.ttl).Result()
	if err != nil {
		return false, "", fmt.Errorf("reading budget start time %s: %w", key, err)
	}
	if set {
		return true, "", nil
	}
	startUnix, err := t.rdb.Get(ctx, key).Int64()
	if err != nil {
		return false, "", fmt.Errorf("reading budget start time %s: %w", key, err)
	}
	elapsed := time.Since(time.Unix(startUnix, 0))
	if elapsed > t.ceilings.MaxEnrichmentTime {
		httpapi.RecordBudgetExhausted("product")
		return false, fmt.Sprintf("enrichment time ceiling of %s exceeded for product", t.ceilings.MaxEnrichmentTime), nil
	}
	return true, "", nil
}

// Refund undoes one increment of a per-product counter — used when a
// members-only page is detected after the search that found it already
// counted against budget (§4.10, §4.11).
func (t *Tracker) Refund(ctx context.Context, productKey, counter string) error {
	key := counterKey(productKey, counter)
	n, err := t.rdb.Decr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("refunding budget counter %s: %w", key, err)
	}
	if n < 0 {
		// Never let a refund push a counter negative; clamp back to zero.
		t.rdb.Set(ctx, key, 0, t.ttl)
	}
	return nil
}

// Reset clears every per-product counter and the elapsed-time anchor,
// used when a product key is reused across unrelated runs.
func (t *Tracker) Reset(ctx context.Context, productKey string) error {
	keys := []string{
		counterKey(productKey, CounterURLs),
		counterKey(productKey, CounterSearches),
		startKey(productKey),
	}
	return t.rdb.Del(ctx, keys...).Err()
}

// CanContinueSession checks a per-session counter ("searches" or "sources")
// against the V3 session defaults (§4.10). Elapsed session time is not
// checked: SessionMaxTime only extends the expiry of the session counter
// keys.
func (t *Tracker) CanContinueSession(ctx context.Context, sessionKey, counter string) (bool, string, error) {
	var limit int
	switch counter {
	case "searches":
		limit = t.ceilings.SessionMaxSearches
	case "sources":
		limit = t.ceilings.SessionMaxSources
	default:
		return false, "", fmt.Errorf("unknown session budget counter %q", counter)
	}
	key := sessionCounterKey(sessionKey, counter)
	n, err := t.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, "", fmt.Errorf("incrementing session budget counter %s: %w", key, err)
	}
	if n == 1 {
		t.rdb.Expire(ctx, key, t.ceilings.SessionMaxTime+t.ttl)
	}
	if int(n) > limit {
		httpapi.RecordBudgetExhausted("session")
		return false, fmt.Sprintf("session %s ceiling of %d exceeded", counter, limit), nil
	}
	return true, "", nil
}

// ErrExceeded is a convenience wrapper exposing errs.ErrBudgetExceeded for
// callers that prefer an error return over the (ok, reason) pair.
func ErrExceeded(reason string) error {
	return fmt.Errorf("%s: %w", reason, errs.ErrBudgetExceeded)
}
