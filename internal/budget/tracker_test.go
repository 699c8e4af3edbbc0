package budget

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis is a minimal in-memory stand-in for redisClient, returning the
// same *redis.IntCmd/*redis.StringCmd/... types a real client would via
// go-redis's own New*Cmd constructors.
type fakeRedis struct {
	mu       sync.Mutex
	counters map[string]int64
	strings  map[string]string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{counters: map[string]int64{}, strings: map[string]string{}}
}

func (f *fakeRedis) Incr(ctx context.Context, key string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters[key]++
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(f.counters[key])
	return cmd
}

func (f *fakeRedis) Decr(ctx context.Context, key string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters[key]--
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(f.counters[key])
	return cmd
}

func (f *fakeRedis) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	cmd := redis.NewBoolCmd(ctx)
	cmd.SetVal(true)
	return cmd
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewBoolCmd(ctx)
	if _, exists := f.strings[key]; exists {
		cmd.SetVal(false)
		return cmd
	}
	f.strings[key] = toStr(value)
	cmd.SetVal(true)
	return cmd
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewStringCmd(ctx)
	if v, ok := f.strings[key]; ok {
		cmd.SetVal(v)
	} else {
		cmd.SetErr(redis.Nil)
	}
	return cmd
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.strings[key] = toStr(value)
	cmd := redis.NewStatusCmd(ctx)
	cmd.SetVal("OK")
	return cmd
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.counters[k]; ok {
			delete(f.counters, k)
			n++
		}
		if _, ok := f.strings[k]; ok {
			delete(f.strings, k)
			n++
		}
	}
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(n)
	return cmd
}

func toStr(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	default:
		return ""
	}
}

func TestCanContinue_AllowsUpToCeiling(t *testing.T) {
	tr := New(newFakeRedis(), DefaultCeilings(), time.Hour)
	ctx := context.Background()
	for i := 0; i < MaxSearchesPerProduct; i++ {
		ok, reason, err := tr.CanContinue(ctx, "glen-foo-12", CounterSearches)
		require.NoError(t, err)
		assert.True(t, ok, reason)
	}
	ok, reason, err := tr.CanContinue(ctx, "glen-foo-12", CounterSearches)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, reason, "searches ceiling")
}

func TestRefund_UndoesOneIncrement(t *testing.T) {
	tr := New(newFakeRedis(), DefaultCeilings(), time.Hour)
	ctx := context.Background()
	for i := 0; i < MaxSearchesPerProduct; i++ {
		ok, _, err := tr.CanContinue(ctx, "glen-foo-12", CounterSearches)
		require.NoError(t, err)
		require.True(t, ok)
	}
	require.NoError(t, tr.Refund(ctx, "glen-foo-12", CounterSearches))

	ok, _, err := tr.CanContinue(ctx, "glen-foo-12", CounterSearches)
	require.NoError(t, err)
	assert.True(t, ok, "refund should free up one more call")
}

func TestCanContinueSession_RespectsSessionCeiling(t *testing.T) {
	tr := New(newFakeRedis(), DefaultCeilings(), time.Hour)
	ctx := context.Background()
	for i := 0; i < SessionMaxSources; i++ {
		ok, reason, err := tr.CanContinueSession(ctx, "session-1", "sources")
		require.NoError(t, err)
		assert.True(t, ok, reason)
	}
	ok, _, err := tr.CanContinueSession(ctx, "session-1", "sources")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCanContinue_UnknownCounterErrors(t *testing.T) {
	tr := New(newFakeRedis(), DefaultCeilings(), time.Hour)
	_, _, err := tr.CanContinue(context.Background(), "glen-foo-12", "bogus")
	assert.Error(t, err)
}
