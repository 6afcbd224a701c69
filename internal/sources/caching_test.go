package sources

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimmoahola/ilp-commander/internal/cache"
)

func TestCacheTempServesStaleValueOnFetchFailure(t *testing.T) {
	c := cache.New(map[string]cache.Policy{"x": {OKAfter: -time.Millisecond, FailedAfter: time.Hour}})

	calls := 0
	good := true
	fn := TempFunc(func(ctx context.Context) (*decimal.Decimal, *time.Time) {
		calls++
		if !good {
			return nil, nil
		}
		v := decimal.NewFromInt(5)
		ts := time.Now().UTC()
		return &v, &ts
	})

	cached := CacheTemp(c, "x", fn)

	v, ts := cached(context.Background())
	require.NotNil(t, v, "expected the first call to fetch a value")
	require.NotNil(t, ts)
	assert.True(t, v.Equal(decimal.NewFromInt(5)), "expected the first call to fetch 5, got v=%v", v)

	good = false
	v2, ts2 := cached(context.Background())
	require.NotNil(t, v2, "expected a fetch failure to fall back to the cached value")
	require.NotNil(t, ts2)
	assert.True(t, v2.Equal(decimal.NewFromInt(5)), "expected a fetch failure to fall back to the cached value, got v=%v", v2)
	assert.Equal(t, 2, calls, "expected the underlying adapter to be called twice (cache expired immediately in this test)")
}

func TestCacheTempReturnsNilWithNoFallback(t *testing.T) {
	c := cache.New(map[string]cache.Policy{"x": {OKAfter: time.Minute, FailedAfter: time.Minute}})

	fn := TempFunc(func(ctx context.Context) (*decimal.Decimal, *time.Time) {
		return nil, nil
	})

	cached := CacheTemp(c, "x", fn)
	v, ts := cached(context.Background())
	assert.Nil(t, v, "expected nil when there is nothing to fetch or fall back to")
	assert.Nil(t, ts, "expected nil when there is nothing to fetch or fall back to")
}
