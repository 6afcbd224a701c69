package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kimmoahola/ilp-commander/internal/cache"
	"github.com/kimmoahola/ilp-commander/internal/model"
)

// cachedTemp is the value type stored for a cached TempFunc: Caching
// needs the sample's own timestamp alongside its value, since the
// cache's ok/failed deadlines are computed from content time, not
// fetch time (spec §4.2).
type cachedTemp struct {
	Value decimal.Decimal
	TS    time.Time
}

// CacheTemp wraps a TempFunc so that repeated calls within the named
// cache policy's OK window are served from c without re-fetching, and
// a fetch failure falls back to the last good reading until the
// longer failed-window also expires (spec §4.2). name must be one of
// the keys in cache.DefaultPolicies.
func CacheTemp(c *cache.Cache, name string, fn TempFunc) TempFunc {
	return func(ctx context.Context) (*decimal.Decimal, *time.Time) {
		now := time.Now().UTC()
		result, ok := cache.Caching(c, name, now, func() (cachedTemp, time.Time, error) {
			v, ts := fn(ctx)
			if v == nil || ts == nil {
				return cachedTemp{}, time.Time{}, fmt.Errorf("%s: unavailable", name)
			}
			return cachedTemp{Value: *v, TS: *ts}, *ts, nil
		})
		if !ok {
			return nil, nil
		}
		v := result.Value
		ts := result.TS
		return &v, &ts
	}
}

// CacheForecast is CacheTemp's counterpart for ForecastFunc.
func CacheForecast(c *cache.Cache, name string, fn ForecastFunc) ForecastFunc {
	return func(ctx context.Context) (*model.Forecast, *time.Time) {
		now := time.Now().UTC()
		result, ok := cache.Caching(c, name, now, func() (*model.Forecast, time.Time, error) {
			f, ts := fn(ctx)
			if f == nil || ts == nil {
				return nil, time.Time{}, fmt.Errorf("%s: unavailable", name)
			}
			return f, *ts, nil
		})
		if !ok {
			return nil, nil
		}
		return result, &result.TS
	}
}
