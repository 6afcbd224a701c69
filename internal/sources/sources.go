// Package sources implements the upstream temperature and forecast
// adapters (spec §4.3): outside-temp API, inside-temp API, FMI
// observation/forecast, OpenWeatherMap, Yr, SmartThings, and the
// dew-point service. Every adapter has the narrow signature
// TempFunc/ForecastFunc below and must never return an error to its
// caller — HTTP failures, network errors and malformed payloads all
// collapse to a nil result, exactly as the teacher's weather-service
// controllers (internal/controllers/pwsweather, aerisweather) treat a
// failed upstream call as "skip this cycle", never as fatal.
package sources

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"

	"github.com/kimmoahola/ilp-commander/internal/applog"
	"github.com/kimmoahola/ilp-commander/internal/model"
)

// TempFunc fetches a single temperature sample.
type TempFunc func(ctx context.Context) (*decimal.Decimal, *time.Time)

// ForecastFunc fetches an hourly forecast series.
type ForecastFunc func(ctx context.Context) (*model.Forecast, *time.Time)

// RetryPolicy is the fixed retry/backoff shape from spec §4.3: a
// constant backoff interval, retried at most maxRetries additional
// times (so up to maxRetries+1 attempts total).
type RetryPolicy struct {
	Interval   time.Duration
	MaxRetries uint64
}

// NetworkRetry is the "transient network/HTTP" policy: 3 tries, 10s apart.
var NetworkRetry = RetryPolicy{Interval: 10 * time.Second, MaxRetries: 2}

// withRetry runs op under the given retry policy via
// github.com/cenkalti/backoff/v4, logging and swallowing any error
// once retries are exhausted so adapters keep their "never raise"
// contract.
func withRetry[T any](ctx context.Context, name string, policy RetryPolicy, op func() (T, error)) (T, bool) {
	var result T
	var lastErr error

	bo := backoff.WithMaxRetries(backoff.NewConstantBackOff(policy.Interval), policy.MaxRetries)
	bo = backoff.WithContext(bo, ctx)

	err := backoff.Retry(func() error {
		v, err := op()
		if err != nil {
			lastErr = err
			return err
		}
		result = v
		return nil
	}, bo)

	if err != nil {
		applog.Warnf("%s: giving up after retries: %v", name, lastErr)
		var zero T
		return zero, false
	}
	return result, true
}
