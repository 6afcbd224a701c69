// Package fusion selects fresh samples across redundant upstream
// sources and reduces them to one value (spec §4.4): GetTemp takes
// the median of whichever adapters returned a sample no older than
// maxAge; GetOutside and GetForecast wrap that with the degraded-path
// substitutions the pipeline needs when every source is down.
package fusion

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/kimmoahola/ilp-commander/internal/decimalkit"
	"github.com/kimmoahola/ilp-commander/internal/model"
	"github.com/kimmoahola/ilp-commander/internal/sources"
)

// GetTemp calls every adapter concurrently (they are independent
// network calls feeding one fused value; the pipeline's stage
// ordering guarantee in spec §5 is about stage order, not
// adapter-within-a-stage order — see SPEC_FULL.md §5.1), drops
// samples farther from now than maxAge, and returns the median of the
// survivors.
func GetTemp(ctx context.Context, adapters []sources.TempFunc, now time.Time, maxAge time.Duration) (*decimal.Decimal, *time.Time) {
	if len(adapters) == 0 {
		return nil, nil
	}

	results := make([]struct {
		value *decimal.Decimal
		ts    *time.Time
	}, len(adapters))

	g, gctx := errgroup.WithContext(ctx)
	for i, adapter := range adapters {
		i, adapter := i, adapter
		g.Go(func() error {
			v, ts := adapter(gctx)
			results[i].value = v
			results[i].ts = ts
			return nil
		})
	}
	_ = g.Wait()

	var survivors []decimalkit.TimedValue
	for _, r := range results {
		if r.value == nil || r.ts == nil {
			continue
		}
		age := now.Sub(*r.ts)
		if age < 0 {
			age = -age
		}
		if age > maxAge {
			continue
		}
		survivors = append(survivors, decimalkit.TimedValue{Value: *r.value, At: *r.ts})
	}

	return decimalkit.Median(survivors)
}

// AlignAndMedianForecasts implements the "forecast-of-forecasts"
// branch of median (spec §4.1): sequences starting at different
// instants are first aligned to a common head by dropping each
// sequence's leading samples that fall before the latest of all the
// sequences' first timestamps, then the result is built elementwise
// by taking the median of each aligned index across sequences.
func AlignAndMedianForecasts(forecasts []*model.Forecast, resultTS time.Time) *model.Forecast {
	var nonEmpty []*model.Forecast
	for _, f := range forecasts {
		if f != nil && len(f.Temps) > 0 {
			nonEmpty = append(nonEmpty, f)
		}
	}
	if len(nonEmpty) == 0 {
		return nil
	}
	if len(nonEmpty) == 1 {
		return &model.Forecast{Temps: nonEmpty[0].Temps, TS: resultTS}
	}

	latestHead := nonEmpty[0].Temps[0].TS
	for _, f := range nonEmpty[1:] {
		if f.Temps[0].TS.After(latestHead) {
			latestHead = f.Temps[0].TS
		}
	}

	aligned := make([][]model.Sample, len(nonEmpty))
	minLen := -1
	for i, f := range nonEmpty {
		start := 0
		for start < len(f.Temps) && f.Temps[start].TS.Before(latestHead) {
			start++
		}
		aligned[i] = f.Temps[start:]
		if minLen == -1 || len(aligned[i]) < minLen {
			minLen = len(aligned[i])
		}
	}
	if minLen <= 0 {
		return nil
	}

	merged := &model.Forecast{TS: resultTS}
	for idx := 0; idx < minLen; idx++ {
		var timed []decimalkit.TimedValue
		for _, seq := range aligned {
			timed = append(timed, decimalkit.TimedValue{Value: seq[idx].Temp, At: seq[idx].TS})
		}
		v, ts := decimalkit.Median(timed)
		if v == nil || ts == nil {
			continue
		}
		merged.Temps = append(merged.Temps, model.Sample{Temp: *v, TS: *ts})
	}
	return merged
}

// FallbackOutsideTemp is used when no outside reading and no forecast
// mean are available at all (spec §4.4).
var FallbackOutsideTemp = decimal.NewFromInt(-10)

// OutsideResult is what GetOutside reports to the pipeline's trace.
type OutsideResult struct {
	Value        decimal.Decimal
	ValidOutside bool
	TraceLine    string
}

// GetOutside fuses the configured outside-temperature adapters, and
// when none report a fresh value, substitutes the mean of the first
// 24 forecast hours, or finally a fixed fallback, flagging
// ValidOutside=false in both substitution cases (spec §4.4).
func GetOutside(ctx context.Context, adapters []sources.TempFunc, forecast *model.Forecast, now time.Time, maxAge time.Duration) OutsideResult {
	if v, ts := GetTemp(ctx, adapters, now, maxAge); v != nil {
		return OutsideResult{
			Value:        *v,
			ValidOutside: true,
			TraceLine:    "outside temp from live sensors, ts=" + ts.Format(time.RFC3339),
		}
	}

	if forecast != nil {
		if m := forecast.MeanFirstHours(24); m != nil {
			return OutsideResult{
				Value:        *m,
				ValidOutside: false,
				TraceLine:    "outside temp unavailable, substituted forecast mean",
			}
		}
	}

	return OutsideResult{
		Value:        FallbackOutsideTemp,
		ValidOutside: false,
		TraceLine:    "outside temp and forecast both unavailable, using fixed fallback",
	}
}

// ForecastResult is what GetForecast reports to the pipeline's trace.
type ForecastResult struct {
	Forecast  *model.Forecast
	TraceLine string
}

// GetForecast fuses the FMI and Yr forecast adapters by reusing the
// list-of-sequences branch of Median via AlignAndMedianForecasts
// (spec §4.4).
func GetForecast(ctx context.Context, fmi, yr sources.ForecastFunc, now time.Time) ForecastResult {
	var forecasts []*model.Forecast
	var have []string

	if fmi != nil {
		if f, _ := fmi(ctx); f != nil {
			forecasts = append(forecasts, f)
			have = append(have, "fmi")
		}
	}
	if yr != nil {
		if f, _ := yr(ctx); f != nil {
			forecasts = append(forecasts, f)
			have = append(have, "yr")
		}
	}

	merged := AlignAndMedianForecasts(forecasts, now)
	if merged == nil {
		return ForecastResult{TraceLine: "no forecast sources available"}
	}

	line := "forecast fused from:"
	for _, h := range have {
		line += " " + h
	}
	return ForecastResult{Forecast: merged, TraceLine: line}
}
