// Package decimalkit provides the fixed-precision decimal arithmetic
// used throughout the controller: half-up rounding and the sample
// median used by fusion.
package decimalkit

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Round rounds v to the given number of decimal places, half-away-from-zero
// (equivalent to half-up for the non-negative and cold-climate-negative
// temperatures this controller deals with). A nil input returns nil
// ("None-preserving").
func Round(v *decimal.Decimal, places int32) *decimal.Decimal {
	if v == nil {
		return nil
	}
	r := v.Round(places)
	return &r
}

// TimedValue pairs a decimal value with the instant it was observed.
type TimedValue struct {
	Value decimal.Decimal
	At    time.Time
}

// Median computes the median over samples, dropping nothing by value
// (callers filter for staleness/presence before calling). For an odd
// number of samples it returns the middle (value, at) pair; for an
// even number it averages the two middle values and takes the
// lower-valued sample's timestamp plus half the absolute gap between
// the two timestamps (this lies between them only when the
// lower-valued sample is also the earlier one). Empty input returns
// (nil, nil).
func Median(samples []TimedValue) (*decimal.Decimal, *time.Time) {
	if len(samples) == 0 {
		return nil, nil
	}
	sorted := make([]TimedValue, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Value.LessThan(sorted[j].Value)
	})

	n := len(sorted)
	if n%2 == 1 {
		mid := sorted[n/2]
		return &mid.Value, &mid.At
	}

	lo := sorted[n/2-1]
	hi := sorted[n/2]
	avg := lo.Value.Add(hi.Value).Div(decimal.NewFromInt(2))

	var gap time.Duration
	if hi.At.After(lo.At) {
		gap = hi.At.Sub(lo.At)
	} else {
		gap = lo.At.Sub(hi.At)
	}
	ts := lo.At.Add(gap / 2)
	return &avg, &ts
}

// Mean returns the arithmetic mean of the given decimals, or nil if empty.
func Mean(values []decimal.Decimal) *decimal.Decimal {
	if len(values) == 0 {
		return nil
	}
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(v)
	}
	m := sum.Div(decimal.NewFromInt(int64(len(values))))
	return &m
}

// ClampLo returns v if v >= lo, otherwise lo.
func ClampLo(v, lo decimal.Decimal) decimal.Decimal {
	if v.LessThan(lo) {
		return lo
	}
	return v
}

// ClampHi returns v if v <= hi, otherwise hi.
func ClampHi(v, hi decimal.Decimal) decimal.Decimal {
	if v.GreaterThan(hi) {
		return hi
	}
	return v
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	return ClampHi(ClampLo(v, lo), hi)
}

// Max returns the greater of a and b.
func Max(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// Min returns the lesser of a and b.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}
