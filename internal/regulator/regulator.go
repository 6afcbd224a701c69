// Package regulator implements the PID loop that turns a temperature
// error into a scalar "how much heat is wanted" output (spec §4.6):
// proportional plus an integral gated by the error slope plus a
// derivative term, with externally supplied per-tick clamps.
package regulator

import (
	"time"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"

	"github.com/kimmoahola/ilp-commander/internal/model"
)

// Defaults are the gains used when configuration does not override
// them (spec §4.6).
var (
	DefaultKP = decimal.NewFromInt(2)
	DefaultKI = decimal.NewFromInt(2).Div(decimal.NewFromInt(3600))
	DefaultKD = decimal.NewFromInt(3600).Mul(decimal.NewFromInt(15))
)

// Command coverage bounds the integral clamp is built around (spec
// §4.6, the "command coverage" bounds in 0..1 units).
var (
	Lowest  = decimal.NewFromFloat(-0.01)
	Highest = decimal.NewFromFloat(1.01)
)

// MaxSlope is the clamp applied to the estimated error slope, in
// degrees per hour.
var MaxSlope = decimal.NewFromFloat(0.5)

// errorWindow bounds how far back past_errors reaches for the slope
// estimate (spec §3, "up to 2h wide").
const errorWindow = 2 * time.Hour

// Gains are the three PID coefficients.
type Gains struct {
	P decimal.Decimal
	I decimal.Decimal
	D decimal.Decimal
}

// Limits are the per-tick integral clamp bounds the pipeline derives
// from the command-coverage bounds and the D gain (spec §4.6:
// i_low = LOWEST - kd*max_slope, i_high = HIGHEST + kd*max_slope).
type Limits struct {
	Low  decimal.Decimal
	High decimal.Decimal
}

// LimitsFor derives the integral clamp for the given D gain.
func LimitsFor(kd decimal.Decimal) Limits {
	spread := kd.Mul(MaxSlope)
	return Limits{
		Low:  Lowest.Sub(spread),
		High: Highest.Add(spread),
	}
}

// Result is what Update reports for the pipeline's trace.
type Result struct {
	Output     decimal.Decimal
	P, I, D    decimal.Decimal
	Error      decimal.Decimal
	ErrorRaw   decimal.Decimal
	SlopePerHr decimal.Decimal
}

// Update advances the controller state by one tick and returns the
// combined output (spec §4.6). target and inside are both required;
// the pipeline calls Update only when an inside reading is available
// and otherwise leaves the regulator output at zero.
func Update(state *model.ControllerState, gains Gains, limits Limits, hysteresisBand decimal.Decimal, target, inside decimal.Decimal, now time.Time) Result {
	errRaw := target.Sub(inside)

	e := errRaw
	if hysteresisBand.GreaterThan(decimal.Zero) {
		negPart := decimal.Min(e, decimal.Zero)
		clamped := decimal.Max(negPart, hysteresisBand.Neg())
		clamped = decimal.Min(clamped, decimal.Zero)
		e = e.Sub(clamped)
	}

	state.PastErrors = append(state.PastErrors, model.ErrorSample{At: now, Error: errRaw})
	state.EvictOlderThan(now, errorWindow)

	slope := slopePerHour(state.PastErrors)
	slope = decimal.Max(slope, MaxSlope.Neg())
	slope = decimal.Min(slope, MaxSlope)

	p := gains.P.Mul(e)

	dt := decimal.Zero
	if state.LastUpdateTime != nil {
		dt = decimal.NewFromFloat(now.Sub(*state.LastUpdateTime).Seconds())
	}

	integrateUp := e.GreaterThan(decimal.Zero) && slope.GreaterThanOrEqual(decimal.NewFromFloat(-0.05))
	integrateDown := e.LessThan(decimal.Zero) && slope.LessThanOrEqual(decimal.Zero)
	if (integrateUp || integrateDown) && dt.GreaterThan(decimal.Zero) {
		delta := gains.I.Mul(e).Mul(dt)
		state.Integral = state.Integral.Add(delta)
	}
	if state.Integral.LessThan(limits.Low) {
		state.Integral = limits.Low
	}
	if state.Integral.GreaterThan(limits.High) {
		state.Integral = limits.High
	}

	d := gains.D.Mul(slope)

	out := p.Add(state.Integral).Add(d)

	now2 := now
	state.LastUpdateTime = &now2

	return Result{
		Output:     out,
		P:          p,
		I:          state.Integral,
		D:          d,
		Error:      e,
		ErrorRaw:   errRaw,
		SlopePerHr: slope,
	}
}

// ResetPastErrors clears the derivative history, used when the
// operator changes the minimum inside temperature so the slope
// estimate does not spike across the discontinuity (spec §4.6).
func ResetPastErrors(state *model.ControllerState) {
	state.PastErrors = nil
}

// slopePerHour fits a least-squares line through the (time, error)
// samples and returns its slope expressed in degrees per hour, via
// the same `gonum.org/v1/gonum/stat.LinearRegression` the teacher
// uses for its own drift-slope fit (cmd/snow-calibrate/main.go).
func slopePerHour(samples []model.ErrorSample) decimal.Decimal {
	n := len(samples)
	if n < 2 {
		return decimal.Zero
	}

	t0 := samples[0].At
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i, s := range samples {
		xs[i] = s.At.Sub(t0).Hours()
		ys[i], _ = s.Error.Float64()
	}

	_, beta := stat.LinearRegression(xs, ys, nil, false)
	return decimal.NewFromFloat(beta)
}
