// Package thermal implements the coast model (spec §4.5): a reverse
// simulation from the safety floor that yields the inside temperature
// the controller should target right now, and a forward simulation
// that estimates how many hours remain before the interior would coast
// down to the floor. Ported from the exact arithmetic in
// original_source/states/auto_pipeline_pipes/get_target_inside_temperature.py
// (the distilled spec's pseudocode elides which forecast endpoint the
// reverse walk starts from; the original resolves that ambiguity).
package thermal

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/kimmoahola/ilp-commander/internal/decimalkit"
	"github.com/kimmoahola/ilp-commander/internal/model"
)

var (
	two        = decimal.NewFromInt(2)
	ten        = decimal.NewFromInt(10)
	threshold  = decimal.NewFromInt(-17)
	oneHour    = decimal.NewFromInt(1)
)

// Coefficients are the two thermal constants from configuration
// (spec §4.5, §6 COOLING_RATE_PER_HOUR_PER_TEMPERATURE_DIFF /
// COOLING_TIME_BUFFER).
type Coefficients struct {
	CoolingRatePerHourPerDiff decimal.Decimal
	// BufferHours resolves the coast buffer, either a constant or the
	// result of the ≤3 fixed-point iterations against the forecast
	// mean (spec §4.5 "resolve by three fixed-point iterations").
	BufferHours func(forecastMeanOrOutside decimal.Decimal, forecast *model.Forecast) decimal.Decimal
}

// ConstantBufferHours builds a Coefficients.BufferHours that always
// returns the same constant, for the non-function configuration case.
func ConstantBufferHours(hours decimal.Decimal) func(decimal.Decimal, *model.Forecast) decimal.Decimal {
	return func(decimal.Decimal, *model.Forecast) decimal.Decimal {
		return hours
	}
}

// QuadraticBufferHours builds a Coefficients.BufferHours implementing
// f(t) = max(a*t^2 + b*t + c, 10), resolved by three fixed-point
// iterations against the forecast mean over the current buffer-hours
// guess (spec §4.5; original's cooling_time_buffer_resolved).
func QuadraticBufferHours(a, b, c decimal.Decimal) func(decimal.Decimal, *model.Forecast) decimal.Decimal {
	return func(outsideNow decimal.Decimal, forecast *model.Forecast) decimal.Decimal {
		buffer := decimal.NewFromInt(20)
		for i := 0; i < 3; i++ {
			t := outsideNow
			if forecast != nil {
				if m := forecast.MeanFirstHours(bufferHoursToInt(buffer)); m != nil {
					t = *m
				}
			}
			f := a.Mul(t).Mul(t).Add(b.Mul(t)).Add(c)
			buffer = decimalkit.Max(f, ten)
		}
		return buffer
	}
}

func bufferHoursToInt(d decimal.Decimal) int {
	f, _ := d.Float64()
	if f < 1 {
		return 1
	}
	return int(f)
}

// TargetInsideTemperature is the reverse-simulation: starting buffer-
// hours in the future at the safety floor, walk backward to "now"
// applying the coast model, clamping at the floor throughout, so the
// result is the inside temperature needed right now to guarantee the
// floor holds for the next buffer-hours even if heating stopped.
//
// outsideNow is (outside temperature, instant) "now". forecast may be
// nil. Returns a value >= allowedFloor and >= minimumInsideTemp,
// satisfying invariant I2.
func TargetInsideTemperature(
	coef Coefficients,
	outsideNow model.Sample,
	allowedFloor decimal.Decimal,
	minimumInsideTemp decimal.Decimal,
	forecast *model.Forecast,
) decimal.Decimal {
	validForecast := []model.Sample{outsideNow}
	if forecast != nil {
		for _, s := range forecast.Temps {
			if s.TS.After(validForecast[len(validForecast)-1].TS) {
				validForecast = append(validForecast, s)
			}
		}
	}

	bufferHours := coef.BufferHours(outsideNow.Temp, forecast)

	tailMean := meanSample(validForecast)

	T := allowedFloor
	bufferDuration := time.Duration(bufferHours.InexactFloat64() * float64(time.Hour))
	t := outsideNow.TS.Add(bufferDuration)

	lastForecastTS := validForecast[len(validForecast)-1].TS

	for t.After(lastForecastTS) {
		hoursToEnd := decimal.NewFromFloat(t.Sub(lastForecastTS).Hours())
		step := decimalkit.Min(oneHour, hoursToEnd)

		diff := tailMean.Sub(T)
		drop := coef.CoolingRatePerHourPerDiff.Mul(diff).Mul(step)
		if tailMean.LessThanOrEqual(threshold) {
			drop = drop.Mul(two)
		}
		T = T.Sub(drop)
		T = decimalkit.ClampLo(T, allowedFloor)

		t = t.Add(time.Duration(-step.InexactFloat64() * float64(time.Hour)))
	}

	for i := len(validForecast) - 1; i >= 0; i-- {
		fc := validForecast[i]
		if fc.TS.After(t) {
			continue
		}
		hours := decimal.NewFromFloat(t.Sub(fc.TS).Hours())

		diff := fc.Temp.Sub(T)
		drop := coef.CoolingRatePerHourPerDiff.Mul(diff).Mul(hours)
		if fc.Temp.LessThanOrEqual(threshold) {
			drop = drop.Mul(two)
		}
		T = T.Sub(drop)
		T = decimalkit.ClampLo(T, allowedFloor)

		t = fc.TS
	}

	return decimalkit.Max(T, minimumInsideTemp)
}

// Infinite marks a GetBuffer result that will never reach the floor
// within the forecast horizon (spec §4.5's "inf" marker).
const Infinite = -1

// GetBuffer forward-simulates the coast from the current inside/
// outside readings and returns the number of whole hours until inside
// would reach allowedFloor, or Infinite if it would not (spec §4.5).
// When the forecast is exhausted before the floor is reached, the
// walk continues at 1h steps using the forecast tail's mean outside
// temperature, unless that mean is at or above the floor, in which
// case inside will never coast down to it (per spec §9's "buffer is
// really zero" ambiguity note, resolved as: tail mean >= floor ⇒ inf,
// otherwise continue stepping at 1h resolution until the floor is
// crossed).
func GetBuffer(
	coef Coefficients,
	insideNow decimal.Decimal,
	outsideNow model.Sample,
	allowedFloor decimal.Decimal,
	forecast *model.Forecast,
) int {
	validForecast := []model.Sample{outsideNow}
	if forecast != nil {
		for _, s := range forecast.Temps {
			if s.TS.After(validForecast[len(validForecast)-1].TS) {
				validForecast = append(validForecast, s)
			}
		}
	}

	inside := insideNow
	elapsedHours := decimal.Zero

	if inside.LessThanOrEqual(allowedFloor) {
		return 0
	}

	for i := 0; i < len(validForecast)-1; i++ {
		cur := validForecast[i]
		next := validForecast[i+1]
		stepHours := decimal.NewFromFloat(next.TS.Sub(cur.TS).Hours())
		if stepHours.LessThanOrEqual(decimal.Zero) {
			continue
		}

		reached, hoursUsed := stepToFloor(coef, inside, cur.Temp, allowedFloor, stepHours)
		elapsedHours = elapsedHours.Add(hoursUsed)
		if reached {
			f, _ := elapsedHours.Round(0).Float64()
			return int(f)
		}
		inside = simulateStep(coef, inside, cur.Temp, stepHours)
	}

	tailMean := meanSample(validForecast)

	if tailMean.GreaterThanOrEqual(allowedFloor) {
		return Infinite
	}

	for step := 0; step < 24*14; step++ {
		reached, hoursUsed := stepToFloor(coef, inside, tailMean, allowedFloor, oneHour)
		elapsedHours = elapsedHours.Add(hoursUsed)
		if reached {
			f, _ := elapsedHours.Round(0).Float64()
			return int(f)
		}
		inside = simulateStep(coef, inside, tailMean, oneHour)
	}
	return Infinite
}

// stepToFloor reports whether, stepping inside toward outside at the
// configured cooling rate over up to stepHours, the floor is crossed,
// and if so how many (possibly fractional) hours it took.
func stepToFloor(coef Coefficients, inside, outside, floor, stepHours decimal.Decimal) (bool, decimal.Decimal) {
	diff := inside.Sub(outside)
	if diff.LessThanOrEqual(decimal.Zero) {
		// Inside is already at or below outside; it will not cool
		// further toward the floor via this step.
		return false, stepHours
	}
	dropPerHour := coef.CoolingRatePerHourPerDiff.Mul(diff)
	totalDrop := dropPerHour.Mul(stepHours)
	distanceToFloor := inside.Sub(floor)
	if totalDrop.LessThan(distanceToFloor) || totalDrop.Equal(distanceToFloor) {
		return false, stepHours
	}
	if dropPerHour.LessThanOrEqual(decimal.Zero) {
		return false, stepHours
	}
	hoursToFloor := distanceToFloor.Div(dropPerHour)
	return true, hoursToFloor
}

func simulateStep(coef Coefficients, inside, outside, stepHours decimal.Decimal) decimal.Decimal {
	diff := inside.Sub(outside)
	if diff.LessThanOrEqual(decimal.Zero) {
		return inside
	}
	drop := coef.CoolingRatePerHourPerDiff.Mul(diff).Mul(stepHours)
	return inside.Sub(drop)
}

func meanSample(samples []model.Sample) decimal.Decimal {
	if len(samples) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, s := range samples {
		sum = sum.Add(s.Temp)
	}
	return sum.Div(decimal.NewFromInt(int64(len(samples))))
}
