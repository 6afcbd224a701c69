package thermal

import (
	"math"

	"github.com/shopspring/decimal"
)

// Magnus approximation constants (spec §4.5).
const (
	magnusA = 243.04
	magnusB = 17.625
)

// EstimateTemperatureWithRH estimates, via the Magnus approximation,
// the air temperature at which the given dew point would be observed
// assuming relative humidity rh (0..1). Used to clamp the target
// inside temperature up so that walls/windows don't reach the dew
// point and condense (spec §4.5).
func EstimateTemperatureWithRH(dewPoint decimal.Decimal, rh float64) decimal.Decimal {
	dp, _ := dewPoint.Float64()
	gamma := magnusB * dp / (magnusA + dp)
	k := gamma - math.Log(rh)
	t := k * magnusA / (magnusB - k)
	return decimal.NewFromFloat(t)
}

// DefaultDewPointRH is the relative humidity assumed when adjusting
// the target for condensation risk (spec §4.5's `rh=0.8` default).
const DefaultDewPointRH = 0.8

// AdjustTargetForDewPoint clamps target up to the dew-point-derived
// temperature when that is higher, so the interior never coasts down
// to a level where condensation risk rises (spec §4.5 "Optional
// dew-point correction"). Applies independently of the -17°C power
// de-rating in TargetInsideTemperature, per spec §9's resolved
// ambiguity ("apply both independently").
func AdjustTargetForDewPoint(target decimal.Decimal, dewPoint *decimal.Decimal) decimal.Decimal {
	if dewPoint == nil {
		return target
	}
	floor := EstimateTemperatureWithRH(*dewPoint, DefaultDewPointRH)
	if floor.GreaterThan(target) {
		return floor
	}
	return target
}
