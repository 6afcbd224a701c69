// Package selector maps the regulator's scalar output to one of the
// discrete IR commands (spec §4.7), including the degraded open-loop
// path used when no inside-temperature reading is available.
package selector

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/kimmoahola/ilp-commander/internal/command"
	"github.com/kimmoahola/ilp-commander/internal/decimalkit"
)

// candidateSetPoints is the fixed list consulted before outside-aware
// extension (spec §4.7 step 1).
var candidateSetPoints = []int{8, 10, 16, 18, 20, 22}

// Coefficients for the open-loop quadratic heuristic (spec §4.7 step 5,
// original_source temp_control_without_inside_temp).
var (
	three                     = decimal.NewFromInt(3)
	eight                     = decimal.NewFromInt(8)
	twentyFour                = decimal.NewFromInt(24)
	openLoopQuadCoefficient   = decimal.NewFromFloat(0.03)
	openLoopLinearCoefficient = decimal.NewFromFloat(0.2)
)

// Select picks a Command from the regulator output v, given the fused
// inside temperature (nil when unavailable) and outside temperature.
// validOutside reports whether outsideTemp came from a live sensor
// rather than a degraded-path substitution (spec §4.4); the open-loop
// branch needs this distinction even though a value is always present.
// target is the thermal model's computed target inside temperature.
// now and validTime support the summer open-loop branch.
func Select(v decimal.Decimal, insideTemp *decimal.Decimal, outsideTemp *decimal.Decimal, validOutside bool, target decimal.Decimal, now time.Time, validTime bool) command.Command {
	if insideTemp != nil {
		var knownOutside *decimal.Decimal
		if validOutside {
			knownOutside = outsideTemp
		}
		return selectClosedLoop(v, *insideTemp, knownOutside)
	}
	return selectOpenLoop(outsideTemp, validOutside, target, now, validTime)
}

func selectClosedLoop(v decimal.Decimal, inside decimal.Decimal, outside *decimal.Decimal) command.Command {
	points := append([]int(nil), candidateSetPoints...)
	if outside != nil && outside.LessThan(decimal.NewFromInt(15)) {
		points = append(points, 24)
	}

	var heating []int
	for _, sp := range points {
		if decimal.NewFromInt(int64(sp)).GreaterThan(inside) {
			heating = append(heating, sp)
		}
	}

	if len(heating) == 0 {
		return command.Off
	}

	if v.LessThanOrEqual(decimal.Zero) {
		return command.Off
	}

	if len(heating) == 1 {
		return command.Heat(heating[0])
	}

	n := decimal.NewFromInt(int64(len(heating)))
	step := decimal.NewFromInt(1).Div(n)

	best := -1
	for i, sp := range heating {
		r := step.Mul(decimal.NewFromInt(int64(i)))
		if v.GreaterThanOrEqual(r) {
			best = sp
		}
	}
	if best == -1 {
		return command.Heat(heating[len(heating)-1])
	}
	return command.Heat(best)
}

// selectOpenLoop is grounded on original_source's get_next_command.py
// temp_control_without_inside_temp (the distilled spec's paraphrase of
// this heuristic does not reproduce spec §8 scenario 2, so the
// original's exact arithmetic is used per spec §9's ambiguity-resolution
// rule: fall back to original_source for arithmetic the spec leaves
// ambiguous). outside is the fused/substituted outside temperature
// (always present once fusion has run, even when flagged invalid);
// validOutside tracks whether it came from a live sensor.
func selectOpenLoop(outside *decimal.Decimal, validOutside bool, target decimal.Decimal, now time.Time, validTime bool) command.Command {
	if outside == nil {
		return command.Heat(22)
	}

	isSummer := validTime && isSummerMonth(now)

	shouldHeat := (validOutside && outside.LessThan(target)) || (!validOutside && !isSummer)
	if !shouldHeat {
		return command.Off
	}

	diff := target.Sub(*outside).Abs()
	control := three.
		Add(diff.Mul(diff).Mul(openLoopQuadCoefficient)).
		Add(diff.Mul(openLoopLinearCoefficient))
	control = decimalkit.Clamp(control, eight, twentyFour)

	return floorToSetPoint(control)
}

// floorToSetPoint returns the greatest legal set point <= v, falling
// back to the lowest set point if v is below all of them (should not
// happen once control has been clamped to [8, 24]).
func floorToSetPoint(v decimal.Decimal) command.Command {
	best := command.SetPoints[0]
	for _, sp := range command.SetPoints {
		if decimal.NewFromInt(int64(sp)).LessThanOrEqual(v) {
			best = sp
		}
	}
	return command.Heat(best)
}

func isSummerMonth(t time.Time) bool {
	m := t.Month()
	return m >= time.May && m <= time.September
}
