package regulator

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/kimmoahola/ilp-commander/internal/model"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestIntegralStaysWithinLimits(t *testing.T) {
	gains := Gains{P: DefaultKP, I: DefaultKI, D: DefaultKD}
	limits := LimitsFor(gains.D)

	state := &model.ControllerState{}
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	// Drive a large positive error for many ticks; the integral must
	// never exceed limits.High regardless of how long it accumulates.
	for i := 0; i < 2000; i++ {
		now = now.Add(time.Minute)
		result := Update(state, gains, limits, decimal.Zero, d("25"), d("5"), now)
		assert.Falsef(t, result.I.LessThan(limits.Low) || result.I.GreaterThan(limits.High),
			"tick %d: integral %s outside [%s, %s]", i, result.I, limits.Low, limits.High)
	}
}

func TestIntegralClampsOnLargeNegativeError(t *testing.T) {
	gains := Gains{P: DefaultKP, I: DefaultKI, D: DefaultKD}
	limits := LimitsFor(gains.D)

	state := &model.ControllerState{}
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 2000; i++ {
		now = now.Add(time.Minute)
		result := Update(state, gains, limits, decimal.Zero, d("5"), d("25"), now)
		assert.Falsef(t, result.I.LessThan(limits.Low) || result.I.GreaterThan(limits.High),
			"tick %d: integral %s outside [%s, %s]", i, result.I, limits.Low, limits.High)
	}
}

func TestHysteresisBandShrinksNegativeError(t *testing.T) {
	state := &model.ControllerState{}
	gains := Gains{P: decimal.NewFromInt(1), I: decimal.Zero, D: decimal.Zero}
	limits := LimitsFor(gains.D)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	withoutBand := Update(&model.ControllerState{}, gains, limits, decimal.Zero, d("20"), d("20.3"), now)
	withBand := Update(state, gains, limits, d("0.5"), d("20"), d("20.3"), now)

	assert.True(t, withoutBand.ErrorRaw.Equal(withBand.ErrorRaw), "raw error should be unaffected by the hysteresis band")
	assert.Falsef(t, withBand.Error.LessThan(withoutBand.Error),
		"a positive hysteresis band should shrink (toward zero), not grow, a negative error: with=%s without=%s", withBand.Error, withoutBand.Error)
}

func TestResetPastErrorsClearsWindow(t *testing.T) {
	state := &model.ControllerState{
		PastErrors: []model.ErrorSample{
			{At: time.Now(), Error: d("1")},
			{At: time.Now(), Error: d("2")},
		},
	}
	ResetPastErrors(state)
	assert.Empty(t, state.PastErrors)
}

func TestSlopePerHourZeroForConstantError(t *testing.T) {
	state := &model.ControllerState{}
	gains := Gains{P: decimal.Zero, I: decimal.Zero, D: decimal.Zero}
	limits := LimitsFor(gains.D)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	var last Result
	for i := 0; i < 5; i++ {
		now = now.Add(10 * time.Minute)
		last = Update(state, gains, limits, decimal.Zero, d("20"), d("15"), now)
	}

	assert.Falsef(t, last.SlopePerHr.Abs().GreaterThan(d("0.01")), "constant error should produce ~zero slope, got %s", last.SlopePerHr)
}
