package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimmoahola/ilp-commander/internal/appconfig"
	"github.com/kimmoahola/ilp-commander/internal/clock"
	"github.com/kimmoahola/ilp-commander/internal/command"
	"github.com/kimmoahola/ilp-commander/internal/model"
	"github.com/kimmoahola/ilp-commander/internal/sources"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func baseConfig() *appconfig.Config {
	return &appconfig.Config{
		MinimumInsideTemp:         d("18"),
		AllowedMinimumInsideTemp:  d("1"),
		CoolingRatePerHourPerDiff: d("0.02"),
		CoolingTimeBuffer:         appconfig.CoolingTimeBuffer{Constant: d("12")},
		ControllerP:               d("2"),
		ControllerI:               decimal.Zero,
		ControllerD:               decimal.Zero,
	}
}

func fixedTemp(v decimal.Decimal, at time.Time) sources.TempFunc {
	return func(ctx context.Context) (*decimal.Decimal, *time.Time) {
		vv, tt := v, at
		return &vv, &tt
	}
}

// A mild day with a working inside sensor below target should select
// a HEAT command rather than OFF.
func TestRunMildDaySelectsModerateHeat(t *testing.T) {
	cfg := baseConfig()
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	clk := clock.Fixed{At: now, Valid: true}

	state := NewState(cfg, model.SavedState{}, false)
	ad := Adapters{
		Outside: []func(context.Context) (*decimal.Decimal, *time.Time){fixedTemp(d("2"), now)},
		Inside:  []func(context.Context) (*decimal.Decimal, *time.Time){fixedTemp(d("17"), now)},
	}

	result := Run(context.Background(), cfg, clk, state, ad)
	assert.Falsef(t, result.Sent.IsOff(), "expected a HEAT command on a mild day with inside below target, got %s", result.Sent)
}

// With no inside sensor at all and a deep cold snap outside, the
// open-loop branch should still pick a strong HEAT command rather than
// leaving the building to coast to the floor.
func TestRunColdSnapNoInsideSelectsHeat(t *testing.T) {
	cfg := baseConfig()
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	clk := clock.Fixed{At: now, Valid: true}

	state := NewState(cfg, model.SavedState{}, false)
	ad := Adapters{
		Outside: []func(context.Context) (*decimal.Decimal, *time.Time){fixedTemp(d("-25"), now)},
	}

	result := Run(context.Background(), cfg, clk, state, ad)
	assert.True(t, result.Sent.IsHeat(), "expected a HEAT command during a cold snap with no inside reading, got %s", result.Sent)
}

// In summer, with every sensor down (outside falls back to the fixed
// fallback and is flagged invalid, so the selector's open-loop summer
// branch decides), the selector must not panic and must return some
// legal command.
func TestRunSummerSensorsDownProducesLegalCommand(t *testing.T) {
	cfg := baseConfig()
	now := time.Date(2024, 7, 15, 12, 0, 0, 0, time.UTC)
	clk := clock.Fixed{At: now, Valid: true}

	state := NewState(cfg, model.SavedState{}, false)
	ad := Adapters{}

	result := Run(context.Background(), cfg, clk, state, ad)
	assert.Truef(t, result.Sent.IsOff() || result.Sent.IsHeat(), "expected a legal OFF or HEAT command, got %v", result.Sent)
}

// Two consecutive Run calls a minute apart with unchanged conditions
// should not flip the sent command back and forth (spec's hysteresis
// suppresses chatter), i.e. the second Run should not report a change
// reversing the first.
func TestRunIsStableAcrossConsecutiveTicks(t *testing.T) {
	cfg := baseConfig()
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

	state := NewState(cfg, model.SavedState{}, false)
	ad := Adapters{
		Outside: []func(context.Context) (*decimal.Decimal, *time.Time){fixedTemp(d("2"), now)},
		Inside:  []func(context.Context) (*decimal.Decimal, *time.Time){fixedTemp(d("17"), now)},
	}

	first := Run(context.Background(), cfg, clock.Fixed{At: now, Valid: true}, state, ad)

	later := now.Add(time.Minute)
	ad.Inside = []func(context.Context) (*decimal.Decimal, *time.Time){fixedTemp(d("17.05"), later)}
	second := Run(context.Background(), cfg, clock.Fixed{At: later, Valid: true}, state, ad)

	assert.True(t, first.Sent.Equal(second.Sent), "expected a near-identical tick one minute later to hold the same command, got first=%s second=%s", first.Sent, second.Sent)
}

// Rate-limit: once heating starts, an immediate drop in target (e.g.
// operator lowers the minimum) should not turn the command OFF before
// the minimum-on-time has elapsed.
func TestRunRateLimitHoldsHeatThroughShortDip(t *testing.T) {
	cfg := baseConfig()
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

	state := NewState(cfg, model.SavedState{}, false)
	ad := Adapters{
		Outside: []func(context.Context) (*decimal.Decimal, *time.Time){fixedTemp(d("-10"), now)},
		Inside:  []func(context.Context) (*decimal.Decimal, *time.Time){fixedTemp(d("10"), now)},
	}

	first := Run(context.Background(), cfg, clock.Fixed{At: now, Valid: true}, state, ad)
	require.True(t, first.Sent.IsHeat(), "expected the first tick to start heating, got %s", first.Sent)

	soon := now.Add(5 * time.Minute)
	ad.Inside = []func(context.Context) (*decimal.Decimal, *time.Time){fixedTemp(d("25"), soon)}
	second := Run(context.Background(), cfg, clock.Fixed{At: soon, Valid: true}, state, ad)

	assert.False(t, second.Sent.IsOff(), "expected the minimum-on-time guarantee to hold heat for 5 minutes, but got OFF")
}

func TestRunNeverSendsAnIllegalCommand(t *testing.T) {
	cfg := baseConfig()
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	state := NewState(cfg, model.SavedState{}, false)

	result := Run(context.Background(), cfg, clock.Fixed{At: now, Valid: true}, state, Adapters{})
	if result.Sent.IsHeat() {
		found := false
		for _, sp := range command.SetPoints {
			if sp == result.Sent.SetPoint() {
				found = true
				break
			}
		}
		assert.True(t, found, "selected set point %d is not one of the legal set points", result.Sent.SetPoint())
	}
}
