// Package pipeline drives the fixed ordered sequence of decision
// stages (spec §4.9): fuse forecasts and sensors, compute the thermal
// target, run the PID regulator, select a command, apply hysteresis,
// transmit, log, and persist — once per call to Run, producing a
// human-readable trace alongside the command actually sent.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kimmoahola/ilp-commander/internal/appconfig"
	"github.com/kimmoahola/ilp-commander/internal/applog"
	"github.com/kimmoahola/ilp-commander/internal/clock"
	"github.com/kimmoahola/ilp-commander/internal/command"
	"github.com/kimmoahola/ilp-commander/internal/fusion"
	"github.com/kimmoahola/ilp-commander/internal/hysteresis"
	"github.com/kimmoahola/ilp-commander/internal/irsend"
	"github.com/kimmoahola/ilp-commander/internal/mailer"
	"github.com/kimmoahola/ilp-commander/internal/model"
	"github.com/kimmoahola/ilp-commander/internal/regulator"
	"github.com/kimmoahola/ilp-commander/internal/selector"
	"github.com/kimmoahola/ilp-commander/internal/store"
	"github.com/kimmoahola/ilp-commander/internal/thermal"
)

// State is the in-memory PipelineState threaded across iterations
// (spec §3 "PipelineState"), owned exclusively by the state machine.
type State struct {
	Edge              hysteresis.Edge
	MinimumInsideTemp decimal.Decimal
	LastStatusTrace   []string
	LastStatusEmailed bool
	Controller        model.ControllerState
}

// NewState builds a fresh State, seeding MinimumInsideTemp from
// configuration and the controller integral from any previously
// persisted value (spec §3 "controller integral is loaded from
// SavedState on first use").
func NewState(cfg *appconfig.Config, saved model.SavedState, savedOK bool) *State {
	s := &State{
		Edge:              hysteresis.Edge{GoingUp: true},
		MinimumInsideTemp: cfg.MinimumInsideTemp,
	}
	if savedOK {
		s.Controller.Integral = saved.Integral
		if tok, ok := command.ParseToken(saved.LastCommandToken); ok {
			s.Edge.LastCommand = &tok
		}
		s.Edge.HeatingStartTime = saved.HeatingStartTime
	}
	return s
}

// Adapters bundles every external collaborator one pipeline Run needs.
type Adapters struct {
	Outside  []func(ctx context.Context) (*decimal.Decimal, *time.Time)
	Inside   []func(ctx context.Context) (*decimal.Decimal, *time.Time)
	DewPoint func(ctx context.Context) (*decimal.Decimal, *time.Time)
	FMI      func(ctx context.Context) (*model.Forecast, *time.Time)
	Yr       func(ctx context.Context) (*model.Forecast, *time.Time)

	Sender *irsend.Sender
	Mailer *mailer.Mailer
	Store  *store.Store
}

// maxOutsideAge is the max-age GetTemp/GetOutside enforce on the fused
// outside-temperature reading (spec §4.4 default 60 minutes).
const maxOutsideAge = 60 * time.Minute

// Result is what one Run produces: the command the hysteresis policy
// settled on this tick (set whether or not it was transmitted),
// whether it was transmitted successfully this tick, and the trace
// lines that become the message-channel log cell and any status email
// body.
type Result struct {
	Sent     command.Command
	DidSend  bool
	Trace    []string
	SendErr  error
}

// Run executes the pipeline's fixed stage order once (spec §4.9). A
// stage failure (spec §7 "Invariant violation") is logged and the
// pipeline continues with whatever partial bag it has — the selector
// always has a fallback branch, so a Run never panics. Per-source
// request caching (spec §4.2) happens one layer down, inside the
// adapters bundled into ad; Run itself just calls them.
func Run(ctx context.Context, cfg *appconfig.Config, clk clock.Clock, state *State, ad Adapters) Result {
	var trace []string
	trace1 := func(format string, args ...any) {
		trace = append(trace, fmt.Sprintf(format, args...))
	}

	now := clk.Now()
	validTime := clk.TimeValid()
	trace1("tick at %s (valid_time=%v)", now.Format(time.RFC3339), validTime)

	forecastResult := fusion.GetForecast(ctx, ad.FMI, ad.Yr, now)
	trace = append(trace, forecastResult.TraceLine)

	outsideResult := fusion.GetOutside(ctx, ad.Outside, forecastResult.Forecast, now, maxOutsideAge)
	trace = append(trace, outsideResult.TraceLine)

	coef := thermal.Coefficients{
		CoolingRatePerHourPerDiff: cfg.CoolingRatePerHourPerDiff,
	}
	if cfg.CoolingTimeBuffer.IsFunction {
		coef.BufferHours = thermal.QuadraticBufferHours(cfg.CoolingTimeBuffer.A, cfg.CoolingTimeBuffer.B, cfg.CoolingTimeBuffer.C)
	} else {
		coef.BufferHours = thermal.ConstantBufferHours(cfg.CoolingTimeBuffer.Constant)
	}

	outsideNow := model.Sample{Temp: outsideResult.Value, TS: now}
	target := thermal.TargetInsideTemperature(coef, outsideNow, cfg.AllowedMinimumInsideTemp, state.MinimumInsideTemp, forecastResult.Forecast)
	trace1("target inside temp = %s", target.StringFixed(1))

	if ad.DewPoint != nil {
		if dp, _ := ad.DewPoint(ctx); dp != nil {
			adjusted := thermal.AdjustTargetForDewPoint(target, dp)
			if !adjusted.Equal(target) {
				trace1("target raised to %s to avoid condensation (dew point %s)", adjusted.StringFixed(1), dp.StringFixed(1))
			}
			target = adjusted
		}
	}

	hysteresisBand := decimal.Zero

	insideValue, insideTS := fusion.GetTemp(ctx, ad.Inside, now, maxOutsideAge)
	var insidePtr *decimal.Decimal
	if insideValue != nil {
		insidePtr = insideValue
		trace1("inside temp = %s (ts=%s)", insideValue.StringFixed(1), insideTS.Format(time.RFC3339))
		state.Edge.UpdateDirection(*insideValue, target, hysteresisBand)
	} else {
		trace1("inside temp unavailable")
	}

	var regOutput decimal.Decimal
	if insidePtr != nil {
		limits := regulator.LimitsFor(cfg.ControllerD)
		result := regulator.Update(&state.Controller, regulator.Gains{
			P: cfg.ControllerP,
			I: cfg.ControllerI,
			D: cfg.ControllerD,
		}, limits, hysteresisBand, target, *insidePtr, now)
		regOutput = result.Output
		trace1("regulator: P=%s I=%s D=%s error=%s slope=%s/h output=%s",
			result.P.StringFixed(3), result.I.StringFixed(3), result.D.StringFixed(3),
			result.Error.StringFixed(2), result.SlopePerHr.StringFixed(3), regOutput.StringFixed(3))
	}

	outsideVal := outsideResult.Value
	candidate := selector.Select(regOutput, insidePtr, &outsideVal, outsideResult.ValidOutside, target, now, validTime)
	trace1("selected command: %s", candidate)

	toSend, changed := hysteresis.Decide(&state.Edge, candidate, now)
	forceResend := !changed && toSend.Equal(candidate) &&
		state.Edge.LastSentTime != nil && now.Sub(*state.Edge.LastSentTime) >= hysteresis.ForceSendInterval
	if changed {
		trace1("sending %s (changed from previous)", toSend)
	} else if !toSend.Equal(candidate) {
		trace1("hysteresis/rate-limit holds %s instead of %s", toSend, candidate)
	} else if forceResend {
		trace1("force-resend %s", toSend)
	} else {
		trace1("keeping %s (unchanged)", toSend)
	}

	maybeSendStatusMail(ctx, ad.Mailer, state, trace)

	var sendErr error
	attemptedSend := ad.Sender != nil && (changed || forceResend)
	if attemptedSend {
		previous := state.Edge.LastCommand
		sendErr = ad.Sender.Send(ctx, toSend)
		if sendErr != nil {
			trace1("send IR failed: %v", sendErr)
			applog.Errorf("sending IR command %s: %v", toSend, sendErr)
			if ad.Mailer != nil {
				if mailErr := ad.Mailer.SendIRFailureNotice(ctx, sendErr.Error()); mailErr != nil {
					applog.Warnf("sending IR-failure notice: %v", mailErr)
				}
			}
		} else {
			if previous != nil && previous.IsHeat() != toSend.IsHeat() {
				trace1("heat/off transition: %s -> %s", previous, toSend)
				if ad.Mailer != nil {
					if mailErr := ad.Mailer.SendIRTransitionNotice(ctx, previous.String(), toSend.String()); mailErr != nil {
						applog.Warnf("sending IR-transition notice: %v", mailErr)
					}
				}
			}
			hysteresis.Advance(&state.Edge, toSend, now)
			if ad.Store != nil {
				if err := ad.Store.AppendIRSendLog(model.IRSendLogEntry{Command: toSend.Token(), TS: now}); err != nil {
					applog.Warnf("appending ir send log: %v", err)
				}
			}
		}
	} else if ad.Sender == nil && (changed || forceResend) {
		// With no transmitter configured the decision is still recorded,
		// so the edge policy tracks it across ticks.
		hysteresis.Advance(&state.Edge, toSend, now)
	}

	if ad.Store != nil {
		if err := ad.Store.SaveState(model.SavedState{
			Integral:         state.Controller.Integral,
			LastCommandToken: toSend.Token(),
			HeatingStartTime: state.Edge.HeatingStartTime,
		}); err != nil {
			applog.Warnf("saving controller state: %v", err)
		}
	}

	return Result{Sent: toSend, DidSend: attemptedSend && sendErr == nil, Trace: trace, SendErr: sendErr}
}

// maybeSendStatusMail sends a status-change notice only when the
// trace differs from the previous run's, and never on the very first
// run (spec §7 "the first status is not emailed").
func maybeSendStatusMail(ctx context.Context, m *mailer.Mailer, state *State, trace []string) {
	changed := !traceEqual(state.LastStatusTrace, trace)
	if changed && state.LastStatusEmailed && m != nil {
		if err := m.SendStatusChange(ctx, trace); err != nil {
			applog.Warnf("sending status change mail: %v", err)
		}
	}
	state.LastStatusTrace = trace
	state.LastStatusEmailed = true
}

func traceEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
