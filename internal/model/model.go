// Package model holds the controller's shared data types: samples,
// forecasts, controller/pipeline state and the records persisted
// across restarts.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sample is a single temperature reading at an instant.
type Sample struct {
	Temp decimal.Decimal
	TS   time.Time
}

// Forecast is an hourly temperature series fetched at a point in time.
// Temps is strictly increasing in timestamp; gaps wider than 1h are
// expected to have been filled by the adapter that produced it by
// repeating the last known value.
type Forecast struct {
	Temps []Sample
	TS    time.Time
}

// Mean returns the arithmetic mean of the forecast's temperatures, or
// nil if the forecast carries no samples.
func (f Forecast) Mean() *decimal.Decimal {
	if len(f.Temps) == 0 {
		return nil
	}
	sum := decimal.Zero
	for _, s := range f.Temps {
		sum = sum.Add(s.Temp)
	}
	m := sum.Div(decimal.NewFromInt(int64(len(f.Temps))))
	return &m
}

// MeanFirstHours returns the mean of the first n samples (or all of
// them if there are fewer than n), or nil if empty.
func (f Forecast) MeanFirstHours(n int) *decimal.Decimal {
	if len(f.Temps) == 0 {
		return nil
	}
	if n > len(f.Temps) {
		n = len(f.Temps)
	}
	sum := decimal.Zero
	for _, s := range f.Temps[:n] {
		sum = sum.Add(s.Temp)
	}
	m := sum.Div(decimal.NewFromInt(int64(n)))
	return &m
}

// ControllerState is the PID regulator's state: the accumulated
// integral and the bounded window of recent (time, error) pairs used
// to estimate the error slope.
type ControllerState struct {
	Integral       decimal.Decimal
	LastUpdateTime *time.Time
	PastErrors     []ErrorSample
}

// ErrorSample is one (instant, raw error) observation kept for the
// derivative/slope estimate. The window is bounded to 2h wide.
type ErrorSample struct {
	At    time.Time
	Error decimal.Decimal
}

// IsReset reports whether the controller has never ticked.
func (c ControllerState) IsReset() bool {
	return c.LastUpdateTime == nil
}

// EvictOlderThan drops past-error samples older than the given
// duration relative to now.
func (c *ControllerState) EvictOlderThan(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	kept := c.PastErrors[:0]
	for _, e := range c.PastErrors {
		if !e.At.Before(cutoff) {
			kept = append(kept, e)
		}
	}
	c.PastErrors = kept
}

// OperatorCommandKind is the closed set of operator messages the
// message channel can carry, replacing the original's dynamically
// typed payload dict.
type OperatorCommandKind int

const (
	// OperatorCommandNone means no message was received this poll.
	OperatorCommandNone OperatorCommandKind = iota
	OperatorCommandAuto
	OperatorCommandTurnOff
	OperatorCommandSetTemp
)

// OperatorCommand is a parsed operator message.
type OperatorCommand struct {
	Kind            OperatorCommandKind
	SetTempC        int
	MinInsideTemp   *decimal.Decimal
}

// SavedState is the on-disk record of controller state that survives
// a process restart: the PID integral, plus enough of the pipeline's
// edge-policy state (last command token, heating start time) that a
// restart does not reset the minimum-on-time guarantee or force a
// spurious resend. See SPEC_FULL.md §3.1.
type SavedState struct {
	Integral          decimal.Decimal
	LastCommandToken  string
	HeatingStartTime  *time.Time
}

// CommandLogEntry is one row of the persisted command log: an operator
// message that the state machine accepted. Pipeline sends are recorded
// in the IR-send log instead.
type CommandLogEntry struct {
	ID      int64
	Command string
	Param   string
	TS      time.Time
}

// IRSendLogEntry is one row of the persisted IR-send log.
type IRSendLogEntry struct {
	ID      int64
	Command string
	TS      time.Time
}
