// Package hysteresis implements the command-change suppression and
// minimum-on-time rate-limit the pipeline applies to the selector's
// raw choice before it is ever sent (spec §4.8).
package hysteresis

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/kimmoahola/ilp-commander/internal/command"
)

// MinimumOnTime is the guaranteed minimum duration a heating command
// stays in effect before OFF may be sent (spec §4.8, 45 minutes).
const MinimumOnTime = 45 * time.Minute

// ForceSendInterval re-transmits the current command even when
// unchanged, to guard against a missed actuation (spec §4.8).
const ForceSendInterval = 24 * time.Hour

// Edge is the minimum state the policy needs: the last accepted
// command, when heating last started, and when it was last sent.
type Edge struct {
	LastCommand      *command.Command
	HeatingStartTime *time.Time
	LastSentTime     *time.Time
	// GoingUp is true while inside is rising toward the set point and
	// false while it is falling past target+hysteresisBand (spec §4.8).
	GoingUp bool
}

// UpdateDirection recomputes GoingUp from the latest inside/target
// comparison (spec §4.8: "flips true when inside < target, false when
// inside > target+h").
func (e *Edge) UpdateDirection(inside, target, hysteresisBand decimal.Decimal) {
	if inside.LessThan(target) {
		e.GoingUp = true
		return
	}
	if inside.GreaterThan(target.Add(hysteresisBand)) {
		e.GoingUp = false
	}
}

// Decide applies the hysteresis, minimum-on-time, and force-resend
// rules to candidate and returns the command to actually transmit,
// plus whether it differs from the last one accepted (a genuine
// transition, as opposed to a force-resend of the same command).
func Decide(e *Edge, candidate command.Command, now time.Time) (toSend command.Command, changed bool) {
	if e.LastCommand == nil {
		return candidate, true
	}
	last := *e.LastCommand

	if candidate.Equal(last) {
		if e.LastSentTime != nil && now.Sub(*e.LastSentTime) >= ForceSendInterval {
			return candidate, false
		}
		return last, false
	}

	if candidate.IsOff() && last.IsHeat() {
		if e.HeatingStartTime == nil || now.Sub(*e.HeatingStartTime) < MinimumOnTime {
			return last, false
		}
	}

	if e.GoingUp && candidate.Less(last) {
		return last, false
	}
	if !e.GoingUp && last.Less(candidate) {
		return last, false
	}

	return candidate, true
}

// Advance updates Edge after toSend has actually been transmitted.
func Advance(e *Edge, toSend command.Command, now time.Time) {
	wasHeating := e.LastCommand != nil && e.LastCommand.IsHeat()
	if toSend.IsHeat() && !wasHeating {
		startedAt := now
		e.HeatingStartTime = &startedAt
	}
	if toSend.IsOff() {
		e.HeatingStartTime = nil
	}
	sentAt := now
	e.LastSentTime = &sentAt
	cmd := toSend
	e.LastCommand = &cmd
}
