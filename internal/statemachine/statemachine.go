// Package statemachine implements the READ-LAST → AUTO ↔ MANUAL loop
// that wraps the pipeline (spec §4.10): it owns the PipelineState,
// decides when to run the pipeline versus honor a direct operator
// override, and persists every accepted operator command.
package statemachine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kimmoahola/ilp-commander/internal/applog"
	"github.com/kimmoahola/ilp-commander/internal/command"
	"github.com/kimmoahola/ilp-commander/internal/healthcheck"
	"github.com/kimmoahola/ilp-commander/internal/messagechannel"
	"github.com/kimmoahola/ilp-commander/internal/model"
	"github.com/kimmoahola/ilp-commander/internal/pipeline"
	"github.com/kimmoahola/ilp-commander/internal/regulator"
	"github.com/kimmoahola/ilp-commander/internal/store"
)

// Name is the closed set of states the machine can be in (spec
// §4.10). Transitions are returned as this enum rather than
// referencing state types directly, avoiding the teacher-adjacent
// pack's cyclic-import problem the spec calls out in §9.
type Name int

const (
	ReadLast Name = iota
	Auto
	Manual
	WaitMessageManual
)

// operatorPayload is the wire shape of an operator message (spec
// §4.10): `{command: str, param: object|null}`.
type operatorPayload struct {
	Command string          `json:"command"`
	Param   json.RawMessage `json:"param"`
}

type setTempParam struct {
	Temp int `json:"temp"`
}

type autoParam struct {
	MinInsideTemp *string `json:"min_inside_temp"`
}

// ParseOperatorCommand decodes a raw operator message into the closed
// model.OperatorCommand variant, error-recovering to
// OperatorCommandNone on malformed JSON (spec §7 "Operator error":
// treat as empty, remain in current state).
func ParseOperatorCommand(raw string) model.OperatorCommand {
	if raw == "" {
		return model.OperatorCommand{Kind: model.OperatorCommandNone}
	}

	var p operatorPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		applog.Warnf("malformed operator message, ignoring: %v", err)
		return model.OperatorCommand{Kind: model.OperatorCommandNone}
	}

	switch p.Command {
	case "auto":
		cmd := model.OperatorCommand{Kind: model.OperatorCommandAuto}
		if len(p.Param) > 0 {
			var ap autoParam
			if err := json.Unmarshal(p.Param, &ap); err == nil && ap.MinInsideTemp != nil {
				if d, err := decimal.NewFromString(*ap.MinInsideTemp); err == nil {
					cmd.MinInsideTemp = &d
				}
			}
		}
		return cmd
	case "turn off":
		return model.OperatorCommand{Kind: model.OperatorCommandTurnOff}
	case "set temp":
		var sp setTempParam
		if len(p.Param) > 0 {
			if err := json.Unmarshal(p.Param, &sp); err != nil {
				applog.Warnf("malformed set-temp param, ignoring: %v", err)
				return model.OperatorCommand{Kind: model.OperatorCommandNone}
			}
		}
		return model.OperatorCommand{Kind: model.OperatorCommandSetTemp, SetTempC: sp.Temp}
	default:
		return model.OperatorCommand{Kind: model.OperatorCommandNone}
	}
}

// Machine runs the state loop: Auto executes the pipeline once per
// iteration then waits for at most one operator message; Manual
// transmits a single override command then waits for the next
// message.
type Machine struct {
	Store     *store.Store
	Messages  *messagechannel.Channel
	Health    *healthcheck.Pinger
	Pipeline  func(ctx context.Context) pipeline.Result
	PState    *pipeline.State
	SendOff   func(ctx context.Context) error
	SendHeat  func(ctx context.Context, setPoint int) error

	state Name
}

// NewMachine builds a Machine starting in ReadLast.
func NewMachine() *Machine {
	return &Machine{state: ReadLast}
}

// Step runs exactly one transition of the loop and returns the new
// state, so the caller (cmd/ilp-commander's main loop) controls
// cancellation between steps.
func (m *Machine) Step(ctx context.Context) (Name, error) {
	switch m.state {
	case ReadLast:
		return m.stepReadLast(ctx)
	case Auto:
		return m.stepAuto(ctx)
	case Manual:
		return m.stepManual(ctx)
	case WaitMessageManual:
		return m.stepWaitMessageManual(ctx)
	default:
		return ReadLast, fmt.Errorf("statemachine: unknown state %d", m.state)
	}
}

func (m *Machine) stepReadLast(ctx context.Context) (Name, error) {
	entry, ok, err := m.Store.MostRecentCommand()
	if err != nil {
		applog.Warnf("reading most recent command: %v", err)
	}
	if !ok {
		m.state = Auto
		return m.state, nil
	}

	cmd := ParseOperatorCommand(entry.Param)
	if entry.Command == "auto" || cmd.Kind == model.OperatorCommandAuto {
		m.state = Auto
	} else {
		m.state = Manual
	}
	return m.state, nil
}

func (m *Machine) stepAuto(ctx context.Context) (Name, error) {
	result := m.Pipeline(ctx)
	for _, line := range result.Trace {
		applog.Debug(line)
	}
	if m.Messages != nil {
		if err := m.Messages.Write(ctx, result.Sent.Token(), time.Now().UTC(), result.Trace); err != nil {
			applog.Warnf("writing message channel: %v", err)
		}
	}
	if m.Health != nil {
		_ = m.Health.PingCron(ctx)
	}

	raw, err := m.readMessage(ctx)
	if err != nil {
		applog.Warnf("reading operator message: %v", err)
	}

	cmd := ParseOperatorCommand(raw)
	if cmd.Kind == model.OperatorCommandNone || cmd.Kind == model.OperatorCommandAuto {
		if cmd.Kind == model.OperatorCommandAuto {
			m.recordOperatorCommand(cmd, raw)
		}
		if cmd.MinInsideTemp != nil {
			m.PState.MinimumInsideTemp = *cmd.MinInsideTemp
			regulator.ResetPastErrors(&m.PState.Controller)
		}
		m.state = Auto
		return m.state, nil
	}

	m.recordOperatorCommand(cmd, raw)
	m.PState.Controller = model.ControllerState{}
	m.state = Manual
	return m.state, nil
}

func (m *Machine) stepManual(ctx context.Context) (Name, error) {
	// The most recently read command is re-parsed from the command
	// log so Manual.run does not need its own copy threaded through
	// the machine.
	entry, ok, err := m.Store.MostRecentCommand()
	if err != nil || !ok {
		m.state = WaitMessageManual
		return m.state, err
	}
	cmd := ParseOperatorCommand(entry.Param)

	switch cmd.Kind {
	case model.OperatorCommandTurnOff:
		if m.SendOff != nil {
			if err := m.SendOff(ctx); err != nil {
				applog.Errorf("manual turn-off send failed: %v", err)
			}
		}
	case model.OperatorCommandSetTemp:
		if m.SendHeat != nil {
			if err := m.SendHeat(ctx, cmd.SetTempC); err != nil {
				applog.Errorf("manual set-temp send failed: %v", err)
			}
		}
	}

	m.state = WaitMessageManual
	return m.state, nil
}

func (m *Machine) stepWaitMessageManual(ctx context.Context) (Name, error) {
	raw, err := m.readMessage(ctx)
	if err != nil {
		applog.Warnf("reading operator message: %v", err)
	}
	cmd := ParseOperatorCommand(raw)
	if cmd.Kind == model.OperatorCommandAuto {
		m.recordOperatorCommand(cmd, raw)
		m.state = Auto
		return m.state, nil
	}
	if cmd.Kind != model.OperatorCommandNone {
		m.recordOperatorCommand(cmd, raw)
	}
	m.state = Manual
	return m.state, nil
}

func (m *Machine) readMessage(ctx context.Context) (string, error) {
	if m.Messages == nil {
		return "", nil
	}
	raw, err := m.Messages.Read(ctx)
	if err == nil && m.Health != nil {
		_ = m.Health.PingMessage(ctx)
	}
	return raw, err
}

func (m *Machine) recordOperatorCommand(cmd model.OperatorCommand, raw string) {
	if m.Store == nil {
		return
	}

	var name, param string
	switch cmd.Kind {
	case model.OperatorCommandAuto:
		name = "auto"
	case model.OperatorCommandTurnOff:
		name = "turn off"
	case model.OperatorCommandSetTemp:
		name = "set temp"
	default:
		name = "unknown"
	}
	param = raw

	if err := m.Store.AppendCommandLog(model.CommandLogEntry{Command: name, Param: param, TS: time.Now().UTC()}); err != nil {
		applog.Warnf("appending command log: %v", err)
	}
}
