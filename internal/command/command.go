// Package command defines the closed set of IR commands the
// controller can emit: OFF, or HEAT at one of the heat pump's
// supported set points.
package command

import "fmt"

// SetPoints is the heat pump's supported target temperatures, in
// ascending order. Anything outside this set is not a legal command.
var SetPoints = []int{8, 10, 16, 18, 20, 22, 24, 26, 28, 30}

// Command is either OFF or HEAT(set_point). The zero value is OFF.
type Command struct {
	heating  bool
	setPoint int
}

// Off is the OFF command.
var Off = Command{}

// Heat builds a HEAT command for the given set point. Panics if
// setPoint is not one of SetPoints, since the selector must never
// construct an illegal command.
func Heat(setPoint int) Command {
	if !isValidSetPoint(setPoint) {
		panic(fmt.Sprintf("command: invalid set point %d", setPoint))
	}
	return Command{heating: true, setPoint: setPoint}
}

func isValidSetPoint(sp int) bool {
	for _, v := range SetPoints {
		if v == sp {
			return true
		}
	}
	return false
}

// IsOff reports whether this is the OFF command.
func (c Command) IsOff() bool { return !c.heating }

// IsHeat reports whether this is a HEAT command.
func (c Command) IsHeat() bool { return c.heating }

// SetPoint returns the HEAT set point. Only meaningful when IsHeat().
func (c Command) SetPoint() int { return c.setPoint }

// Equal reports equality by set point (OFF == OFF, HEAT(x) == HEAT(x)).
func (c Command) Equal(o Command) bool {
	return c.heating == o.heating && c.setPoint == o.setPoint
}

// Less implements the total order: OFF < every HEAT command, and
// HEAT(a) < HEAT(b) iff a.SetPoint < b.SetPoint.
func (c Command) Less(o Command) bool {
	if c.heating != o.heating {
		return !c.heating // OFF (false) sorts before HEAT (true)
	}
	return c.setPoint < o.setPoint
}

// tokens maps each legal command to its literal IR transmitter token.
// The fan/swing profile is fixed per spec: heat8/heat10 carry no fan
// setting, heat16 and above run the fan on high.
var tokens = map[int]string{
	8:  "heat_8__swing_down",
	10: "heat_10__swing_down",
	16: "heat_16__fan_high__swing_down",
	18: "heat_18__fan_high__swing_down",
	20: "heat_20__fan_high__swing_down",
	22: "heat_22__fan_high__swing_down",
	24: "heat_24__fan_high__swing_down",
	26: "heat_26__fan_high__swing_down",
	28: "heat_28__fan_high__swing_down",
	30: "heat_30__fan_high__swing_down",
}

// Token returns the literal IR transmitter argv token for this command.
func (c Command) Token() string {
	if !c.heating {
		return "off"
	}
	return tokens[c.setPoint]
}

func (c Command) String() string {
	if !c.heating {
		return "OFF"
	}
	return fmt.Sprintf("HEAT(%d)", c.setPoint)
}

// tokenToCommand is the inverse of Token, built once from tokens.
var tokenToCommand map[string]Command

func init() {
	tokenToCommand = map[string]Command{"off": Off}
	for sp, tok := range tokens {
		tokenToCommand[tok] = Heat(sp)
	}
}

// ParseToken parses a literal IR token back into a Command. Returns
// false if the token is not one of the legal command tokens.
func ParseToken(token string) (Command, bool) {
	c, ok := tokenToCommand[token]
	return c, ok
}

// IsHeating is a convenience used by the hysteresis/edge-policy code.
func IsHeating(c Command) bool { return c.IsHeat() }
