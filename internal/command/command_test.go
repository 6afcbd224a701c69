package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeatPanicsOnInvalidSetPoint(t *testing.T) {
	assert.Panics(t, func() { Heat(7) }, "expected Heat(7) to panic on an illegal set point")
}

func TestOrdering(t *testing.T) {
	tests := []struct {
		name string
		a    Command
		b    Command
		less bool
	}{
		{name: "off is less than any heat", a: Off, b: Heat(8), less: true},
		{name: "heat is not less than off", a: Heat(8), b: Off, less: false},
		{name: "lower set point is less", a: Heat(8), b: Heat(10), less: true},
		{name: "higher set point is not less", a: Heat(22), b: Heat(10), less: false},
		{name: "off is not less than off", a: Off, b: Off, less: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.less, tt.a.Less(tt.b))
		})
	}
}

func TestEqual(t *testing.T) {
	assert.True(t, Off.Equal(Command{}), "Off should equal the zero value")
	assert.True(t, Heat(20).Equal(Heat(20)), "Heat(20) should equal Heat(20)")
	assert.False(t, Heat(20).Equal(Heat(22)), "Heat(20) should not equal Heat(22)")
	assert.False(t, Off.Equal(Heat(8)), "Off should not equal Heat(8)")
}

func TestTokenRoundTrip(t *testing.T) {
	all := append([]Command{Off}, allHeatCommands()...)

	for _, c := range all {
		t.Run(c.String(), func(t *testing.T) {
			tok := c.Token()
			got, ok := ParseToken(tok)
			require.True(t, ok, "ParseToken(%q) reported not found", tok)
			assert.True(t, got.Equal(c), "ParseToken(%q) = %s, want %s", tok, got, c)
		})
	}
}

func TestTokenIsInjective(t *testing.T) {
	all := append([]Command{Off}, allHeatCommands()...)
	seen := make(map[string]Command)
	for _, c := range all {
		tok := c.Token()
		prior, ok := seen[tok]
		require.False(t, ok, "token %q used by both %s and %s", tok, prior, c)
		seen[tok] = c
	}
}

func TestParseTokenUnknown(t *testing.T) {
	_, ok := ParseToken("not_a_real_token")
	assert.False(t, ok, "ParseToken should reject an unrecognized token")
}

func allHeatCommands() []Command {
	cmds := make([]Command, 0, len(SetPoints))
	for _, sp := range SetPoints {
		cmds = append(cmds, Heat(sp))
	}
	return cmds
}
