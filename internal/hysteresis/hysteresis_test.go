package hysteresis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimmoahola/ilp-commander/internal/command"
)

func TestDecideFirstCommandAlwaysSends(t *testing.T) {
	e := &Edge{}
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	toSend, changed := Decide(e, command.Heat(20), now)
	assert.True(t, changed)
	assert.True(t, toSend.Equal(command.Heat(20)))
}

func TestDecideMinimumOnTimeHoldsHeatBeforeOff(t *testing.T) {
	e := &Edge{}
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	Decide(e, command.Heat(20), now)
	Advance(e, command.Heat(20), now)

	tooSoon := now.Add(10 * time.Minute)
	toSend, changed := Decide(e, command.Off, tooSoon)
	assert.False(t, changed, "within the minimum-on-time window OFF should be held")
	assert.True(t, toSend.Equal(command.Heat(20)))

	longEnough := now.Add(50 * time.Minute)
	toSend, changed = Decide(e, command.Off, longEnough)
	assert.True(t, changed, "after the minimum-on-time window OFF should be accepted")
	assert.True(t, toSend.IsOff())
}

func TestDecideHysteresisSuppressesChatterGoingUp(t *testing.T) {
	e := &Edge{GoingUp: true}
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	Decide(e, command.Heat(20), now)
	Advance(e, command.Heat(20), now)

	// While still rising toward target, a lower candidate should not
	// be accepted -- that would be backsliding mid-climb.
	toSend, changed := Decide(e, command.Heat(18), now.Add(time.Minute))
	assert.False(t, changed, "rising edge should hold the higher command")
	assert.True(t, toSend.Equal(command.Heat(20)))

	// A higher candidate while still rising is accepted.
	toSend, changed = Decide(e, command.Heat(22), now.Add(time.Minute))
	assert.True(t, changed, "rising edge should accept a higher command")
	assert.True(t, toSend.Equal(command.Heat(22)))
}

func TestDecideHysteresisSuppressesChatterGoingDown(t *testing.T) {
	e := &Edge{GoingUp: false}
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	Decide(e, command.Heat(20), now)
	Advance(e, command.Heat(20), now)

	toSend, changed := Decide(e, command.Heat(22), now.Add(time.Minute))
	assert.False(t, changed, "falling edge should hold the lower command")
	assert.True(t, toSend.Equal(command.Heat(20)))
}

func TestDecideForceResendAfterInterval(t *testing.T) {
	e := &Edge{}
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	Decide(e, command.Heat(20), now)
	Advance(e, command.Heat(20), now)

	within := now.Add(ForceSendInterval - time.Minute)
	_, changed := Decide(e, command.Heat(20), within)
	assert.False(t, changed, "an unchanged command within the force-resend interval should not report changed")

	after := now.Add(ForceSendInterval)
	toSend, changed := Decide(e, command.Heat(20), after)
	assert.False(t, changed, "a force-resend is still the same command, so changed should remain false")
	assert.True(t, toSend.Equal(command.Heat(20)), "force-resend should still send the unchanged command, got %s", toSend)
}

func TestAdvanceTracksHeatingStartTime(t *testing.T) {
	e := &Edge{}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	Advance(e, command.Heat(20), start)
	require.NotNil(t, e.HeatingStartTime)
	assert.True(t, e.HeatingStartTime.Equal(start))

	later := start.Add(time.Hour)
	Advance(e, command.Heat(22), later)
	require.NotNil(t, e.HeatingStartTime, "HeatingStartTime should not reset across a heat-to-heat transition")
	assert.True(t, e.HeatingStartTime.Equal(start))

	Advance(e, command.Off, later.Add(time.Hour))
	assert.Nil(t, e.HeatingStartTime, "HeatingStartTime should clear once OFF is sent")
}
