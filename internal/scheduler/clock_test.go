package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kant/TwitchMIDI/internal/midiout"
)

func TestTickInterval(t *testing.T) {
	assert.Equal(t, time.Duration(20833333), tickInterval(120))
	assert.Equal(t, time.Duration(41666666), tickInterval(60))
	assert.Equal(t, time.Duration(25000000), tickInterval(100))
}

func TestClock_BarSignalOnlyAtTickZero(t *testing.T) {
	bars := 0
	c := NewClock(midiout.NewMemory(), func() { bars++ })

	for i := 0; i < 2*TicksPerBar; i++ {
		c.pulse()
	}

	assert.Equal(t, 2, bars, "one bar signal per 96 pulses")
}

func TestClock_SuppressionBlocksBarSignal(t *testing.T) {
	bars := 0
	mem := midiout.NewMemory()
	c := NewClock(mem, func() { bars++ })

	c.SetSuppressed(true)
	for i := 0; i < TicksPerBar; i++ {
		c.pulse()
	}
	assert.Equal(t, 0, bars)
	assert.Equal(t, TicksPerBar, mem.Pulses(), "pulses keep flowing while suppressed")

	c.SetSuppressed(false)
	c.pulse()
	assert.Equal(t, 1, bars, "tick counter kept advancing under suppression")
}

func TestClock_SetTempoResyncsTransport(t *testing.T) {
	mem := midiout.NewMemory()
	c := NewClock(mem, nil)

	require.NoError(t, c.SetTempo(120))
	defer c.FullStop()

	assert.Equal(t, []string{"stop", "all_notes_off", "start"}, mem.Events())
	assert.GreaterOrEqual(t, mem.Pulses(), 1, "first pulse is synchronous")
	assert.True(t, c.Running())
	assert.Equal(t, 120, c.Tempo())
}

func TestClock_SetTempoUnboundLeavesStateUntouched(t *testing.T) {
	c := NewClock(midiout.NewUnboundMemory(), nil)

	err := c.SetTempo(120)
	assert.ErrorIs(t, err, midiout.ErrNoOutputBound)
	assert.False(t, c.Running())
	assert.Equal(t, 0, c.Tempo())
}

func TestClock_FullStopKeepsTempo(t *testing.T) {
	mem := midiout.NewMemory()
	c := NewClock(mem, nil)
	require.NoError(t, c.SetTempo(90))

	c.FullStop()

	assert.False(t, c.Running())
	assert.Equal(t, 90, c.Tempo(), "a later resume reuses the last tempo")

	c.mu.Lock()
	tick := c.tick
	c.mu.Unlock()
	assert.Equal(t, 0, tick)
}

func TestClock_StaleScheduleCannotPulse(t *testing.T) {
	mem := midiout.NewMemory()
	c := NewClock(mem, nil)

	current := make(chan struct{})
	c.mu.Lock()
	c.stopRun = current
	c.mu.Unlock()

	// A tick from a cancelled schedule generation is dropped.
	stale := make(chan struct{})
	c.pulseFrom(stale)
	assert.Zero(t, mem.Pulses())

	// The installed generation still pulses.
	c.pulseFrom(current)
	assert.Equal(t, 1, mem.Pulses())
}

func TestClock_ResyncResetsBarPosition(t *testing.T) {
	mem := midiout.NewMemory()
	bars := 0
	c := NewClock(mem, func() { bars++ })

	// Walk into the middle of a bar.
	for i := 0; i < 10; i++ {
		c.pulse()
	}
	mem.Reset()

	require.NoError(t, c.Resync())
	assert.Equal(t, []string{"stop", "all_notes_off", "start"}, mem.Events())

	bars = 0
	c.pulse()
	assert.Equal(t, 1, bars, "next pulse is a bar start again")
}
