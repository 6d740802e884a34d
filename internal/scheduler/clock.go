package scheduler

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/kant/TwitchMIDI/internal/midiout"
)

const (
	// PulsesPerQuarter is the MIDI timing convention: 24 clock pulses per
	// quarter note.
	PulsesPerQuarter = 24

	// TicksPerBar is one 4/4 bar: 96 pulses. The tick counter wraps here.
	TicksPerBar = PulsesPerQuarter * 4
)

// tickInterval is the pulse period for a tempo:
// 1e9 ns * 60 / (bpm * 24), truncated to whole nanoseconds.
func tickInterval(bpm int) time.Duration {
	return time.Duration(int64(time.Minute) / int64(bpm*PulsesPerQuarter))
}

// Clock emits periodic MIDI timing pulses and tracks the position within a
// bar. At tick 0 it fires the bar-start callback, unless suppressed because
// a progression is actively sounding (a bar signal mid-progression would
// re-trigger arbitration reentrantly).
//
// The pulse handler never blocks: onBar must only do quick, non-blocking
// work (the scheduler resolves waiters via buffered channel sends).
type Clock struct {
	out      midiout.Transport
	onBar    func()
	suppress atomic.Bool

	mu      sync.Mutex
	bpm     int
	tick    int
	stopRun chan struct{}
}

// NewClock creates a stopped clock. onBar may be nil.
func NewClock(out midiout.Transport, onBar func()) *Clock {
	return &Clock{out: out, onBar: onBar}
}

// SetTempo stops any existing pulse schedule, resets the tick counter,
// re-synchronizes the transport (stop, all-notes-off, start), emits the
// first pulse synchronously and then schedules recurring pulses at the new
// interval.
//
// Changing tempo while stopped is legal. A transport failure (such as no
// output bound) aborts the call before any clock state is mutated.
func (c *Clock) SetTempo(bpm int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Transport resync comes first so an unbound output leaves the clock
	// untouched.
	if err := c.out.Stop(); err != nil {
		return err
	}
	if err := c.out.AllNotesOff(); err != nil {
		return err
	}
	if err := c.out.Start(); err != nil {
		return err
	}

	c.stopLocked()
	c.bpm = bpm
	c.tick = 0
	c.pulseLocked()

	stop := make(chan struct{})
	c.stopRun = stop
	go c.run(tickInterval(bpm), stop)
	return nil
}

// Resync resets the tick counter to 0 and re-issues stop/all-notes-off/start
// on the transport without rescheduling the pulse interval. Used to correct
// drift without a tempo change.
func (c *Clock) Resync() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.out.Stop(); err != nil {
		return err
	}
	if err := c.out.AllNotesOff(); err != nil {
		return err
	}
	if err := c.out.Start(); err != nil {
		return err
	}
	c.tick = 0
	return nil
}

// FullStop cancels the pulse schedule and resets the tick counter. The
// tempo is kept; a later SetTempo restarts pulsing.
func (c *Clock) FullStop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	c.tick = 0
}

// SetSuppressed toggles the progression-suppression flag. While set, bar
// boundaries pass without a bar-start signal.
func (c *Clock) SetSuppressed(v bool) {
	c.suppress.Store(v)
}

// Suppressed reports the progression-suppression flag.
func (c *Clock) Suppressed() bool {
	return c.suppress.Load()
}

// Tempo returns the current tempo in BPM (0 before the first SetTempo).
func (c *Clock) Tempo() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bpm
}

// Running reports whether the pulse schedule is active.
func (c *Clock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopRun != nil
}

func (c *Clock) run(interval time.Duration, stop chan struct{}) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			c.pulseFrom(stop)
		}
	}
}

// pulseFrom emits a pulse on behalf of one schedule generation. A goroutine
// that received a tick just before its schedule was cancelled blocks on the
// mutex while SetTempo installs a new generation; its late tick must be
// dropped or the bar position shifts by one pulse.
func (c *Clock) pulseFrom(stop chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopRun != stop {
		return
	}
	c.pulseLocked()
}

// pulse emits one unconditional pulse. Used to drive the clock by hand.
func (c *Clock) pulse() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pulseLocked()
}

// pulseLocked handles one clock pulse: bar-start signal at tick 0 when not
// suppressed, then the low-level timing pulse, then the tick increment
// modulo one bar.
func (c *Clock) pulseLocked() {
	if c.tick == 0 && !c.suppress.Load() && c.onBar != nil {
		c.onBar()
	}
	_ = c.out.ClockPulse()
	c.tick = (c.tick + 1) % TicksPerBar
}

// stopLocked cancels the running pulse goroutine, if any.
func (c *Clock) stopLocked() {
	if c.stopRun != nil {
		close(c.stopRun)
		c.stopRun = nil
	}
}
