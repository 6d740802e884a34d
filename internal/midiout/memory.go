package midiout

import (
	"fmt"
	"sync"
)

// Memory is a Transport that records every message instead of sending it.
// It backs silent runs (no MIDI hardware) and the scheduler tests.
//
// Thread-safety: all methods are safe for concurrent use.
type Memory struct {
	mu     sync.Mutex
	bound  bool
	events []string
	pulses int
}

// NewMemory returns a bound in-process transport.
func NewMemory() *Memory {
	return &Memory{bound: true}
}

// NewUnboundMemory returns a transport that rejects every operation with
// ErrNoOutputBound, for exercising the unbound failure path.
func NewUnboundMemory() *Memory {
	return &Memory{}
}

func (m *Memory) record(ev string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.bound {
		return ErrNoOutputBound
	}
	m.events = append(m.events, ev)
	return nil
}

// NoteOn records a note-on event.
func (m *Memory) NoteOn(key, velocity uint8) error {
	return m.record(fmt.Sprintf("note_on %d %d", key, velocity))
}

// NoteOff records a note-off event.
func (m *Memory) NoteOff(key uint8) error {
	return m.record(fmt.Sprintf("note_off %d", key))
}

// ControlChange records a controller event.
func (m *Memory) ControlChange(controller, value uint8) error {
	return m.record(fmt.Sprintf("cc %d %d", controller, value))
}

// ClockPulse records a timing clock pulse.
func (m *Memory) ClockPulse() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.bound {
		return ErrNoOutputBound
	}
	// Pulses are counted, not appended, to keep event logs readable.
	m.pulses++
	return nil
}

// Start records a start message.
func (m *Memory) Start() error { return m.record("start") }

// Stop records a stop message.
func (m *Memory) Stop() error { return m.record("stop") }

// AllNotesOff records an all-notes-off message.
func (m *Memory) AllNotesOff() error { return m.record("all_notes_off") }

// Close unbinds the transport. Further operations fail with ErrNoOutputBound.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bound = false
	return nil
}

// Events returns a copy of the recorded non-clock events in send order.
func (m *Memory) Events() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	copy(out, m.events)
	return out
}

// Pulses returns the number of clock pulses sent.
func (m *Memory) Pulses() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pulses
}

// Reset clears recorded events and the pulse counter.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
	m.pulses = 0
}
