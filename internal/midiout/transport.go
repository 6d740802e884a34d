package midiout

import "errors"

// ErrNoOutputBound is returned by any transport operation that requires an
// open output port before one has been bound. The operation is aborted and
// no state is mutated.
var ErrNoOutputBound = errors.New("no MIDI output bound")

// Transport is the wire-level MIDI surface the scheduler drives.
//
// Implementations must be safe for concurrent use: the clock goroutine sends
// pulses while playback goroutines send notes.
type Transport interface {
	// NoteOn triggers a note at the given velocity.
	NoteOn(key, velocity uint8) error

	// NoteOff releases a note.
	NoteOff(key uint8) error

	// ControlChange sends a controller value.
	ControlChange(controller, value uint8) error

	// ClockPulse sends one MIDI timing clock message (24 per quarter note).
	ClockPulse() error

	// Start sends a MIDI start message.
	Start() error

	// Stop sends a MIDI stop message.
	Stop() error

	// AllNotesOff silences every sounding note on the channel (CC 123).
	AllNotesOff() error

	// Close releases the underlying port.
	Close() error
}
