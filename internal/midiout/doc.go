// Package midiout provides the MIDI output transport.
//
// The scheduler never talks to a MIDI library directly; it sends through
// the Transport interface. Two implementations exist:
//
//   - Driver: a real output port via gomidi/rtmidi
//   - Memory: an in-process recorder used by tests and silent runs
//
// All Transport methods are safe to call before a port is bound; they
// return ErrNoOutputBound instead of panicking, so callers can surface
// the failure without mutating their own state.
package midiout
