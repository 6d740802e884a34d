package scheduler

import "time"

// RequestType distinguishes the kinds of playback requests.
//
// Only Progression and Loop participate in turn arbitration; the other
// kinds bypass the queue and act on the transport directly.
type RequestType int

const (
	// Progression is a one-shot chord sequence.
	Progression RequestType = iota
	// Loop is a chord sequence that repeats every bar cycle until stopped.
	Loop
	// Note is a single immediate note.
	Note
	// Tempo is a tempo change.
	Tempo
	// Volume is a velocity scale change.
	Volume
	// Control is a raw controller message or sweep.
	Control
)

// String returns the lowercase request type name.
func (t RequestType) String() string {
	switch t {
	case Progression:
		return "progression"
	case Loop:
		return "loop"
	case Note:
		return "note"
	case Tempo:
		return "tempo"
	case Volume:
		return "volume"
	case Control:
		return "control"
	default:
		return "unknown"
	}
}

// Queued reports whether requests of this type go through turn arbitration.
func (t RequestType) Queued() bool {
	return t == Progression || t == Loop
}

// Step is one playable unit of a parsed sequence: a set of simultaneous
// notes held for a duration.
type Step struct {
	Notes    []uint8
	Duration time.Duration
}

// SequenceParser turns request text into playable steps. Durations are
// derived from the tempo in effect at parse time.
//
// Implemented by music.Theory.
type SequenceParser interface {
	Parse(input string, bpm int) ([]Step, error)
}

// AliasLookup resolves a stored alias name to its request text.
// Implementations return an error for unknown names.
type AliasLookup interface {
	Lookup(name string) (string, error)
}

// AliasFunc adapts a plain function to the AliasLookup interface.
type AliasFunc func(name string) (string, error)

// Lookup implements AliasLookup.
func (f AliasFunc) Lookup(name string) (string, error) { return f(name) }

// NowPlaying records what is currently sounding. At most one exists.
type NowPlaying struct {
	Type    RequestType
	Request string
}

// Pending is one entry of the inspectable queue view.
type Pending struct {
	Type    RequestType
	Request string
}
