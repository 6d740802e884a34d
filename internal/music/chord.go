package music

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kant/TwitchMIDI/internal/scheduler"
)

// ErrInvalidChord rejects request text that cannot be mapped to notes.
// The stable prefix lets chat operators relay the message verbatim.
var ErrInvalidChord = errors.New("invalid chord")

// defaultBeats is the length of a token without a beat annotation: one
// full 4/4 bar.
const defaultBeats = 4.0

// Theory is the chord/note parser. The zero value parses with chords
// voiced around octave 4 (C4 = MIDI 60).
type Theory struct {
	// Octave is the chord voicing octave; 0 means 4.
	Octave int
}

var _ scheduler.SequenceParser = Theory{}

// Parse maps request text to steps. Each whitespace-separated token is one
// step: a chord symbol or a note name, optionally followed by a beat count
// in parentheses. A token without a beat count lasts one bar.
func (t Theory) Parse(input string, bpm int) ([]scheduler.Step, error) {
	if bpm <= 0 {
		return nil, fmt.Errorf("tempo not set, cannot derive step durations")
	}
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty request", ErrInvalidChord)
	}

	steps := make([]scheduler.Step, 0, len(fields))
	for _, token := range fields {
		name, beats, err := splitBeats(token)
		if err != nil {
			return nil, err
		}
		notes, err := t.Notes(name)
		if err != nil {
			return nil, err
		}
		steps = append(steps, scheduler.Step{
			Notes:    notes,
			Duration: beatDuration(bpm, beats),
		})
	}
	return steps, nil
}

// Notes maps a single chord symbol or note name to MIDI note numbers.
//
// Chord qualities take precedence over note octaves when a token reads as
// both: G7 is the dominant seventh chord, not note G in octave 7. A token
// whose suffix names no quality (C4, F#3) parses as a single note.
func (t Theory) Notes(name string) ([]uint8, error) {
	notes, chordErr := t.chordNotes(name)
	if chordErr == nil {
		return notes, nil
	}
	if key, err := NoteNumber(name); err == nil {
		return []uint8{key}, nil
	}
	return nil, chordErr
}

// NoteNumber converts a note name with octave (C4, F#3, Bb2) to its MIDI
// note number, with C4 = 60.
func NoteNumber(name string) (uint8, error) {
	if len(name) < 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidChord, name)
	}
	semitone, rest, err := rootSemitone(name)
	if err != nil {
		return 0, err
	}
	octave, err := strconv.Atoi(rest)
	if err != nil {
		return 0, fmt.Errorf("%w: %q has no octave", ErrInvalidChord, name)
	}
	key := (octave+1)*12 + semitone
	if key < 0 || key > 127 {
		return 0, fmt.Errorf("%w: %q is out of MIDI range", ErrInvalidChord, name)
	}
	return uint8(key), nil
}

// chordNotes builds a chord from its symbol: root triad quality, seventh
// and extension intervals, and an optional slash bass one octave below.
func (t Theory) chordNotes(symbol string) ([]uint8, error) {
	base := symbol
	bass := ""
	if i := strings.IndexByte(symbol, '/'); i >= 0 {
		base, bass = symbol[:i], symbol[i+1:]
		if bass == "" {
			return nil, fmt.Errorf("%w: %q has an invalid bass note", ErrInvalidChord, symbol)
		}
	}

	semitone, rest, err := rootSemitone(base)
	if err != nil {
		return nil, err
	}
	intervals, err := chordIntervals(rest)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidChord, symbol)
	}

	octave := t.Octave
	if octave == 0 {
		octave = 4
	}
	root := (octave+1)*12 + semitone

	notes := make([]uint8, 0, len(intervals)+1)
	if bass != "" {
		bassSemitone, bassRest, err := rootSemitone(bass)
		if err != nil || bassRest != "" {
			return nil, fmt.Errorf("%w: %q has an invalid bass note", ErrInvalidChord, symbol)
		}
		notes = append(notes, uint8(octave*12+bassSemitone))
	}
	for _, iv := range intervals {
		key := root + iv
		if key < 0 || key > 127 {
			continue
		}
		notes = append(notes, uint8(key))
	}
	if len(notes) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidChord, symbol)
	}
	return notes, nil
}

// rootSemitone parses a leading note letter plus optional accidental and
// returns its semitone offset from C and the remaining text.
func rootSemitone(s string) (int, string, error) {
	if s == "" {
		return 0, "", fmt.Errorf("%w: empty token", ErrInvalidChord)
	}
	offsets := map[byte]int{'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11}
	letter := s[0]
	if letter >= 'a' && letter <= 'g' {
		letter -= 'a' - 'A'
	}
	semitone, ok := offsets[letter]
	if !ok {
		return 0, "", fmt.Errorf("%w: %q", ErrInvalidChord, s)
	}
	rest := s[1:]
	if rest != "" {
		switch rest[0] {
		case '#':
			semitone++
			rest = rest[1:]
		case 'b':
			semitone--
			rest = rest[1:]
		}
	}
	return (semitone + 12) % 12, rest, nil
}

// chordIntervals maps a quality suffix to semitone intervals from the root.
func chordIntervals(suffix string) ([]int, error) {
	major := []int{0, 4, 7}
	minor := []int{0, 3, 7}

	switch suffix {
	case "", "maj", "M":
		return major, nil
	case "m", "min":
		return minor, nil
	case "dim":
		return []int{0, 3, 6}, nil
	case "aug":
		return []int{0, 4, 8}, nil
	case "sus2":
		return []int{0, 2, 7}, nil
	case "sus4":
		return []int{0, 5, 7}, nil
	case "5":
		return []int{0, 7}, nil
	case "6":
		return append(major, 9), nil
	case "m6", "min6":
		return append(minor, 9), nil
	case "7":
		return append(major, 10), nil
	case "maj7", "M7":
		return append(major, 11), nil
	case "m7", "min7":
		return append(minor, 10), nil
	case "dim7":
		return []int{0, 3, 6, 9}, nil
	case "m7b5":
		return []int{0, 3, 6, 10}, nil
	case "9":
		return append(major, 10, 14), nil
	case "maj9", "M9":
		return append(major, 11, 14), nil
	case "m9", "min9":
		return append(minor, 10, 14), nil
	case "add9":
		return append(major, 14), nil
	case "7sus4":
		return []int{0, 5, 7, 10}, nil
	case "11":
		return append(major, 10, 14, 17), nil
	case "13":
		return append(major, 10, 14, 21), nil
	default:
		return nil, fmt.Errorf("unknown chord quality %q", suffix)
	}
}

// splitBeats splits an optional trailing beat annotation: "Am(2)" is the
// chord Am held for two beats.
func splitBeats(token string) (string, float64, error) {
	open := strings.IndexByte(token, '(')
	if open < 0 {
		return token, defaultBeats, nil
	}
	if !strings.HasSuffix(token, ")") || open == 0 {
		return "", 0, fmt.Errorf("%w: malformed beat count in %q", ErrInvalidChord, token)
	}
	beats, err := strconv.ParseFloat(token[open+1:len(token)-1], 64)
	if err != nil || beats <= 0 {
		return "", 0, fmt.Errorf("%w: malformed beat count in %q", ErrInvalidChord, token)
	}
	return token[:open], beats, nil
}

// beatDuration converts beats at a tempo to wall time.
func beatDuration(bpm int, beats float64) time.Duration {
	return time.Duration(beats * float64(time.Minute) / float64(bpm))
}
