package music

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoteNumber(t *testing.T) {
	tests := []struct {
		name string
		want uint8
	}{
		{"C4", 60},
		{"A4", 69},
		{"F#3", 54},
		{"Bb2", 46},
		{"G9", 127},
		{"c4", 60},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NoteNumber(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNoteNumber_Invalid(t *testing.T) {
	for _, name := range []string{"", "C", "H4", "Cmaj", "G10"} {
		t.Run(name, func(t *testing.T) {
			_, err := NoteNumber(name)
			assert.Error(t, err)
		})
	}
}

func TestNotes_Chords(t *testing.T) {
	tests := []struct {
		symbol string
		want   []uint8
	}{
		{"C", []uint8{60, 64, 67}},
		{"Cmaj", []uint8{60, 64, 67}},
		{"Am", []uint8{69, 72, 76}},
		{"G7", []uint8{67, 71, 74, 77}},
		{"Cmaj7", []uint8{60, 64, 67, 71}},
		{"F#dim", []uint8{66, 69, 72}},
		{"Dsus4", []uint8{62, 67, 69}},
		{"C/G", []uint8{55, 60, 64, 67}},
		{"Am7/G", []uint8{55, 69, 72, 76, 79}},
		{"Bb", []uint8{70, 74, 77}},
		{"C6", []uint8{60, 64, 67, 69}},
		{"E5", []uint8{64, 71}},
		{"G9", []uint8{67, 71, 74, 77, 81}},
	}
	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			got, err := Theory{}.Notes(tt.symbol)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNotes_OctaveOption(t *testing.T) {
	got, err := Theory{Octave: 3}.Notes("C")
	require.NoError(t, err)
	assert.Equal(t, []uint8{48, 52, 55}, got)
}

func TestNotes_SingleNotePassesThrough(t *testing.T) {
	got, err := Theory{}.Notes("E3")
	require.NoError(t, err)
	assert.Equal(t, []uint8{52}, got)
}

// A token that reads as both a chord and a note resolves as the chord:
// G7 is the dominant seventh, not note G in octave 7.
func TestNotes_QualityWinsOverOctave(t *testing.T) {
	got, err := Theory{}.Notes("G7")
	require.NoError(t, err)
	assert.Equal(t, []uint8{67, 71, 74, 77}, got)

	// The note reading stays reachable through NoteNumber directly.
	key, err := NoteNumber("G7")
	require.NoError(t, err)
	assert.Equal(t, uint8(103), key)
}

func TestNotes_Invalid(t *testing.T) {
	for _, symbol := range []string{"Xmaj", "Cweird", "C/", "C/H", ""} {
		t.Run(symbol, func(t *testing.T) {
			_, err := Theory{}.Notes(symbol)
			assert.ErrorIs(t, err, ErrInvalidChord)
		})
	}
}

func TestParse_Durations(t *testing.T) {
	steps, err := Theory{}.Parse("C Am(2) G(0.5)", 120)
	require.NoError(t, err)
	require.Len(t, steps, 3)

	assert.Equal(t, 2*time.Second, steps[0].Duration, "bare token lasts one bar")
	assert.Equal(t, time.Second, steps[1].Duration)
	assert.Equal(t, 250*time.Millisecond, steps[2].Duration)
}

func TestParse_TempoScalesDurations(t *testing.T) {
	at120, err := Theory{}.Parse("C", 120)
	require.NoError(t, err)
	at60, err := Theory{}.Parse("C", 60)
	require.NoError(t, err)

	assert.Equal(t, 2*at120[0].Duration, at60[0].Duration)
}

func TestParse_RequiresTempo(t *testing.T) {
	_, err := Theory{}.Parse("C", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tempo not set")
}

func TestParse_Invalid(t *testing.T) {
	tests := []string{"", "   ", "C()", "C(-1)", "C(x)", "(2)", "C Am Xyz"}
	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			_, err := Theory{}.Parse(input, 120)
			assert.Error(t, err)
		})
	}
}
