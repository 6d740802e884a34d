// Package music maps request text to playable MIDI steps.
//
// It understands chord symbols (C, Am, Gmaj7, F#dim, Bbsus4, slash bass
// C/G), note names with octaves (C4, F#3), and per-token beat counts in
// parentheses (Am(2)). Step durations are derived from the tempo at parse
// time. The package also provides controller-value sweep interpolation.
//
// The scheduler consumes this package only through its SequenceParser
// interface; nothing here touches the queues or the clock.
package music
