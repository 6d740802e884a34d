// Package scheduler implements the bar-synchronized playback scheduler.
//
// The scheduler keeps every playback request locked to a shared musical
// clock: 24 MIDI pulses per quarter note, 96 pulses per 4/4 bar. Requests
// are queued per type with monotonically increasing turn identifiers, and
// a turn arbiter decides at each bar boundary which request may start.
//
// ARCHITECTURE:
//
// Clock goroutine:
// A single goroutine emits timing pulses at the tempo-derived interval.
// At pulse 0 of a bar (unless a progression is actively sounding) it fires
// the bar-start fan-out. The pulse handler never blocks: waiter resolution
// is a buffered channel send and observers are notified asynchronously.
//
// Turn arbitration:
// Callers enqueue a request, receive a turn id, and suspend in WaitForTurn
// until a bar-start at which their turn is current and the collision-free
// predicate holds. Progressions take priority: a loop never starts or
// continues while a progression request is pending. A lone loop (no queued
// successor) keeps replaying because Advance is a no-op for it.
//
// All queue, cursor, now-playing, and waiter state lives in one Scheduler
// struct behind one mutex. The clock goroutine acquires it inside the pulse
// handler, so scheduler methods must not call into the clock while holding
// it.
//
// Turn identifiers are unique and strictly increasing within a type and are
// never reused. Cursors only move forward. Waiter subscriptions are
// one-shot: each is resolved exactly once and removed atomically with its
// resolution.
package scheduler
