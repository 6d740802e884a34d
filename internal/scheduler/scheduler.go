package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kant/TwitchMIDI/internal/midiout"
)

// Tempo bounds. Below 20 BPM the MIDI clock would pulse slower than 8 per
// second, above 400 faster than rtmidi reliably delivers.
const (
	MinTempo = 20
	MaxTempo = 400
)

// DefaultVolume is the initial velocity scale in percent.
const DefaultVolume = 100

// finalStepScale shortens the last step of a sequence so the next bar
// boundary is reached before a loop retriggers.
const finalStepScale = 0.9

// Scheduler is the playback coordinator: per-type request queues with
// monotonic turn identifiers, the bar-start turn arbiter, and the client
// protocol (enqueue, wait for turn, execute, advance).
//
// Lock ordering: the clock pulse handler acquires mu, so methods holding mu
// never call into the clock.
type Scheduler struct {
	out     midiout.Transport
	clock   *Clock
	parser  SequenceParser
	aliases AliasLookup

	mu         sync.Mutex
	queues     map[RequestType]*queueState
	waiters    []*waiter
	nowPlaying *NowPlaying
	observers  []func(NowPlaying)
	loopToken  string
	volume     int
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithAliases wires an alias store; request text that matches a stored
// alias name is replaced by the stored request.
func WithAliases(a AliasLookup) Option {
	return func(s *Scheduler) { s.aliases = a }
}

// WithVolume sets the initial velocity scale in percent.
func WithVolume(v int) Option {
	return func(s *Scheduler) { s.volume = clampVolume(v) }
}

// New creates a Scheduler driving the given transport. The clock starts
// stopped; call SetTempo to begin pulsing.
func New(out midiout.Transport, parser SequenceParser, opts ...Option) *Scheduler {
	s := &Scheduler{
		out:    out,
		parser: parser,
		queues: map[RequestType]*queueState{
			Progression: newQueueState(),
			Loop:        newQueueState(),
		},
		volume: DefaultVolume,
	}
	s.clock = NewClock(out, s.barStart)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnNowPlaying registers an observer for now-playing change notifications.
// Observers run on their own goroutines and may block freely.
func (s *Scheduler) OnNowPlaying(fn func(NowPlaying)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// CurrentlyPlaying returns the now-playing record, if any.
func (s *Scheduler) CurrentlyPlaying() (NowPlaying, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nowPlaying == nil {
		return NowPlaying{}, false
	}
	return *s.nowPlaying, true
}

// SetTempo validates the tempo, restarts the clock at the new interval and
// returns the effective BPM.
func (s *Scheduler) SetTempo(bpm int) (int, error) {
	if bpm < MinTempo || bpm > MaxTempo {
		return 0, fmt.Errorf("%w: %d (supported range %d-%d)", ErrInvalidTempo, bpm, MinTempo, MaxTempo)
	}
	if err := s.clock.SetTempo(bpm); err != nil {
		return 0, err
	}
	slog.Info("tempo set", "bpm", bpm)
	return bpm, nil
}

// Tempo returns the current tempo in BPM.
func (s *Scheduler) Tempo() int {
	return s.clock.Tempo()
}

// Resync corrects clock drift: the bar position snaps back to tick 0 and
// the transport is restarted, without changing the pulse interval.
func (s *Scheduler) Resync() error {
	return s.clock.Resync()
}

// FullStop silences the output, cancels the pulse schedule and resets all
// queues, cursors, waiters and the now-playing record to their initial
// state. The tempo is kept for a later SetTempo.
func (s *Scheduler) FullStop() error {
	if err := s.out.AllNotesOff(); err != nil {
		return err
	}
	if err := s.out.Stop(); err != nil {
		return err
	}
	s.clock.FullStop()

	s.mu.Lock()
	for _, w := range s.waiters {
		w.done <- waitResult{err: ErrRequestAborted}
	}
	s.waiters = nil
	for _, q := range s.queues {
		q.reset()
	}
	s.nowPlaying = nil
	s.loopToken = ""
	s.mu.Unlock()

	slog.Info("full stop")
	return nil
}

// SetVolume sets the velocity scale in percent and returns the effective
// value.
func (s *Scheduler) SetVolume(v int) (int, error) {
	if v < 0 || v > 100 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidVolume, v)
	}
	s.mu.Lock()
	s.volume = v
	s.mu.Unlock()
	slog.Info("volume set", "percent", v)
	return v, nil
}

// Volume returns the velocity scale in percent.
func (s *Scheduler) Volume() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

// PlayProgression resolves, validates, enqueues and plays a one-shot chord
// progression, suspended until its turn at a bar boundary. It returns after
// the sequence has sounded and the queue has advanced.
func (s *Scheduler) PlayProgression(ctx context.Context, input string) error {
	payload, steps, err := s.prepare(input)
	if err != nil {
		return err
	}
	turn, err := s.Enqueue(Progression, payload)
	if err != nil {
		return err
	}
	if _, err := s.WaitForTurn(ctx, turn, Progression); err != nil {
		if errors.Is(err, ErrRequestAborted) {
			return nil
		}
		return err
	}
	if err := s.playSteps(ctx, steps); err != nil {
		return err
	}
	s.Advance(Progression)
	return nil
}

// PlayLoop enqueues a repeating chord sequence. Each bar cycle it waits for
// its turn, plays the sequence and advances; the lone-loop rule keeps the
// entry queued so it replays indefinitely. The loop exits gracefully when
// its identity token is replaced by StopLoop or a newer loop, when its
// queue entry is cleared, or when the context is cancelled.
func (s *Scheduler) PlayLoop(ctx context.Context, input string) error {
	payload, _, err := s.prepare(input)
	if err != nil {
		return err
	}

	// Enqueue before taking over the loop identity: a rejected request
	// (duplicate of the loop already playing) must leave the running loop
	// untouched.
	turn, err := s.Enqueue(Loop, payload)
	if err != nil {
		return err
	}

	token := uuid.NewString()
	s.mu.Lock()
	s.loopToken = token
	s.mu.Unlock()

	for s.activeLoopToken() == token {
		if _, err := s.WaitForTurn(ctx, turn, Loop); err != nil {
			if errors.Is(err, ErrRequestAborted) {
				return nil
			}
			return err
		}
		// Re-parse each iteration so tempo changes take effect on the
		// next repetition. The payload was validated at enqueue time.
		steps, err := s.parser.Parse(payload, s.clock.Tempo())
		if err != nil {
			return err
		}
		if err := s.playSteps(ctx, steps); err != nil {
			return err
		}
		s.Advance(Loop)
	}
	return nil
}

// StopLoop replaces the active loop identity token and clears the loop
// queue. The in-flight loop notices at its next iteration check and exits
// gracefully rather than by interruption; a currently-sounding note still
// completes its held duration.
func (s *Scheduler) StopLoop() {
	s.mu.Lock()
	s.loopToken = ""
	s.mu.Unlock()
	s.Clear(Loop, false)
	slog.Info("loop stopped")
}

// PlayNote plays note or chord text immediately, bypassing the queue.
func (s *Scheduler) PlayNote(ctx context.Context, input string) error {
	payload, steps, err := s.prepare(input)
	if err != nil {
		return err
	}
	slog.Debug("playing immediate", "request", payload)
	return s.playNotes(ctx, steps)
}

// SendControl sends a single controller value, bypassing the queue.
func (s *Scheduler) SendControl(controller, value uint8) error {
	return s.out.ControlChange(controller, value)
}

func (s *Scheduler) activeLoopToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loopToken
}

// prepare resolves an alias and validates the whole sequence before any
// turn is consumed, so a parse failure can never strand the cursor
// mid-sequence.
func (s *Scheduler) prepare(input string) (string, []Step, error) {
	input = strings.TrimSpace(input)
	payload := input
	var lookupErr error
	if s.aliases != nil && isBareName(input) {
		if v, err := s.aliases.Lookup(input); err == nil {
			payload = v
		} else {
			lookupErr = err
		}
	}

	steps, err := s.parser.Parse(payload, s.clock.Tempo())
	if err != nil {
		if lookupErr != nil {
			// A single bare word that is neither playable nor a stored
			// alias: surface the alias failure, not the parse failure.
			return "", nil, lookupErr
		}
		return "", nil, err
	}
	return payload, steps, nil
}

// playSteps sounds a validated sequence. Progression-suppression is held
// for the whole sequence so a bar boundary mid-progression cannot
// re-trigger arbitration. The final step is shortened so the next bar
// boundary is reached before a loop retriggers.
func (s *Scheduler) playSteps(ctx context.Context, steps []Step) error {
	s.clock.SetSuppressed(true)
	defer s.clock.SetSuppressed(false)
	return s.sound(ctx, steps, true)
}

// playNotes sounds a sequence without touching suppression, for requests
// that bypass the queue.
func (s *Scheduler) playNotes(ctx context.Context, steps []Step) error {
	return s.sound(ctx, steps, false)
}

func (s *Scheduler) sound(ctx context.Context, steps []Step, shortenLast bool) error {
	vel := s.velocity()
	for i, step := range steps {
		hold := step.Duration
		if shortenLast && i == len(steps)-1 {
			hold = time.Duration(float64(hold) * finalStepScale)
		}
		for _, n := range step.Notes {
			if err := s.out.NoteOn(n, vel); err != nil {
				_ = s.out.AllNotesOff()
				return err
			}
		}
		held := time.NewTimer(hold)
		select {
		case <-ctx.Done():
			held.Stop()
			for _, n := range step.Notes {
				_ = s.out.NoteOff(n)
			}
			return ctx.Err()
		case <-held.C:
		}
		for _, n := range step.Notes {
			if err := s.out.NoteOff(n); err != nil {
				_ = s.out.AllNotesOff()
				return err
			}
		}
	}
	return nil
}

func (s *Scheduler) velocity() uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return uint8(s.volume * 127 / 100)
}

func clampVolume(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// isBareName reports whether the input could be an alias name: one token,
// no beat annotation.
func isBareName(input string) bool {
	return input != "" && !strings.ContainsAny(input, " \t(")
}
