package scheduler

import "context"

type waitResult struct {
	payload string
	err     error
}

// waiter is a one-shot bar-start subscription. It is resolved at most once
// and removed from the subscription list atomically with its resolution, so
// a later bar cannot fire it again.
type waiter struct {
	typ  RequestType
	turn int64
	done chan waitResult // buffered, capacity 1
}

// WaitForTurn suspends until a bar-start signal at which the given turn is
// the type's current turn and the collision-free predicate holds. It
// returns the payload resolved for the turn.
//
// A caller whose turn is not next, or whose type is blocked by the
// collision rule, keeps waiting silently until conditions change. The wait
// ends early with ErrRequestAborted when the queue is cleared or fully
// stopped, or with the context error on cancellation.
func (s *Scheduler) WaitForTurn(ctx context.Context, turn int64, typ RequestType) (string, error) {
	w := &waiter{typ: typ, turn: turn, done: make(chan waitResult, 1)}
	s.mu.Lock()
	s.waiters = append(s.waiters, w)
	s.mu.Unlock()

	select {
	case res := <-w.done:
		return res.payload, res.err
	case <-ctx.Done():
		s.removeWaiter(w)
		// A bar-start may have resolved the waiter while we were being
		// cancelled; prefer the resolution.
		select {
		case res := <-w.done:
			return res.payload, res.err
		default:
			return "", ctx.Err()
		}
	}
}

// barStart is the bar boundary fan-out, invoked from the clock pulse
// handler. It must never block: waiter resolution is a buffered send and
// observers are notified on their own goroutines.
//
// Every current waiter is re-evaluated; eligible ones are resolved exactly
// once and dropped from the list before the next pulse can be processed.
func (s *Scheduler) barStart() {
	s.mu.Lock()
	var changed *NowPlaying
	kept := s.waiters[:0]
	for _, w := range s.waiters {
		if !s.eligibleLocked(w.turn, w.typ) {
			kept = append(kept, w)
			continue
		}
		q := s.queues[w.typ]
		payload := q.entries[q.currentTurn()]
		if payload != "" && !s.isNowPlayingLocked(w.typ, payload) {
			np := &NowPlaying{Type: w.typ, Request: payload}
			s.nowPlaying = np
			changed = np
		}
		w.done <- waitResult{payload: payload}
	}
	s.waiters = kept
	observers := s.observers
	s.mu.Unlock()

	if changed != nil {
		for _, fn := range observers {
			go fn(*changed)
		}
	}
}

// eligibleLocked is the arbitration rule: the turn must be the type's
// current turn and the type must be collision-free.
func (s *Scheduler) eligibleLocked(turn int64, typ RequestType) bool {
	return turn == s.queues[typ].currentTurn() && s.collisionFreeLocked(typ)
}

// collisionFreeLocked permits a type to proceed without overlapping the
// other type's output: its queue must be non-empty, and loop playback never
// starts or continues while any progression request is pending.
func (s *Scheduler) collisionFreeLocked(typ RequestType) bool {
	if s.queues[typ].empty() {
		return false
	}
	if typ == Loop && !s.queues[Progression].empty() {
		return false
	}
	return true
}

func (s *Scheduler) isNowPlayingLocked(typ RequestType, payload string) bool {
	return s.nowPlaying != nil && s.nowPlaying.Type == typ && s.nowPlaying.Request == payload
}

// abortWaitersLocked wakes every waiter of the type with ErrRequestAborted.
// Called when the type's queue is cleared or the scheduler fully stops, so
// one-shot subscriptions cannot leak.
func (s *Scheduler) abortWaitersLocked(typ RequestType) {
	kept := s.waiters[:0]
	for _, w := range s.waiters {
		if w.typ == typ {
			w.done <- waitResult{err: ErrRequestAborted}
			continue
		}
		kept = append(kept, w)
	}
	s.waiters = kept
}

func (s *Scheduler) removeWaiter(target *waiter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.waiters[:0]
	for _, w := range s.waiters {
		if w != target {
			kept = append(kept, w)
		}
	}
	s.waiters = kept
}
