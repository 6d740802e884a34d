package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type waitOutcome struct {
	payload string
	err     error
}

func startWaiter(s *Scheduler, turn int64, typ RequestType) chan waitOutcome {
	out := make(chan waitOutcome, 1)
	go func() {
		payload, err := s.WaitForTurn(context.Background(), turn, typ)
		out <- waitOutcome{payload, err}
	}()
	return out
}

func requireResolved(t *testing.T, out chan waitOutcome) waitOutcome {
	t.Helper()
	select {
	case res := <-out:
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("waiter did not resolve")
		return waitOutcome{}
	}
}

func awaitWaiters(t *testing.T, s *Scheduler, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return len(s.waiters) == n
	}, time.Second, time.Millisecond)
}

func requireStillWaiting(t *testing.T, out chan waitOutcome) {
	t.Helper()
	select {
	case res := <-out:
		t.Fatalf("waiter resolved early: %+v", res)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestWaitForTurn_ResolvesOnBarStart(t *testing.T) {
	s, _ := newTestScheduler()

	turn, err := s.Enqueue(Progression, "Cmaj Gmaj")
	require.NoError(t, err)
	out := startWaiter(s, turn, Progression)

	requireStillWaiting(t, out)
	awaitWaiters(t, s, 1)

	s.barStart()
	res := requireResolved(t, out)
	require.NoError(t, res.err)
	assert.Equal(t, "Cmaj Gmaj", res.payload)

	np, ok := s.CurrentlyPlaying()
	require.True(t, ok)
	assert.Equal(t, NowPlaying{Type: Progression, Request: "Cmaj Gmaj"}, np)
}

func TestWaitForTurn_LoopYieldsToProgression(t *testing.T) {
	s, _ := newTestScheduler()

	loopTurn, err := s.Enqueue(Loop, "Am Fmaj")
	require.NoError(t, err)
	_, err = s.Enqueue(Progression, "Cmaj")
	require.NoError(t, err)

	out := startWaiter(s, loopTurn, Loop)
	// Wait until the waiter is registered before pulsing bar starts.
	awaitWaiters(t, s, 1)

	s.barStart()
	requireStillWaiting(t, out)

	// Once the progression queue drains the loop may sound.
	s.Clear(Progression, false)
	s.barStart()
	res := requireResolved(t, out)
	require.NoError(t, res.err)
	assert.Equal(t, "Am Fmaj", res.payload)
}

func TestWaitForTurn_ResolvesInTurnOrder(t *testing.T) {
	s, _ := newTestScheduler()

	first, err := s.Enqueue(Progression, "Cmaj")
	require.NoError(t, err)
	second, err := s.Enqueue(Progression, "Gmaj")
	require.NoError(t, err)

	outFirst := startWaiter(s, first, Progression)
	outSecond := startWaiter(s, second, Progression)
	awaitWaiters(t, s, 2)

	s.barStart()
	res := requireResolved(t, outFirst)
	require.NoError(t, res.err)
	assert.Equal(t, "Cmaj", res.payload)
	requireStillWaiting(t, outSecond)

	s.Advance(Progression)
	s.barStart()
	res = requireResolved(t, outSecond)
	require.NoError(t, res.err)
	assert.Equal(t, "Gmaj", res.payload)
}

func TestWaitForTurn_AbortedByClear(t *testing.T) {
	s, _ := newTestScheduler()

	turn, err := s.Enqueue(Loop, "Am Fmaj")
	require.NoError(t, err)
	out := startWaiter(s, turn, Loop)
	awaitWaiters(t, s, 1)

	s.Clear(Loop, false)
	res := requireResolved(t, out)
	assert.ErrorIs(t, res.err, ErrRequestAborted)
}

func TestWaitForTurn_ContextCancel(t *testing.T) {
	s, _ := newTestScheduler()

	turn, err := s.Enqueue(Progression, "Cmaj")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan waitOutcome, 1)
	go func() {
		payload, werr := s.WaitForTurn(ctx, turn, Progression)
		out <- waitOutcome{payload, werr}
	}()
	awaitWaiters(t, s, 1)

	cancel()
	res := requireResolved(t, out)
	assert.ErrorIs(t, res.err, context.Canceled)

	// The subscription is removed; a later bar start has nobody to wake.
	s.barStart()
	s.mu.Lock()
	assert.Empty(t, s.waiters)
	s.mu.Unlock()
}

func TestBarStart_ResolvesEachWaiterOnce(t *testing.T) {
	s, _ := newTestScheduler()

	turn, err := s.Enqueue(Progression, "Cmaj")
	require.NoError(t, err)
	out := startWaiter(s, turn, Progression)
	awaitWaiters(t, s, 1)

	s.barStart()
	s.barStart()

	requireResolved(t, out)
	s.mu.Lock()
	assert.Empty(t, s.waiters)
	s.mu.Unlock()
}

func TestOnNowPlaying_NotifiesOnChange(t *testing.T) {
	s, _ := newTestScheduler()

	changes := make(chan NowPlaying, 4)
	s.OnNowPlaying(func(np NowPlaying) { changes <- np })

	turn, err := s.Enqueue(Progression, "Cmaj Gmaj")
	require.NoError(t, err)
	out := startWaiter(s, turn, Progression)
	awaitWaiters(t, s, 1)

	s.barStart()
	requireResolved(t, out)

	select {
	case np := <-changes:
		assert.Equal(t, NowPlaying{Type: Progression, Request: "Cmaj Gmaj"}, np)
	case <-time.After(2 * time.Second):
		t.Fatal("no now-playing notification")
	}

	// A bar start with no waiters does not repeat the notification.
	s.barStart()
	select {
	case np := <-changes:
		t.Fatalf("unexpected notification: %+v", np)
	case <-time.After(20 * time.Millisecond):
	}
}
