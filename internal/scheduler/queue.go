package scheduler

import (
	"log/slog"
	"slices"
)

// queueState is the per-type request queue.
//
// Entries map turn identifiers to payloads; a missing key is a tombstone.
// lastID is the highest assigned turn id (-1 before the first enqueue, so
// the first assigned id is 0). The cursor is the turn currently eligible to
// run; it only ever moves forward, via advance. A cleared slot below a live
// entry is skipped by currentTurn, never by rewinding the cursor.
type queueState struct {
	entries map[int64]string
	lastID  int64
	cursor  int64
	backup  map[int64]string
}

func newQueueState() *queueState {
	return &queueState{
		entries: make(map[int64]string),
		lastID:  -1,
	}
}

func (q *queueState) empty() bool {
	return len(q.entries) == 0
}

// currentTurn is the eligible turn: the cursor when a live entry exists
// there, otherwise the smallest live id above it, otherwise the cursor.
func (q *queueState) currentTurn() int64 {
	if _, ok := q.entries[q.cursor]; ok {
		return q.cursor
	}
	turn := q.cursor
	found := false
	for id := range q.entries {
		if id > q.cursor && (!found || id < turn) {
			turn = id
			found = true
		}
	}
	return turn
}

// nextAfter returns the smallest live id strictly above the given turn.
func (q *queueState) nextAfter(turn int64) (int64, bool) {
	var next int64
	found := false
	for id := range q.entries {
		if id > turn && (!found || id < next) {
			next = id
			found = true
		}
	}
	return next, found
}

func (q *queueState) reset() {
	q.entries = make(map[int64]string)
	q.lastID = -1
	q.cursor = 0
	q.backup = nil
}

// Enqueue stores a request and returns its turn identifier. The payload is
// rejected when it equals the payload most recently assigned the highest
// turn id for the type, so identical requests cannot stack accidentally.
func (s *Scheduler) Enqueue(typ RequestType, payload string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := s.queues[typ]
	if last, ok := q.entries[q.lastID]; ok && last == payload {
		return 0, ErrDuplicateRequest
	}
	q.lastID++
	q.entries[q.lastID] = payload
	slog.Debug("request queued", "type", typ.String(), "turn", q.lastID, "request", payload)
	return q.lastID, nil
}

// Advance completes the current turn: the entry at the eligible turn is
// deleted and the cursor moves to the next live turn (or one past the
// completed turn when none is queued).
//
// Lone-loop rule: for the loop type, when the current entry is live and no
// successor is queued, Advance is a no-op so the same loop entry keeps
// being replayed instead of being silently dropped.
//
// When both arbitrated queues end up empty the now-playing record is
// cleared.
func (s *Scheduler) Advance(typ RequestType) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := s.queues[typ]
	if q.empty() {
		return
	}
	cur := q.currentTurn()
	next, hasNext := q.nextAfter(cur)
	if _, live := q.entries[cur]; live && typ == Loop && !hasNext {
		return
	}

	delete(q.entries, cur)
	if hasNext {
		q.cursor = next
	} else {
		q.cursor = cur + 1
	}
	slog.Debug("queue advanced", "type", typ.String(), "cursor", q.cursor)
	s.dropNowPlayingIfIdleLocked()
}

// IsEmpty reports whether the type's queue has no live entries.
func (s *Scheduler) IsEmpty(typ RequestType) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queues[typ].empty()
}

// Clear empties the type's live queue. With backup=true the current entries
// are first snapshotted into the backup slot, replacing any previous
// snapshot; with backup=false the backup slot is cleared too. Pending
// waiters of the type are woken with ErrRequestAborted.
func (s *Scheduler) Clear(typ RequestType, backup bool) {
	s.ClearMany(backup, typ)
}

// ClearAll clears every arbitrated queue. Clearing both the progression and
// loop queues also clears the now-playing record.
func (s *Scheduler) ClearAll(backup bool) {
	s.ClearMany(backup, Progression, Loop)
}

// ClearMany clears several queues atomically with respect to observers.
func (s *Scheduler) ClearMany(backup bool, types ...RequestType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, typ := range types {
		s.clearLocked(typ, backup)
	}
	s.dropNowPlayingIfIdleLocked()
}

func (s *Scheduler) clearLocked(typ RequestType, backup bool) {
	q := s.queues[typ]
	if backup {
		snap := make(map[int64]string, len(q.entries))
		for id, payload := range q.entries {
			snap[id] = payload
		}
		q.backup = snap
	} else {
		q.backup = nil
	}
	q.entries = make(map[int64]string)
	s.abortWaitersLocked(typ)
	slog.Debug("queue cleared", "type", typ.String(), "backup", backup)
}

// Rollback merges the backup snapshot back under the live queue. Live
// entries take precedence on key collision; entries the cursor has already
// passed stay tombstoned. The snapshot is consumed.
func (s *Scheduler) Rollback(typ RequestType) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := s.queues[typ]
	if q.backup == nil {
		return
	}
	for id, payload := range q.backup {
		if _, live := q.entries[id]; !live && id >= q.cursor {
			q.entries[id] = payload
		}
	}
	q.backup = nil
	slog.Debug("queue rolled back", "type", typ.String())
}

// PendingQueue returns the inspectable queue view: backup snapshot merged
// with live entries (live precedence), tombstones excluded, ordered by turn
// id from the cursor upward, progression entries before loop entries.
func (s *Scheduler) PendingQueue() []Pending {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Pending
	for _, typ := range []RequestType{Progression, Loop} {
		q := s.queues[typ]
		merged := make(map[int64]string, len(q.entries)+len(q.backup))
		for id, payload := range q.backup {
			merged[id] = payload
		}
		for id, payload := range q.entries {
			merged[id] = payload
		}
		ids := make([]int64, 0, len(merged))
		for id := range merged {
			if id >= q.cursor {
				ids = append(ids, id)
			}
		}
		slices.Sort(ids)
		for _, id := range ids {
			out = append(out, Pending{Type: typ, Request: merged[id]})
		}
	}
	return out
}

// dropNowPlayingIfIdleLocked clears the now-playing record once both
// arbitrated queues are empty.
func (s *Scheduler) dropNowPlayingIfIdleLocked() {
	if s.queues[Progression].empty() && s.queues[Loop].empty() {
		s.nowPlaying = nil
	}
}
