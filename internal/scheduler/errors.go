package scheduler

import "errors"

// Error messages are stable: chat operators relay them verbatim.
var (
	// ErrDuplicateRequest rejects an enqueue whose payload is identical to
	// the most recently enqueued payload of the same type.
	ErrDuplicateRequest = errors.New("duplicate request: already queued")

	// ErrRequestAborted resolves a pending waiter whose request was removed
	// by a clear or a full stop before its turn came up.
	ErrRequestAborted = errors.New("request aborted: queue was cleared")

	// ErrInvalidTempo rejects a tempo outside the supported range.
	ErrInvalidTempo = errors.New("invalid tempo")

	// ErrInvalidVolume rejects a volume outside 0-100.
	ErrInvalidVolume = errors.New("invalid volume: must be between 0 and 100")
)
