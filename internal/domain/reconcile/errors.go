package reconcile

import "errors"

// Sentinel kinds for reconciliation errors.
var (
	// ErrParse marks an unreadable sheet (header or stream level);
	// individual bad rows are summary entries, not errors.
	ErrParse = errors.New("sheet parse failed")

	// ErrLoadSnapshot marks a failed LoadExisting stage. The run aborts
	// before any clearing: no partial state without a complete snapshot.
	ErrLoadSnapshot = errors.New("load snapshot failed")

	// ErrBackpressure marks an op rejected by a full write queue.
	ErrBackpressure = errors.New("write queue full")

	// ErrRunInProgress rejects a reconciliation started while another
	// one still holds the run lock.
	ErrRunInProgress = errors.New("reconciliation already running")
)
