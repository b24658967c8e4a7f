package pipeline

import (
	"time"

	"archivist/internal/catalog"
)

// RunOptions controls a single batch.
type RunOptions struct {
	// Limit caps the number of claimed items; zero claims the whole backlog.
	Limit int
	// Delay is slept between consecutive external calls.
	Delay time.Duration
	// TestMode caps the batch at the configured test batch size.
	TestMode bool
	// Force re-processes items already done.
	Force bool
	// NodeIDs restricts the claim to the listed items.
	NodeIDs []int64
}

// BatchReport summarizes one Executor.Run invocation.
type BatchReport struct {
	RunID     string
	Stage     catalog.Stage
	Attempted int
	Succeeded int
	Failed    int
	Skipped   int
	// Abandoned counts claimed items failed unprocessed after cancellation.
	Abandoned int
	Forced    bool
	Cancelled bool
	Started   time.Time
	Finished  time.Time
}

// Duration reports the wall time of the batch.
func (r BatchReport) Duration() time.Duration {
	if r.Finished.IsZero() {
		return 0
	}
	return r.Finished.Sub(r.Started)
}

func (r BatchReport) record() catalog.RunRecord {
	return catalog.RunRecord{
		RunID:     r.RunID,
		Stage:     r.Stage,
		Attempted: r.Attempted,
		Succeeded: r.Succeeded,
		Failed:    r.Failed,
		Skipped:   r.Skipped,
		Forced:    r.Forced,
		Cancelled: r.Cancelled,
		StartedAt: r.Started,
		Finished:  r.Finished,
	}
}
