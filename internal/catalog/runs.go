package catalog

import (
	"context"
	"fmt"
	"time"
)

// RunRecord is the persisted outcome of one stage batch.
type RunRecord struct {
	RunID     string
	Stage     Stage
	Attempted int
	Succeeded int
	Failed    int
	Skipped   int
	Forced    bool
	Cancelled bool
	StartedAt time.Time
	Finished  time.Time
}

// RecordRun stores a batch outcome in the run ledger.
func (s *Store) RecordRun(ctx context.Context, run RunRecord) error {
	if run.RunID == "" {
		return fmt.Errorf("record run: empty run id")
	}
	_, err := s.execWithRetry(ctx,
		`INSERT INTO runs (run_id, stage, attempted, succeeded, failed, skipped, forced, cancelled, started_at, finished_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, string(run.Stage), run.Attempted, run.Succeeded, run.Failed, run.Skipped,
		boolToInt(run.Forced), boolToInt(run.Cancelled),
		run.StartedAt.UTC().Format(timeLayout), run.Finished.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// RecentRuns returns the latest runs, newest first. An empty stage returns all stages.
func (s *Store) RecentRuns(ctx context.Context, stage Stage, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `SELECT run_id, stage, attempted, succeeded, failed, skipped, forced, cancelled, started_at, finished_at FROM runs`
	args := []any{}
	if stage != "" {
		query += ` WHERE stage = ?`
		args = append(args, string(stage))
	}
	query += ` ORDER BY started_at DESC, run_id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()
	var out []RunRecord
	for rows.Next() {
		var (
			run               RunRecord
			stageName         string
			forced, cancelled int
			started, finished string
		)
		if err := rows.Scan(&run.RunID, &stageName, &run.Attempted, &run.Succeeded, &run.Failed,
			&run.Skipped, &forced, &cancelled, &started, &finished); err != nil {
			return nil, err
		}
		run.Stage = Stage(stageName)
		run.Forced = forced != 0
		run.Cancelled = cancelled != 0
		run.StartedAt, _ = parseTimeString(started)
		run.Finished, _ = parseTimeString(finished)
		out = append(out, run)
	}
	return out, rows.Err()
}
