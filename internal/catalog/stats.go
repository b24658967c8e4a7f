package catalog

import (
	"context"
	"fmt"
)

// StageStats returns per-status counts for every persisted stage plus the
// corpus totals shown by --stats.
func (s *Store) StageStats(ctx context.Context) (Stats, error) {
	var stats Stats
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1), COALESCE(SUM(starred), 0) FROM items`,
	).Scan(&stats.Total, &stats.Starred); err != nil {
		return stats, fmt.Errorf("count items: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM items_fts`).Scan(&stats.Indexed); err != nil {
		return stats, fmt.Errorf("count index rows: %w", err)
	}

	for _, stage := range []Stage{StageDownload, StageExtract, StageAnalyze, StageMirror} {
		counts, err := s.stageCounts(ctx, stage)
		if err != nil {
			return stats, err
		}
		stats.Stages = append(stats.Stages, counts)
	}

	var err error
	if stats.TopLanguages, err = s.topValues(ctx,
		`SELECT language, COUNT(1) FROM items WHERE language IS NOT NULL AND language <> ''
         GROUP BY language ORDER BY COUNT(1) DESC, language LIMIT 10`); err != nil {
		return stats, err
	}
	if stats.TopTags, err = s.topValues(ctx,
		`SELECT j.value, COUNT(1) FROM items, json_each(items.tags) AS j
         WHERE items.tags IS NOT NULL
         GROUP BY j.value ORDER BY COUNT(1) DESC, j.value LIMIT 20`); err != nil {
		return stats, err
	}
	if stats.Models, err = s.topValues(ctx,
		`SELECT analysis_model, COUNT(1) FROM items WHERE analysis_model IS NOT NULL AND analysis_model <> ''
         GROUP BY analysis_model ORDER BY COUNT(1) DESC, analysis_model`); err != nil {
		return stats, err
	}
	return stats, nil
}

func (s *Store) stageCounts(ctx context.Context, stage Stage) (StageCounts, error) {
	counts := StageCounts{Stage: stage}
	col := statusColumn[stage]
	rows, err := s.db.QueryContext(ctx, `SELECT `+col+`, COUNT(1) FROM items GROUP BY `+col)
	if err != nil {
		return counts, fmt.Errorf("%s stats: %w", stage, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status Status
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return counts, err
		}
		switch status {
		case StatusNotStarted:
			counts.NotStarted = n
		case StatusInProgress:
			counts.InProgress = n
		case StatusDone:
			counts.Done = n
		case StatusFailed:
			counts.Failed = n
		}
	}
	return counts, rows.Err()
}

func (s *Store) topValues(ctx context.Context, query string) ([]Count, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("top values: %w", err)
	}
	defer rows.Close()
	var out []Count
	for rows.Next() {
		var c Count
		if err := rows.Scan(&c.Value, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
