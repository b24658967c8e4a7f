package catalog

import (
	"context"
	"database/sql"
	"fmt"
)

const indexInsert = `INSERT INTO items_fts (rowid, title, text_content, summary, tags, series, item_type)
    SELECT node_id, title, COALESCE(text_content, ''), COALESCE(summary, ''),
           COALESCE(tags, ''), COALESCE(series, ''), COALESCE(item_type, '')
    FROM items`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// syncIndex replaces the FTS row for one item. Items without extracted text
// have no row.
func syncIndex(ctx context.Context, tx execer, nodeID int64) error {
	if err := dropIndex(ctx, tx, nodeID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, indexInsert+` WHERE node_id = ? AND extract_status = 'done'`, nodeID); err != nil {
		return fmt.Errorf("insert index row: %w", err)
	}
	return nil
}

func dropIndex(ctx context.Context, tx execer, nodeID int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM items_fts WHERE rowid = ?`, nodeID); err != nil {
		return fmt.Errorf("delete index row: %w", err)
	}
	return nil
}

// RebuildIndex recreates every FTS row from the items table and returns the
// number of indexed items.
func (s *Store) RebuildIndex(ctx context.Context) (int, error) {
	var indexed int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM items_fts`); err != nil {
			return indexError(0, err)
		}
		res, err := tx.ExecContext(ctx, indexInsert+` WHERE extract_status = 'done'`)
		if err != nil {
			return indexError(0, err)
		}
		indexed, err = res.RowsAffected()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO items_fts(items_fts) VALUES('optimize')`); err != nil {
			return indexError(0, err)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("rebuild index: %w", err)
	}
	return int(indexed), nil
}

// IndexReport compares the FTS table with the extracted items.
type IndexReport struct {
	Indexed   int
	Extracted int
	Missing   int
	Orphaned  int
}

// Consistent reports whether every extracted item has exactly one index row.
func (r IndexReport) Consistent() bool {
	return r.Missing == 0 && r.Orphaned == 0 && r.Indexed == r.Extracted
}

// VerifyIndex counts indexed rows, extracted items, and mismatches in either direction.
func (s *Store) VerifyIndex(ctx context.Context) (IndexReport, error) {
	var report IndexReport
	queries := []struct {
		dest  *int
		query string
	}{
		{&report.Indexed, `SELECT COUNT(1) FROM items_fts`},
		{&report.Extracted, `SELECT COUNT(1) FROM items WHERE extract_status = 'done'`},
		{&report.Missing, `SELECT COUNT(1) FROM items i WHERE i.extract_status = 'done'
            AND NOT EXISTS (SELECT 1 FROM items_fts f WHERE f.rowid = i.node_id)`},
		{&report.Orphaned, `SELECT COUNT(1) FROM items_fts f WHERE NOT EXISTS
            (SELECT 1 FROM items i WHERE i.node_id = f.rowid AND i.extract_status = 'done')`},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return report, fmt.Errorf("verify index: %w", err)
		}
	}
	return report, nil
}
