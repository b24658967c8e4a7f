package catalog

import (
	"context"
	"fmt"
	"time"
)

// SummaryType distinguishes box and folder summaries.
type SummaryType string

const (
	SummaryBox    SummaryType = "box"
	SummaryFolder SummaryType = "folder"
)

// ArchiveSummary is a generated description of a box or folder. Folder is 0
// for box summaries.
type ArchiveSummary struct {
	Type          SummaryType
	Box           int
	Folder        int
	Summary       string
	Model         string
	DocumentCount int
	GeneratedAt   time.Time
}

// ArchiveUnit is a box or folder that holds documents.
type ArchiveUnit struct {
	Box           int
	Folder        int
	DocumentCount int
}

// SaveSummary inserts or replaces a box or folder summary.
func (s *Store) SaveSummary(ctx context.Context, summary ArchiveSummary) error {
	if summary.Type == SummaryBox {
		summary.Folder = 0
	}
	if summary.Type != SummaryBox && summary.Type != SummaryFolder {
		return fmt.Errorf("save summary: unknown type %q", summary.Type)
	}
	_, err := s.execWithRetry(ctx,
		`INSERT INTO archive_summaries (summary_type, box_number, folder_number, summary, model, document_count, generated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(summary_type, box_number, folder_number) DO UPDATE SET
             summary = excluded.summary,
             model = excluded.model,
             document_count = excluded.document_count,
             generated_at = excluded.generated_at`,
		string(summary.Type), summary.Box, summary.Folder, summary.Summary,
		nullableString(summary.Model), summary.DocumentCount, s.timestamp(),
	)
	if err != nil {
		return fmt.Errorf("save summary: %w", err)
	}
	return nil
}

// Summaries returns all summaries ordered by box then folder (box summaries first).
func (s *Store) Summaries(ctx context.Context) ([]ArchiveSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT summary_type, box_number, folder_number, summary, COALESCE(model, ''), document_count, generated_at
         FROM archive_summaries ORDER BY box_number, folder_number`)
	if err != nil {
		return nil, fmt.Errorf("query summaries: %w", err)
	}
	defer rows.Close()
	var out []ArchiveSummary
	for rows.Next() {
		var (
			sum       ArchiveSummary
			typ       string
			generated string
		)
		if err := rows.Scan(&typ, &sum.Box, &sum.Folder, &sum.Summary, &sum.Model, &sum.DocumentCount, &generated); err != nil {
			return nil, err
		}
		sum.Type = SummaryType(typ)
		if ts, err := parseTimeString(generated); err == nil {
			sum.GeneratedAt = ts
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// FoldersNeedingSummary lists folders with documents but no summary.
func (s *Store) FoldersNeedingSummary(ctx context.Context, force bool) ([]ArchiveUnit, error) {
	query := `SELECT p.box_number, p.folder_number, COUNT(1)
        FROM items p
        LEFT JOIN archive_summaries s ON s.summary_type = 'folder'
            AND s.box_number = p.box_number AND s.folder_number = p.folder_number
        WHERE p.box_number IS NOT NULL AND p.folder_number IS NOT NULL`
	if !force {
		query += ` AND s.id IS NULL`
	}
	query += ` GROUP BY p.box_number, p.folder_number ORDER BY p.box_number, p.folder_number`
	return s.queryUnits(ctx, query, true)
}

// BoxesNeedingSummary lists boxes with documents but no summary.
func (s *Store) BoxesNeedingSummary(ctx context.Context, force bool) ([]ArchiveUnit, error) {
	query := `SELECT p.box_number, COUNT(1)
        FROM items p
        LEFT JOIN archive_summaries s ON s.summary_type = 'box' AND s.box_number = p.box_number
        WHERE p.box_number IS NOT NULL`
	if !force {
		query += ` AND s.id IS NULL`
	}
	query += ` GROUP BY p.box_number ORDER BY p.box_number`
	return s.queryUnits(ctx, query, false)
}

func (s *Store) queryUnits(ctx context.Context, query string, withFolder bool, args ...any) ([]ArchiveUnit, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query archive units: %w", err)
	}
	defer rows.Close()
	var out []ArchiveUnit
	for rows.Next() {
		var unit ArchiveUnit
		if withFolder {
			err = rows.Scan(&unit.Box, &unit.Folder, &unit.DocumentCount)
		} else {
			err = rows.Scan(&unit.Box, &unit.DocumentCount)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, unit)
	}
	return out, rows.Err()
}

// FolderDocuments returns up to limit documents of a folder in archive order.
func (s *Store) FolderDocuments(ctx context.Context, box, folder, limit int) ([]*Item, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.queryItems(ctx,
		`SELECT `+itemColumns+` FROM items WHERE box_number = ? AND folder_number = ?
         ORDER BY bundle_number, document_number, node_id LIMIT ?`,
		box, folder, limit)
}

// BoxDocuments returns up to limit documents of a box in archive order.
func (s *Store) BoxDocuments(ctx context.Context, box, limit int) ([]*Item, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.queryItems(ctx,
		`SELECT `+itemColumns+` FROM items WHERE box_number = ?
         ORDER BY folder_number, bundle_number, document_number, node_id LIMIT ?`,
		box, limit)
}
