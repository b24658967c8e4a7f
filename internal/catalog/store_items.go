package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// Ingest inserts catalog records that are not yet present. Existing node_ids
// are left untouched so pipeline state survives re-ingest. It returns the
// number of new items.
func (s *Store) Ingest(ctx context.Context, items []Item) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	inserted := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		inserted = 0
		now := s.timestamp()
		for _, item := range items {
			if item.NodeID <= 0 {
				return fmt.Errorf("ingest: node_id must be positive, got %d", item.NodeID)
			}
			if strings.TrimSpace(item.Title) == "" {
				return fmt.Errorf("ingest: node %d has no title", item.NodeID)
			}
			res, err := tx.ExecContext(ctx,
				`INSERT INTO items (
                    node_id, title, date, date_sort, series, item_type, url, thumbnail_url,
                    box_number, folder_number, bundle_number, document_number,
                    created_at, updated_at
                ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
                ON CONFLICT(node_id) DO NOTHING`,
				item.NodeID,
				strings.TrimSpace(item.Title),
				nullableString(item.Date),
				nullableString(item.DateSort),
				nullableString(item.Series),
				nullableString(item.ItemType),
				nullableString(item.URL),
				nullableString(item.ThumbnailURL),
				nullableInt(item.Locator.Box),
				nullableInt(item.Locator.Folder),
				nullableInt(item.Locator.Bundle),
				nullableInt(item.Locator.Document),
				now,
				now,
			)
			if err != nil {
				return fmt.Errorf("insert node %d: %w", item.NodeID, err)
			}
			if n, _ := res.RowsAffected(); n == 1 {
				inserted++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// Get fetches one item including its text.
func (s *Store) Get(ctx context.Context, nodeID int64) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE node_id = ?`, nodeID)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: node %d", ErrNotFound, nodeID)
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// GetText returns only the extracted text of an item. An item without text
// yields an empty string; an unknown item yields ErrNotFound.
func (s *Store) GetText(ctx context.Context, nodeID int64) (string, error) {
	var text sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT text_content FROM items WHERE node_id = ?`, nodeID).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: node %d", ErrNotFound, nodeID)
	}
	if err != nil {
		return "", fmt.Errorf("get text: %w", err)
	}
	return text.String, nil
}

func (s *Store) getMany(ctx context.Context, ids []int64) ([]*Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sq.Select(itemColumns).From("items").
		Where(sq.Eq{"node_id": ids}).OrderBy("node_id").ToSql()
	if err != nil {
		return nil, err
	}
	return s.queryItems(ctx, query, args...)
}

func (s *Store) queryItems(ctx context.Context, query string, args ...any) ([]*Item, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()
	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListOptions filters List.
type ListOptions struct {
	Stage  Stage
	Status Status
	Limit  int
	Offset int
}

// List returns items in node_id order, optionally restricted to one stage status.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]*Item, error) {
	builder := sq.Select(itemColumns).From("items").OrderBy("node_id")
	if opts.Stage != "" {
		col, ok := statusColumn[opts.Stage]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownStage, opts.Stage)
		}
		if opts.Status != "" {
			builder = builder.Where(sq.Eq{col: string(opts.Status)})
		}
	}
	if opts.Limit > 0 {
		builder = builder.Limit(uint64(opts.Limit))
	}
	if opts.Offset > 0 {
		builder = builder.Offset(uint64(opts.Offset))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}
	return s.queryItems(ctx, query, args...)
}

// SetStarred sets or clears the user star on an item.
func (s *Store) SetStarred(ctx context.Context, nodeID int64, starred bool) error {
	var starredAt any
	if starred {
		starredAt = s.timestamp()
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE items SET starred = ?, starred_at = ?, updated_at = ? WHERE node_id = ?`,
		boolToInt(starred), starredAt, s.timestamp(), nodeID,
	)
	if err != nil {
		return fmt.Errorf("set starred: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: node %d", ErrNotFound, nodeID)
	}
	return nil
}

// Starred returns starred items, most recently starred first.
func (s *Store) Starred(ctx context.Context) ([]*Item, error) {
	return s.queryItems(ctx,
		`SELECT `+itemColumns+` FROM items WHERE starred = 1 ORDER BY starred_at DESC, node_id`)
}

// ReplaceTags overwrites the tag set of an item and refreshes its index row.
func (s *Store) ReplaceTags(ctx context.Context, nodeID int64, tags []string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE items SET tags = ?, updated_at = ? WHERE node_id = ?`,
			nullableString(EncodeTags(tags)), s.timestamp(), nodeID,
		)
		if err != nil {
			return fmt.Errorf("replace tags: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: node %d", ErrNotFound, nodeID)
		}
		if err := syncIndex(ctx, tx, nodeID); err != nil {
			return indexError(nodeID, err)
		}
		return nil
	})
}

// TagSets returns the tags of every item that has any.
func (s *Store) TagSets(ctx context.Context) (map[int64][]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT node_id, tags FROM items WHERE tags IS NOT NULL AND tags <> '[]'`)
	if err != nil {
		return nil, fmt.Errorf("query tags: %w", err)
	}
	defer rows.Close()
	sets := make(map[int64][]string)
	for rows.Next() {
		var (
			id  int64
			raw string
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		if tags := DecodeTags(raw); len(tags) > 0 {
			sets[id] = tags
		}
	}
	return sets, rows.Err()
}

// Delete removes an item and its index row.
func (s *Store) Delete(ctx context.Context, nodeID int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM items WHERE node_id = ?`, nodeID)
		if err != nil {
			return fmt.Errorf("delete item: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: node %d", ErrNotFound, nodeID)
		}
		if err := dropIndex(ctx, tx, nodeID); err != nil {
			return indexError(nodeID, err)
		}
		return nil
	})
}
