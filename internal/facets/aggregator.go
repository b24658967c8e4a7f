package facets

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

var dimensionQueries = map[Dimension]string{
	Series: `SELECT series, COUNT(1) FROM items WHERE series IS NOT NULL AND series <> ''
        GROUP BY series ORDER BY COUNT(1) DESC, series`,
	ItemType: `SELECT item_type, COUNT(1) FROM items WHERE item_type IS NOT NULL AND item_type <> ''
        GROUP BY item_type ORDER BY COUNT(1) DESC, item_type`,
	Language: `SELECT language, COUNT(1) FROM items WHERE language IS NOT NULL AND language <> ''
        GROUP BY language ORDER BY COUNT(1) DESC, language`,
	Decade: `SELECT substr(date_sort, 1, 3) || '0s' AS decade, COUNT(1) FROM items
        WHERE date_sort IS NOT NULL AND length(date_sort) >= 4
        GROUP BY decade ORDER BY decade`,
	Box: `SELECT box_number, COUNT(1) FROM items WHERE box_number IS NOT NULL
        GROUP BY box_number ORDER BY box_number`,
	Year: `SELECT substr(date_sort, 1, 4) AS year, COUNT(1) FROM items
        WHERE date_sort IS NOT NULL AND length(date_sort) >= 4
        GROUP BY year ORDER BY year`,
	Model: `SELECT analysis_model, COUNT(1) FROM items WHERE analysis_model IS NOT NULL AND analysis_model <> ''
        GROUP BY analysis_model ORDER BY COUNT(1) DESC, analysis_model`,
}

// Source produces snapshots.
type Source interface {
	Compute(ctx context.Context) (Snapshot, error)
}

// Aggregator computes snapshots straight from the items table.
type Aggregator struct {
	db  *sql.DB
	now func() time.Time
}

// NewAggregator returns an aggregator over db.
func NewAggregator(db *sql.DB) *Aggregator {
	return &Aggregator{db: db, now: time.Now}
}

// Compute runs every dimension query concurrently and assembles a snapshot.
func (a *Aggregator) Compute(ctx context.Context) (Snapshot, error) {
	results := make([][]Bucket, len(Dimensions))
	var total int

	g, gctx := errgroup.WithContext(ctx)
	for i, dim := range Dimensions {
		g.Go(func() error {
			buckets, err := a.buckets(gctx, dimensionQueries[dim])
			if err != nil {
				return fmt.Errorf("facet %s: %w", dim, err)
			}
			results[i] = buckets
			return nil
		})
	}
	g.Go(func() error {
		if err := a.db.QueryRowContext(gctx, `SELECT COUNT(1) FROM items`).Scan(&total); err != nil {
			return fmt.Errorf("facet total: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		Facets:     make(map[Dimension][]Bucket, len(Dimensions)),
		Total:      total,
		ComputedAt: a.now().UTC(),
	}
	for i, dim := range Dimensions {
		snap.Facets[dim] = results[i]
	}
	return snap, nil
}

func (a *Aggregator) buckets(ctx context.Context, query string) ([]Bucket, error) {
	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	buckets := []Bucket{}
	for rows.Next() {
		var b Bucket
		if err := rows.Scan(&b.Value, &b.Count); err != nil {
			return nil, err
		}
		buckets = append(buckets, b)
	}
	return buckets, rows.Err()
}
