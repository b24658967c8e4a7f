package search

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"archivist/internal/catalog"
	"archivist/internal/config"
	"archivist/internal/logging"
)

// Page size bounds used when the configuration leaves them unset.
const (
	DefaultPageSize = 25
	MaxPageSize     = 100
	SnippetChars    = 500
)

// Request is one search call.
type Request struct {
	Query    string
	Mode     Mode
	Filters  Filters
	Sort     Sort
	Page     int
	PageSize int
}

// ItemSummary is a result row. It never carries the full text.
type ItemSummary struct {
	NodeID        int64    `json:"node_id"`
	Title         string   `json:"title"`
	Date          string   `json:"date,omitempty"`
	DateSort      string   `json:"date_sort,omitempty"`
	Series        string   `json:"series,omitempty"`
	ItemType      string   `json:"item_type,omitempty"`
	URL           string   `json:"url,omitempty"`
	ThumbnailURL  string   `json:"thumbnail_url,omitempty"`
	Box           int      `json:"box_number,omitempty"`
	Folder        int      `json:"folder_number,omitempty"`
	Bundle        int      `json:"bundle_number,omitempty"`
	Document      int      `json:"document_number,omitempty"`
	Summary       string   `json:"summary,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	Language      string   `json:"language,omitempty"`
	AnalysisModel string   `json:"analysis_model,omitempty"`
	MirrorKey     string   `json:"mirror_key,omitempty"`
	Starred       bool     `json:"starred"`
	Snippet       string   `json:"snippet"`
}

// Result is one page of matches.
type Result struct {
	Rows     []ItemSummary `json:"rows"`
	Total    int           `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
	Mode     Mode          `json:"mode"`
	// Ranking names the ordering applied: relevance, date_desc, node_id,
	// or the explicit sort.
	Ranking string `json:"ranking"`
}

// Observer receives per-query timings.
type Observer interface {
	SearchServed(mode string, elapsed time.Duration, err error)
}

// Texts is the lazy full-text accessor.
type Texts interface {
	GetText(ctx context.Context, nodeID int64) (string, error)
}

// Engine executes searches against the catalog database.
type Engine struct {
	db           *sql.DB
	texts        Texts
	logger       *slog.Logger
	observer     Observer
	defaultSize  int
	maxSize      int
	snippetChars int
}

// Option configures an Engine.
type Option func(*Engine)

// WithObserver reports query timings to o.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logging.NewComponentLogger(logger, "search")
		}
	}
}

// NewEngine builds an engine over store using the search settings.
func NewEngine(store *catalog.Store, cfg config.Search, opts ...Option) *Engine {
	e := &Engine{
		db:           store.DB(),
		texts:        store,
		logger:       logging.NewNop(),
		defaultSize:  cfg.DefaultPageSize,
		maxSize:      cfg.MaxPageSize,
		snippetChars: cfg.SnippetChars,
	}
	if e.maxSize <= 0 {
		e.maxSize = MaxPageSize
	}
	if e.defaultSize <= 0 {
		e.defaultSize = DefaultPageSize
	}
	if e.defaultSize > e.maxSize {
		e.defaultSize = e.maxSize
	}
	if e.snippetChars <= 0 {
		e.snippetChars = SnippetChars
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// GetText returns the full text of one item, or catalog.ErrNotFound.
func (e *Engine) GetText(ctx context.Context, nodeID int64) (string, error) {
	return e.texts.GetText(ctx, nodeID)
}

// Search runs req and returns one page of rows plus the total match count.
func (e *Engine) Search(ctx context.Context, req Request) (Result, error) {
	started := time.Now()
	result, err := e.search(ctx, req)
	if e.observer != nil {
		e.observer.SearchServed(req.Mode.String(), time.Since(started), err)
	}
	if err != nil && !errors.Is(err, ErrInvalidQuery) {
		e.logger.Error("search failed",
			logging.String("mode", req.Mode.String()),
			logging.String("query", req.Query),
			logging.Error(err),
		)
	}
	return result, err
}

func (e *Engine) search(ctx context.Context, req Request) (Result, error) {
	result := Result{Mode: req.Mode, Rows: []ItemSummary{}}
	strat, err := req.Mode.strategy()
	if err != nil {
		return result, err
	}
	if err := req.Filters.validate(); err != nil {
		return result, err
	}
	m, err := strat.match(req.Query)
	if err != nil {
		return result, err
	}

	result.Page, result.PageSize = e.paginate(req.Page, req.PageSize)

	order := []string{"items.date_sort DESC"}
	result.Ranking = "date_desc"
	if m != nil && m.ranking != "" {
		order, result.Ranking = m.order, m.ranking
	}
	if req.Sort.Field != "" {
		clauses, err := req.Sort.clauses()
		if err != nil {
			return result, err
		}
		order, result.Ranking = clauses, req.Sort.String()
	}
	order = append(order, "items.node_id")

	where := req.Filters.conditions()
	if m != nil {
		where = append(sq.And{m.where}, where...)
	}

	countQ := e.scope(sq.Select("COUNT(1)"), m, where)
	query, args, err := countQ.ToSql()
	if err != nil {
		return result, fmt.Errorf("build count query: %w", err)
	}
	if err := e.db.QueryRowContext(ctx, query, args...).Scan(&result.Total); err != nil {
		return result, classify(err, "count matches")
	}
	if result.Total == 0 {
		return result, nil
	}

	rowsQ := e.scope(sq.Select(e.columns()...), m, where).
		OrderBy(order...).
		Limit(uint64(result.PageSize)).
		Offset(uint64((result.Page - 1) * result.PageSize))
	query, args, err = rowsQ.ToSql()
	if err != nil {
		return result, fmt.Errorf("build search query: %w", err)
	}
	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return result, classify(err, "run search")
	}
	defer rows.Close()
	for rows.Next() {
		row, err := scanSummary(rows)
		if err != nil {
			return result, fmt.Errorf("scan search row: %w", err)
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return result, classify(err, "read search rows")
	}
	return result, nil
}

func (e *Engine) scope(b sq.SelectBuilder, m *match, where sq.And) sq.SelectBuilder {
	b = b.From("items")
	if m != nil && m.join != "" {
		b = b.Join(m.join)
	}
	if len(where) > 0 {
		b = b.Where(where)
	}
	return b
}

func (e *Engine) paginate(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	switch {
	case size == 0:
		size = e.defaultSize
	case size < 1:
		size = 1
	case size > e.maxSize:
		size = e.maxSize
	}
	return page, size
}

func (e *Engine) columns() []string {
	return []string{
		"items.node_id", "items.title", "COALESCE(items.date, '')", "COALESCE(items.date_sort, '')",
		"COALESCE(items.series, '')", "COALESCE(items.item_type, '')",
		"COALESCE(items.url, '')", "COALESCE(items.thumbnail_url, '')",
		"COALESCE(items.box_number, 0)", "COALESCE(items.folder_number, 0)",
		"COALESCE(items.bundle_number, 0)", "COALESCE(items.document_number, 0)",
		"COALESCE(items.summary, '')", "COALESCE(items.tags, '')", "COALESCE(items.language, '')",
		"COALESCE(items.analysis_model, '')", "COALESCE(items.mirror_key, '')", "items.starred",
		fmt.Sprintf("COALESCE(SUBSTR(items.text_content, 1, %d), '')", e.snippetChars),
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSummary(s scanner) (ItemSummary, error) {
	var (
		row     ItemSummary
		tags    string
		starred int
	)
	err := s.Scan(
		&row.NodeID, &row.Title, &row.Date, &row.DateSort, &row.Series, &row.ItemType,
		&row.URL, &row.ThumbnailURL, &row.Box, &row.Folder, &row.Bundle, &row.Document,
		&row.Summary, &tags, &row.Language, &row.AnalysisModel, &row.MirrorKey, &starred,
		&row.Snippet,
	)
	if err != nil {
		return row, err
	}
	row.Starred = starred != 0
	row.Tags = catalog.DecodeTags(tags)
	return row, nil
}

// classify maps FTS5 syntax errors that slip past the query builder to
// ErrInvalidQuery.
func classify(err error, op string) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "fts5") || strings.Contains(msg, "malformed match") || strings.Contains(msg, "regexp:") {
		return fmt.Errorf("%w: %s: %v", ErrInvalidQuery, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
