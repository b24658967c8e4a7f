// Package ingest walks the catalog search pages and inserts newly listed
// documents into the catalog store.
package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"archivist/internal/catalog"
	"archivist/internal/logging"
	"archivist/internal/services"
	"archivist/internal/services/catalogsite"
)

// Fetcher returns one zero-based results page.
type Fetcher interface {
	FetchPage(ctx context.Context, page int) (catalogsite.Page, error)
	PerPage() int
}

// Store receives the parsed items.
type Store interface {
	Ingest(ctx context.Context, items []catalog.Item) (int, error)
}

// Options bounds a harvest.
type Options struct {
	// StartPage resumes an interrupted harvest; page 0 is always fetched to
	// learn the collection size.
	StartPage int
	// MaxPages caps the number of pages fetched; zero means all.
	MaxPages int
	Delay    time.Duration
	// TestMode fetches only the first page.
	TestMode bool
}

// Report summarizes a harvest.
type Report struct {
	Total       int
	Pages       int
	FetchedRows int
	Inserted    int
	FailedPages []int
}

// Harvester drives the page loop.
type Harvester struct {
	store   Store
	fetcher Fetcher
	logger  *slog.Logger
	sleep   func(context.Context, time.Duration) error
}

// NewHarvester wires a harvester.
func NewHarvester(store Store, fetcher Fetcher, logger *slog.Logger) *Harvester {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Harvester{
		store:   store,
		fetcher: fetcher,
		logger:  logging.NewComponentLogger(logger, "ingest"),
		sleep:   sleepContext,
	}
}

// Run fetches page 0, derives the page count from the collection total and
// walks the remaining pages. Pages that fail after retries are recorded and
// skipped so a long harvest survives intermittent outages.
func (h *Harvester) Run(ctx context.Context, opts Options) (Report, error) {
	var report Report
	if opts.StartPage < 0 || opts.MaxPages < 0 || opts.Delay < 0 {
		return report, services.Wrap(services.ErrConfiguration, "ingest", "run", "pages and delay must not be negative", nil)
	}
	first, err := h.fetcher.FetchPage(ctx, 0)
	if err != nil {
		return report, err
	}
	if first.Total == 0 && len(first.Items) == 0 {
		return report, services.Wrap(services.ErrExternalTool, "ingest", "run", "could not determine collection size", nil)
	}
	report.Total = first.Total
	perPage := max(h.fetcher.PerPage(), 1)
	totalPages := (first.Total + perPage - 1) / perPage
	if totalPages == 0 {
		totalPages = 1
	}
	h.logger.Info("harvest started",
		logging.String(logging.FieldEventType, "ingest_start"),
		logging.Int("total_items", first.Total),
		logging.Int("total_pages", totalPages),
	)

	begin := opts.StartPage
	end := totalPages
	if opts.TestMode {
		end = begin + 1
	}
	if opts.MaxPages > 0 {
		end = min(end, begin+opts.MaxPages)
	}

	sampler := logging.NewProgressSampler(10)
	for page := begin; page < end; page++ {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		result := first
		if page > 0 {
			if err := h.sleep(ctx, opts.Delay); err != nil {
				return report, err
			}
			result, err = h.fetcher.FetchPage(ctx, page)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return report, err
				}
				report.FailedPages = append(report.FailedPages, page)
				logging.WarnWithContext(h.logger, "page fetch failed", "ingest_page_failed",
					logging.Int("page", page),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, services.Hint(err)),
					logging.String(logging.FieldImpact, "items on this page are not ingested; rerun with --start-page"),
				)
				continue
			}
		}
		inserted, err := h.store.Ingest(ctx, result.Items)
		if err != nil {
			return report, err
		}
		report.Pages++
		report.FetchedRows += len(result.Items)
		report.Inserted += inserted
		if pct := logging.Percent(page-begin+1, end-begin); sampler.ShouldLog(pct, "ingest") {
			h.logger.Info("harvest progress",
				logging.String(logging.FieldEventType, "ingest_progress"),
				logging.Int("page", page),
				logging.Int("inserted", report.Inserted),
				logging.Int("percent", int(pct)),
			)
		}
	}

	h.logger.Info("harvest finished",
		logging.String(logging.FieldEventType, "ingest_complete"),
		logging.Int("pages", report.Pages),
		logging.Int("rows", report.FetchedRows),
		logging.Int("inserted", report.Inserted),
		logging.Int("failed_pages", len(report.FailedPages)),
	)
	return report, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
