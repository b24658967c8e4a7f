package summaries

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"archivist/internal/catalog"
	"archivist/internal/logging"
	"archivist/internal/services"
)

// Completer returns a free-text completion. llm.Client and
// anthropic.Client satisfy it.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Model() string
}

// Store is the catalog subset used for summaries.
type Store interface {
	FoldersNeedingSummary(ctx context.Context, force bool) ([]catalog.ArchiveUnit, error)
	BoxesNeedingSummary(ctx context.Context, force bool) ([]catalog.ArchiveUnit, error)
	FolderDocuments(ctx context.Context, box, folder, limit int) ([]*catalog.Item, error)
	BoxDocuments(ctx context.Context, box, limit int) ([]*catalog.Item, error)
	SaveSummary(ctx context.Context, summary catalog.ArchiveSummary) error
}

// Options bounds one run.
type Options struct {
	Limit int
	Delay time.Duration
	// Force regenerates units that already have a summary.
	Force bool
}

// Report counts outcomes of one run.
type Report struct {
	Type      catalog.SummaryType
	Selected  int
	Succeeded int
	Failed    int
	Skipped   int
}

// Summarizer generates and stores box and folder summaries.
type Summarizer struct {
	store  Store
	client Completer
	logger *slog.Logger
	sleep  func(context.Context, time.Duration) error
}

// Option configures a Summarizer.
type Option func(*Summarizer)

// WithSleeper replaces the delay between calls.
func WithSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(s *Summarizer) {
		if sleep != nil {
			s.sleep = sleep
		}
	}
}

// New builds a summarizer.
func New(store Store, client Completer, logger *slog.Logger, opts ...Option) *Summarizer {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Summarizer{
		store:  store,
		client: client,
		logger: logging.NewComponentLogger(logger, "summaries"),
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Folders summarizes folders that have no summary yet.
func (s *Summarizer) Folders(ctx context.Context, opts Options) (Report, error) {
	units, err := s.store.FoldersNeedingSummary(ctx, opts.Force)
	if err != nil {
		return Report{Type: catalog.SummaryFolder}, err
	}
	return s.run(ctx, catalog.SummaryFolder, units, opts, func(ctx context.Context, unit catalog.ArchiveUnit) (string, int, error) {
		docs, err := s.store.FolderDocuments(ctx, unit.Box, unit.Folder, folderDocumentLimit)
		if err != nil || len(docs) == 0 {
			return "", 0, err
		}
		return folderPrompt(unit.Box, unit.Folder, docs), len(docs), nil
	})
}

// Boxes summarizes boxes that have no summary yet.
func (s *Summarizer) Boxes(ctx context.Context, opts Options) (Report, error) {
	units, err := s.store.BoxesNeedingSummary(ctx, opts.Force)
	if err != nil {
		return Report{Type: catalog.SummaryBox}, err
	}
	return s.run(ctx, catalog.SummaryBox, units, opts, func(ctx context.Context, unit catalog.ArchiveUnit) (string, int, error) {
		docs, err := s.store.BoxDocuments(ctx, unit.Box, boxDocumentLimit)
		if err != nil || len(docs) == 0 {
			return "", 0, err
		}
		return boxPrompt(unit.Box, docs), len(docs), nil
	})
}

type promptFunc func(ctx context.Context, unit catalog.ArchiveUnit) (prompt string, documents int, err error)

func (s *Summarizer) run(ctx context.Context, typ catalog.SummaryType, units []catalog.ArchiveUnit, opts Options, build promptFunc) (Report, error) {
	report := Report{Type: typ}
	if s.client == nil {
		return report, services.Wrap(services.ErrConfiguration, "summaries", "run", "no llm provider configured", nil)
	}
	if opts.Limit > 0 && len(units) > opts.Limit {
		units = units[:opts.Limit]
	}
	report.Selected = len(units)
	if len(units) == 0 {
		s.logger.Info("nothing to summarize", logging.String("type", string(typ)))
		return report, nil
	}

	sampler := logging.NewProgressSampler(10)
	for i, unit := range units {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if i > 0 {
			if err := s.sleep(ctx, opts.Delay); err != nil {
				return report, err
			}
		}
		err := s.summarize(ctx, typ, unit, build, &report)
		if errors.Is(err, context.Canceled) {
			return report, err
		}
		if err != nil {
			report.Failed++
			logging.WarnWithContext(s.logger, "summary failed", "summary_failed",
				logging.String("type", string(typ)),
				logging.Int("box", unit.Box),
				logging.Int("folder", unit.Folder),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, services.Hint(err)),
			)
		}
		if pct := logging.Percent(i+1, len(units)); sampler.ShouldLog(pct, string(typ)) {
			s.logger.Info("summary progress",
				logging.String(logging.FieldEventType, "summary_progress"),
				logging.String("type", string(typ)),
				logging.Int("done", i+1),
				logging.Int("total", len(units)),
			)
		}
	}
	s.logger.Info("summaries finished",
		logging.String(logging.FieldEventType, "summary_complete"),
		logging.String("type", string(typ)),
		logging.Int("succeeded", report.Succeeded),
		logging.Int("failed", report.Failed),
		logging.Int("skipped", report.Skipped),
	)
	return report, nil
}

func (s *Summarizer) summarize(ctx context.Context, typ catalog.SummaryType, unit catalog.ArchiveUnit, build promptFunc, report *Report) error {
	prompt, count, err := build(ctx, unit)
	if err != nil {
		return err
	}
	if count == 0 {
		report.Skipped++
		return nil
	}
	reply, err := s.client.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		return err
	}
	label := cleanLabel(reply)
	if label == "" {
		return services.Wrap(services.ErrExternalTool, "summaries", "complete", "empty label", nil)
	}
	err = s.store.SaveSummary(ctx, catalog.ArchiveSummary{
		Type:          typ,
		Box:           unit.Box,
		Folder:        unit.Folder,
		Summary:       label,
		Model:         s.client.Model(),
		DocumentCount: count,
	})
	if err != nil {
		return fmt.Errorf("save %s summary: %w", typ, err)
	}
	report.Succeeded++
	return nil
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
