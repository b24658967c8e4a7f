package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"archivist/internal/catalog"
	"archivist/internal/logging"
	"archivist/internal/services"
	"archivist/internal/stage"
)

// DefaultTestBatchSize caps test-mode batches when no size is configured.
const DefaultTestBatchSize = 3

// DefaultClaimChunk bounds each claim so an interrupted run strands at most
// one chunk of in_progress items.
const DefaultClaimChunk = 25

// Store is the subset of catalog.Store the executor drives.
type Store interface {
	Claim(ctx context.Context, stage catalog.Stage, opts catalog.ClaimOptions) ([]*catalog.Item, error)
	Complete(ctx context.Context, nodeID int64, stage catalog.Stage, result catalog.Result) error
	Fail(ctx context.Context, nodeID int64, stage catalog.Stage, reason string) error
	RecordRun(ctx context.Context, run catalog.RunRecord) error
}

// Observer receives per-item outcomes, typically a metrics recorder.
type Observer interface {
	ItemProcessed(stage, outcome string, elapsed time.Duration)
	BatchFinished(stage string, attempted, succeeded, failed, skipped int)
}

// Item outcomes reported to the Observer.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
	OutcomeConflict  = "conflict"
)

// Executor runs registered stage handlers over claimed batches.
type Executor struct {
	store         Store
	logger        *slog.Logger
	handlers      map[catalog.Stage]stage.Handler
	observer      Observer
	testBatchSize int
	claimChunk    int
	now           func() time.Time
	sleep         func(context.Context, time.Duration) error
}

// Option configures an Executor.
type Option func(*Executor)

// WithObserver reports item outcomes to o.
func WithObserver(o Observer) Option {
	return func(e *Executor) { e.observer = o }
}

// WithTestBatchSize overrides the test-mode cap.
func WithTestBatchSize(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.testBatchSize = n
		}
	}
}

// WithClaimChunk sets how many items each claim marks in_progress.
func WithClaimChunk(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.claimChunk = n
		}
	}
}

// WithClock replaces the wall clock and the inter-item sleep.
func WithClock(now func() time.Time, sleep func(context.Context, time.Duration) error) Option {
	return func(e *Executor) {
		if now != nil {
			e.now = now
		}
		if sleep != nil {
			e.sleep = sleep
		}
	}
}

// NewExecutor builds an executor over store with the given handlers.
func NewExecutor(store Store, logger *slog.Logger, handlers []stage.Handler, opts ...Option) *Executor {
	if logger == nil {
		logger = logging.NewNop()
	}
	e := &Executor{
		store:         store,
		logger:        logging.NewComponentLogger(logger, "pipeline"),
		handlers:      make(map[catalog.Stage]stage.Handler, len(handlers)),
		testBatchSize: DefaultTestBatchSize,
		claimChunk:    DefaultClaimChunk,
		now:           time.Now,
		sleep:         sleepContext,
	}
	for _, h := range handlers {
		if h != nil {
			e.handlers[h.Stage()] = h
		}
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Handler returns the handler registered for stage.
func (e *Executor) Handler(s catalog.Stage) (stage.Handler, bool) {
	h, ok := e.handlers[s]
	return h, ok
}

// Health reports the readiness of every registered handler in stage order.
func (e *Executor) Health(ctx context.Context) []stage.Health {
	var out []stage.Health
	for _, s := range catalog.Stages {
		if h, ok := e.handlers[s]; ok {
			out = append(out, h.HealthCheck(ctx))
		}
	}
	return out
}

// Run claims up to opts.Limit items for stage in chunks and processes them
// sequentially. Each chunk resumes after the highest node id already claimed,
// so an item is attempted at most once per run. Item errors
// are recorded in the report; the returned error is reserved for problems
// that prevent the batch from running and for cancellation.
func (e *Executor) Run(ctx context.Context, s catalog.Stage, opts RunOptions) (BatchReport, error) {
	report := BatchReport{Stage: s, Forced: opts.Force, Started: e.now().UTC()}
	handler, ok := e.handlers[s]
	if !ok {
		return report, fmt.Errorf("%w: no handler registered for %q", catalog.ErrUnknownStage, s)
	}
	if opts.Limit < 0 || opts.Delay < 0 {
		return report, services.Wrap(services.ErrConfiguration, string(s), "run",
			"limit and delay must not be negative", nil)
	}

	limit := opts.Limit
	if opts.TestMode && (limit == 0 || limit > e.testBatchSize) {
		limit = e.testBatchSize
	}

	report.RunID = ulid.Make().String()
	runCtx := services.WithRunID(services.WithStage(ctx, string(s)), report.RunID)
	runCtx = services.WithForce(runCtx, opts.Force)
	logger := logging.WithContext(runCtx, e.logger)
	if aware, ok := handler.(stage.LoggerAware); ok {
		aware.SetLogger(logger)
	}

	logger.Info("batch started",
		logging.String(logging.FieldEventType, "batch_start"),
		logging.Int("limit", limit),
		logging.Int("claim_chunk", e.claimChunk),
		logging.Bool("force", opts.Force),
		logging.Bool("test_mode", opts.TestMode),
	)

	sampler := logging.NewProgressSampler(10)
	calledOut := false
	claimedTotal := 0
	var afterID int64
	var runErr error
	for runErr == nil {
		chunk := e.claimChunk
		if limit > 0 {
			chunk = min(chunk, limit-claimedTotal)
		}
		if chunk <= 0 {
			break
		}
		if err := ctx.Err(); err != nil {
			runErr = err
			report.Cancelled = true
			break
		}
		items, err := e.store.Claim(runCtx, s, catalog.ClaimOptions{
			Limit:   chunk,
			Force:   opts.Force,
			NodeIDs: opts.NodeIDs,
			AfterID: afterID,
		})
		if err != nil {
			if claimedTotal == 0 {
				return report, fmt.Errorf("claim %s batch: %w", s, err)
			}
			runErr = fmt.Errorf("claim %s batch: %w", s, err)
			break
		}
		if len(items) == 0 {
			break
		}
		claimedTotal += len(items)
		afterID = items[len(items)-1].NodeID
		logger.Debug("claimed chunk", logging.Int("claimed", len(items)), logging.Int64("after_id", afterID))

		for i, item := range items {
			if err := ctx.Err(); err != nil {
				runErr = err
				e.abandon(ctx, logger, s, items[i:], &report)
				break
			}
			if calledOut && opts.Delay > 0 {
				if err := e.sleep(ctx, opts.Delay); err != nil {
					runErr = err
					e.abandon(ctx, logger, s, items[i:], &report)
					break
				}
			}

			calledOut = e.processItem(runCtx, logger, handler, item, &report)

			if limit > 0 {
				if pct := logging.Percent(report.Attempted, limit); sampler.ShouldLog(pct, string(s)) {
					logger.Info("batch progress",
						logging.String(logging.FieldEventType, "batch_progress"),
						logging.Int("done", report.Attempted),
						logging.Int("total", limit),
						logging.Int("percent", int(pct)),
					)
				}
			}
		}
		if runErr == nil && limit == 0 {
			logger.Info("batch progress",
				logging.String(logging.FieldEventType, "batch_progress"),
				logging.Int("done", report.Attempted),
			)
		}
		if len(items) < chunk {
			break
		}
	}

	report.Finished = e.now().UTC()
	if e.observer != nil {
		e.observer.BatchFinished(string(s), report.Attempted, report.Succeeded, report.Failed, report.Skipped)
	}
	if err := e.store.RecordRun(context.WithoutCancel(runCtx), report.record()); err != nil {
		logging.WarnWithContext(logger, "failed to record batch run", "run_ledger",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check database permissions"),
			logging.String(logging.FieldImpact, "batch history omits this run"),
		)
	}
	logger.Info("batch finished",
		logging.String(logging.FieldEventType, "batch_complete"),
		logging.Int("attempted", report.Attempted),
		logging.Int("succeeded", report.Succeeded),
		logging.Int("failed", report.Failed),
		logging.Int("skipped", report.Skipped),
		logging.Bool("cancelled", report.Cancelled),
		logging.Duration("elapsed", report.Duration()),
	)
	return report, runErr
}

// processItem runs the handler for one claimed item and persists the
// outcome. It reports whether the handler made an external call.
func (e *Executor) processItem(ctx context.Context, logger *slog.Logger, handler stage.Handler, item *catalog.Item, report *BatchReport) bool {
	s := handler.Stage()
	itemCtx := services.WithNodeID(ctx, item.NodeID)
	itemLogger := logging.WithContext(itemCtx, logger)
	report.Attempted++

	started := e.now()
	result, err := handler.Process(itemCtx, item)
	elapsed := e.now().Sub(started)

	var skip *SkipError
	skipped := errors.As(err, &skip)
	external := !skipped
	if skipped {
		result = skip.Result
		external = skip.Remote
		err = nil
	}

	persistCtx := context.WithoutCancel(itemCtx)
	if err != nil {
		report.Failed++
		e.observe(s, OutcomeFailed, elapsed)
		itemLogger.Warn("item failed",
			logging.String(logging.FieldEventType, "item_failed"),
			logging.String("title", item.Title),
			logging.String("error_kind", services.Kind(err)),
			logging.String(logging.FieldErrorHint, services.Hint(err)),
			logging.String(logging.FieldImpact, "item stays eligible for the next run"),
			logging.Error(err),
		)
		if ferr := e.store.Fail(persistCtx, item.NodeID, s, failureReason(err)); ferr != nil {
			itemLogger.Error("failed to persist item failure", logging.Error(ferr))
		}
		return true
	}

	if cerr := e.store.Complete(persistCtx, item.NodeID, s, result); cerr != nil {
		report.Failed++
		if errors.Is(cerr, catalog.ErrStateConflict) {
			e.observe(s, OutcomeConflict, elapsed)
			return external
		}
		e.observe(s, OutcomeFailed, elapsed)
		logging.ErrorWithContext(itemLogger, "failed to persist item result", "item_persist_failed",
			logging.Error(cerr),
			logging.String(logging.FieldErrorHint, "run 'archivist index verify' if the error mentions the index"),
		)
		if ferr := e.store.Fail(persistCtx, item.NodeID, s, failureReason(cerr)); ferr != nil {
			itemLogger.Error("failed to persist item failure", logging.Error(ferr))
		}
		return external
	}

	if skipped {
		report.Skipped++
		e.observe(s, OutcomeSkipped, elapsed)
		itemLogger.Debug("item skipped", logging.String("reason", skip.Reason))
		return external
	}
	report.Succeeded++
	e.observe(s, OutcomeSucceeded, elapsed)
	itemLogger.Debug("item completed", logging.Duration("elapsed", elapsed))
	return true
}

// abandon fails items that were claimed but never processed.
func (e *Executor) abandon(ctx context.Context, logger *slog.Logger, s catalog.Stage, items []*catalog.Item, report *BatchReport) {
	report.Cancelled = true
	persistCtx := context.WithoutCancel(ctx)
	for _, item := range items {
		if err := e.store.Fail(persistCtx, item.NodeID, s, "batch cancelled before processing"); err != nil {
			logger.Error("failed to release claimed item", logging.Int64(logging.FieldNodeID, item.NodeID), logging.Error(err))
			continue
		}
		report.Abandoned++
	}
	if len(items) > 0 {
		logging.WarnWithContext(logger, "batch cancelled", "batch_cancelled",
			logging.Int("released", report.Abandoned),
			logging.String(logging.FieldErrorHint, "rerun the stage to pick up released items"),
			logging.String(logging.FieldImpact, "remaining claimed items marked failed"),
		)
	}
}

func (e *Executor) observe(s catalog.Stage, outcome string, elapsed time.Duration) {
	if e.observer != nil {
		e.observer.ItemProcessed(string(s), outcome, elapsed)
	}
}

func failureReason(err error) string {
	if err == nil {
		return ""
	}
	return strings.TrimSpace(err.Error())
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
