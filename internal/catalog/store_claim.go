package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"archivist/internal/logging"
)

const locatorPresent = "box_number IS NOT NULL AND folder_number IS NOT NULL AND bundle_number IS NOT NULL AND document_number IS NOT NULL"

func eligibleStatuses(force bool) []string {
	statuses := []string{string(StatusNotStarted), string(StatusFailed)}
	if force {
		statuses = append(statuses, string(StatusDone))
	}
	return statuses
}

// readyFilter returns the predecessor condition a stage needs before it can
// be claimed.
func readyFilter(stage Stage) sq.Sqlizer {
	switch stage {
	case StageDownload, StageStream:
		return sq.Expr(locatorPresent)
	case StageExtract:
		return sq.And{
			sq.Eq{"download_status": string(StatusDone)},
			sq.Expr("local_pdf_path IS NOT NULL AND local_pdf_path <> ''"),
		}
	case StageAnalyze:
		return sq.Eq{"extract_status": string(StatusDone)}
	case StageMirror:
		return sq.Eq{"download_status": string(StatusDone)}
	default:
		return nil
	}
}

func candidateQuery(stage Stage, opts ClaimOptions) (string, []any, error) {
	eligible := eligibleStatuses(opts.Force)
	builder := sq.Select("node_id").From("items").Where(readyFilter(stage)).OrderBy("node_id")
	if stage == StageStream {
		builder = builder.Where(sq.Or{
			sq.Eq{"download_status": eligible},
			sq.Eq{"extract_status": eligible},
		}).Where(sq.NotEq{
			"download_status": string(StatusInProgress),
			"extract_status":  string(StatusInProgress),
		})
	} else {
		builder = builder.Where(sq.Eq{statusColumn[stage]: eligible})
	}
	if len(opts.NodeIDs) > 0 {
		builder = builder.Where(sq.Eq{"node_id": opts.NodeIDs})
	}
	if opts.AfterID > 0 {
		builder = builder.Where(sq.Gt{"node_id": opts.AfterID})
	}
	if opts.Limit > 0 {
		builder = builder.Limit(uint64(opts.Limit))
	}
	return builder.ToSql()
}

// Claim marks up to opts.Limit eligible items in_progress for stage and
// returns them in node_id order. Each row is claimed with a compare-and-set
// update so overlapping claims never return the same item.
func (s *Store) Claim(ctx context.Context, stage Stage, opts ClaimOptions) ([]*Item, error) {
	if _, ok := statusColumn[stage]; !ok && stage != StageStream {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStage, stage)
	}
	query, args, err := candidateQuery(stage, opts)
	if err != nil {
		return nil, fmt.Errorf("build claim query: %w", err)
	}

	var claimed []int64
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		claimed = claimed[:0]
		ids, err := queryIDs(ctx, tx, query, args...)
		if err != nil {
			return fmt.Errorf("select claim candidates: %w", err)
		}
		now := s.timestamp()
		for _, id := range ids {
			var ok bool
			if stage == StageStream {
				ok, err = claimStreamRow(ctx, tx, id, opts.Force, now)
			} else {
				ok, err = claimRow(ctx, tx, stage, id, opts.Force, now)
			}
			if err != nil {
				return err
			}
			if ok {
				claimed = append(claimed, id)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.getMany(ctx, claimed)
}

// successors lists the stages whose done status rests on a stage.
var successors = map[Stage][]Stage{
	StageDownload: {StageExtract, StageAnalyze, StageMirror},
	StageExtract:  {StageAnalyze},
}

// reopen extends a forced claim of the given stages: done successors go back
// to not_started in the same statement, and the claim is refused while any
// successor is in progress. Reopening extract clears the text; reopening
// analyze clears the analysis fields.
func reopen(builder sq.UpdateBuilder, claimed ...Stage) sq.UpdateBuilder {
	seen := make(map[Stage]bool, len(claimed))
	for _, stage := range claimed {
		seen[stage] = true
	}
	reset := make(map[Stage]bool)
	for _, stage := range claimed {
		for _, next := range successors[stage] {
			if seen[next] {
				continue
			}
			seen[next] = true
			reset[next] = true
			col := statusColumn[next]
			builder = builder.
				Set(col, sq.Expr("CASE WHEN "+col+" = ? THEN ? ELSE "+col+" END",
					string(StatusDone), string(StatusNotStarted))).
				Where(sq.NotEq{col: string(StatusInProgress)})
		}
	}
	if seen[StageExtract] {
		builder = builder.Set("text_content", nil)
	}
	if reset[StageAnalyze] {
		builder = builder.
			Set("summary", nil).
			Set("tags", nil).
			Set("language", nil).
			Set("analysis_model", nil)
	}
	return builder
}

// touchesText reports whether reopening stage takes the extracted text with it.
func touchesText(stage Stage) bool {
	return stage == StageDownload || stage == StageExtract || stage == StageStream
}

func claimRow(ctx context.Context, tx *sql.Tx, stage Stage, id int64, force bool, now string) (bool, error) {
	col := statusColumn[stage]
	eligible := eligibleStatuses(force)
	builder := sq.Update("items").
		Set(col, string(StatusInProgress)).
		Set(startedColumn[stage], now).
		Set("updated_at", now).
		Where(sq.Eq{"node_id": id, col: eligible})
	if force {
		builder = reopen(builder, stage)
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return false, fmt.Errorf("build claim update: %w", err)
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("claim node %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 1 && force && touchesText(stage) {
		if err := dropIndex(ctx, tx, id); err != nil {
			return false, indexError(id, err)
		}
	}
	return n == 1, nil
}

// claimStreamRow marks whichever of download/extract are pending as
// in_progress. The update is conditioned on both statuses being unchanged
// since they were read.
func claimStreamRow(ctx context.Context, tx *sql.Tx, id int64, force bool, now string) (bool, error) {
	var download, extract Status
	if err := tx.QueryRowContext(ctx,
		`SELECT download_status, extract_status FROM items WHERE node_id = ?`, id,
	).Scan(&download, &extract); err != nil {
		return false, fmt.Errorf("read stream statuses for node %d: %w", id, err)
	}
	if download == StatusInProgress || extract == StatusInProgress {
		return false, nil
	}
	builder := sq.Update("items").Set("updated_at", now).
		Where(sq.Eq{"node_id": id, "download_status": string(download), "extract_status": string(extract)})
	var marked []Stage
	if CanTransition(download, StatusInProgress, force) {
		builder = builder.Set("download_status", string(StatusInProgress)).Set("download_started_at", now)
		marked = append(marked, StageDownload)
	}
	if CanTransition(extract, StatusInProgress, force) {
		builder = builder.Set("extract_status", string(StatusInProgress)).Set("extract_started_at", now)
		marked = append(marked, StageExtract)
	}
	if len(marked) == 0 {
		return false, nil
	}
	if force {
		builder = reopen(builder, marked...)
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return false, fmt.Errorf("build stream claim: %w", err)
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("claim node %d for stream: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 1 && force {
		if err := dropIndex(ctx, tx, id); err != nil {
			return false, indexError(id, err)
		}
	}
	return n == 1, nil
}

type stageState struct {
	download Status
	extract  Status
	analysis Status
	mirror   Status
}

func (st stageState) of(stage Stage) Status {
	switch stage {
	case StageDownload:
		return st.download
	case StageExtract:
		return st.extract
	case StageAnalyze:
		return st.analysis
	case StageMirror:
		return st.mirror
	}
	return ""
}

func readState(ctx context.Context, tx *sql.Tx, id int64) (stageState, error) {
	var st stageState
	err := tx.QueryRowContext(ctx,
		`SELECT download_status, extract_status, analysis_status, mirror_status FROM items WHERE node_id = ?`, id,
	).Scan(&st.download, &st.extract, &st.analysis, &st.mirror)
	if errors.Is(err, sql.ErrNoRows) {
		return st, fmt.Errorf("%w: node %d", ErrNotFound, id)
	}
	if err != nil {
		return st, fmt.Errorf("read state for node %d: %w", id, err)
	}
	return st, nil
}

// Complete moves stage from in_progress to done for one item and writes the
// fields the stage produced. The predecessor stage must already be done.
func (s *Store) Complete(ctx context.Context, nodeID int64, stage Stage, result Result) error {
	if stage == StageStream {
		return s.completeStream(ctx, nodeID, result)
	}
	col, ok := statusColumn[stage]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownStage, stage)
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		st, err := readState(ctx, tx, nodeID)
		if err != nil {
			return err
		}
		if current := st.of(stage); !CanTransition(current, StatusDone, false) {
			return conflict(nodeID, stage, current, StatusDone)
		}
		if pred, ok := stage.Predecessor(); ok && st.of(pred) != StatusDone {
			return fmt.Errorf("%w: node %d %s requires %s done, found %s",
				ErrStateConflict, nodeID, stage, pred, st.of(pred))
		}

		now := s.timestamp()
		builder := sq.Update("items").
			Set(col, string(StatusDone)).
			Set(startedColumn[stage], nil).
			Set("updated_at", now).
			Where(sq.Eq{"node_id": nodeID, col: string(StatusInProgress)})
		switch stage {
		case StageDownload:
			builder = builder.Set("local_pdf_path", nullableString(result.LocalPDFPath))
		case StageExtract:
			builder = builder.Set("text_content", result.TextContent)
		case StageAnalyze:
			builder = builder.
				Set("summary", nullableString(result.Summary)).
				Set("tags", nullableString(EncodeTags(result.Tags))).
				Set("language", nullableString(result.Language)).
				Set("analysis_model", nullableString(result.AnalysisModel))
		case StageMirror:
			builder = builder.Set("mirror_key", nullableString(result.MirrorKey))
		}
		if err := execCAS(ctx, tx, builder, nodeID, stage); err != nil {
			return err
		}
		if stage == StageExtract || stage == StageAnalyze {
			if err := syncIndex(ctx, tx, nodeID); err != nil {
				return indexError(nodeID, err)
			}
		}
		return nil
	})
	s.logConflict(err, nodeID, stage)
	return err
}

func (s *Store) completeStream(ctx context.Context, nodeID int64, result Result) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		st, err := readState(ctx, tx, nodeID)
		if err != nil {
			return err
		}
		downloadClaimed := st.download == StatusInProgress
		extractClaimed := st.extract == StatusInProgress
		if !extractClaimed && !downloadClaimed {
			return conflict(nodeID, StageStream, st.extract, StatusDone)
		}
		// The fused pair lands together: anything not claimed must already be done.
		if (!downloadClaimed && st.download != StatusDone) || (!extractClaimed && st.extract != StatusDone) {
			return fmt.Errorf("%w: node %d stream found download=%s extract=%s",
				ErrStateConflict, nodeID, st.download, st.extract)
		}
		now := s.timestamp()
		builder := sq.Update("items").Set("updated_at", now).
			Where(sq.Eq{"node_id": nodeID, "download_status": string(st.download), "extract_status": string(st.extract)})
		if downloadClaimed {
			builder = builder.
				Set("download_status", string(StatusDone)).
				Set("download_started_at", nil).
				Set("local_pdf_path", nullableString(result.LocalPDFPath))
		}
		if extractClaimed {
			builder = builder.
				Set("extract_status", string(StatusDone)).
				Set("extract_started_at", nil).
				Set("text_content", result.TextContent)
		}
		if err := execCAS(ctx, tx, builder, nodeID, StageStream); err != nil {
			return err
		}
		if err := syncIndex(ctx, tx, nodeID); err != nil {
			return indexError(nodeID, err)
		}
		return nil
	})
	s.logConflict(err, nodeID, StageStream)
	return err
}

// Fail moves stage from in_progress to failed. The reason is logged only.
// Failing extract clears the text and removes the index row.
func (s *Store) Fail(ctx context.Context, nodeID int64, stage Stage, reason string) error {
	var stages []Stage
	switch stage {
	case StageStream:
		stages = []Stage{StageDownload, StageExtract}
	default:
		if _, ok := statusColumn[stage]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownStage, stage)
		}
		stages = []Stage{stage}
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		st, err := readState(ctx, tx, nodeID)
		if err != nil {
			return err
		}
		now := s.timestamp()
		builder := sq.Update("items").Set("updated_at", now).Where(sq.Eq{"node_id": nodeID})
		failed := 0
		clearText := false
		for _, target := range stages {
			current := st.of(target)
			if current != StatusInProgress {
				continue
			}
			col := statusColumn[target]
			builder = builder.
				Set(col, string(StatusFailed)).
				Set(startedColumn[target], nil).
				Where(sq.Eq{col: string(StatusInProgress)})
			if target == StageExtract {
				clearText = true
			}
			failed++
		}
		if failed == 0 {
			return conflict(nodeID, stage, st.of(stages[len(stages)-1]), StatusFailed)
		}
		if clearText {
			builder = builder.Set("text_content", nil)
		}
		if err := execCAS(ctx, tx, builder, nodeID, stage); err != nil {
			return err
		}
		if clearText {
			if err := dropIndex(ctx, tx, nodeID); err != nil {
				return indexError(nodeID, err)
			}
		}
		return nil
	})
	if err == nil {
		s.logger.Debug("stage failed",
			logging.Int64(logging.FieldNodeID, nodeID),
			logging.String(logging.FieldStage, string(stage)),
			logging.String("reason", reason),
		)
	}
	s.logConflict(err, nodeID, stage)
	return err
}

// ResetStuck fails in_progress claims for stage that started before olderThan
// ago, making them eligible again. An empty stage resets every stage.
func (s *Store) ResetStuck(ctx context.Context, stage Stage, olderThan time.Duration) (int, error) {
	var stages []Stage
	switch stage {
	case "":
		stages = []Stage{StageDownload, StageExtract, StageAnalyze, StageMirror}
	case StageStream:
		stages = []Stage{StageDownload, StageExtract}
	default:
		if _, ok := statusColumn[stage]; !ok {
			return 0, fmt.Errorf("%w: %q", ErrUnknownStage, stage)
		}
		stages = []Stage{stage}
	}
	cutoff := s.now().Add(-olderThan).UTC().Format(timeLayout)

	reset := 0
	for _, target := range stages {
		col := statusColumn[target]
		started := startedColumn[target]
		query, args, err := sq.Select("node_id").From("items").
			Where(sq.Eq{col: string(StatusInProgress)}).
			Where(sq.Or{sq.Eq{started: nil}, sq.Lt{started: cutoff}}).
			OrderBy("node_id").
			ToSql()
		if err != nil {
			return reset, fmt.Errorf("build stuck query: %w", err)
		}
		var ids []int64
		err = retryOnBusy(ctx, func() error {
			var qerr error
			ids, qerr = queryIDs(ctx, s.db, query, args...)
			return qerr
		})
		if err != nil {
			return reset, fmt.Errorf("select stuck %s items: %w", target, err)
		}
		for _, id := range ids {
			err := s.Fail(ctx, id, target, "reset stuck claim")
			if errors.Is(err, ErrStateConflict) {
				continue
			}
			if err != nil {
				return reset, err
			}
			reset++
		}
	}
	return reset, nil
}

func execCAS(ctx context.Context, tx *sql.Tx, builder sq.UpdateBuilder, nodeID int64, stage Stage) error {
	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("build update for node %d: %w", nodeID, err)
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update node %d %s: %w", nodeID, stage, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("%w: node %d %s changed concurrently", ErrStateConflict, nodeID, stage)
	}
	return nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryIDs(ctx context.Context, q querier, query string, args ...any) ([]int64, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) logConflict(err error, nodeID int64, stage Stage) {
	if err == nil || !errors.Is(err, ErrStateConflict) {
		return
	}
	logging.WarnWithContext(s.logger, "rejected status transition", "state_conflict",
		logging.Int64(logging.FieldNodeID, nodeID),
		logging.String(logging.FieldStage, string(stage)),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "another batch may hold this item; run 'archivist recover' for abandoned claims"),
		logging.String(logging.FieldImpact, "item left unchanged"),
	)
}
