package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"archivist/internal/analyze"
	"archivist/internal/catalog"
	"archivist/internal/config"
	"archivist/internal/download"
	"archivist/internal/extract"
	"archivist/internal/mirror"
	"archivist/internal/pipeline"
	"archivist/internal/services"
	"archivist/internal/services/objectstore"
	"archivist/internal/services/ocr"
	"archivist/internal/stage"
)

type stageFlags struct {
	limit   int
	delay   float64
	test    bool
	stats   bool
	force   bool
	nodeIDs []int64
}

func newStageCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newStageCommand(ctx, catalog.StageDownload, "Download source PDFs into the local PDF directory"),
		newStageCommand(ctx, catalog.StageExtract, "Extract text from downloaded PDFs, with OCR fallback"),
		newStageCommand(ctx, catalog.StageAnalyze, "Summarize, tag, and detect language of extracted text"),
		newStageCommand(ctx, catalog.StageMirror, "Upload PDFs to the object storage mirror"),
		newStageCommand(ctx, catalog.StageStream, "Fetch and extract text in one pass without keeping PDFs"),
	}
}

func newStageCommand(ctx *commandContext, s catalog.Stage, short string) *cobra.Command {
	var flags stageFlags

	cmd := &cobra.Command{
		Use:   string(s),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("delay") {
				flags.delay = cfg.Pipeline.DefaultDelaySeconds
			}
			return ctx.withStore(func(store *catalog.Store) error {
				if flags.stats {
					return printStats(cmd, store, s)
				}
				return runStage(cmd, cfg, store, logger, s, flags)
			})
		},
	}

	cmd.Flags().IntVarP(&flags.limit, "limit", "n", 0, "Maximum number of items to process (0 processes the backlog)")
	cmd.Flags().Float64Var(&flags.delay, "delay", 0, "Seconds to wait between external calls")
	cmd.Flags().BoolVar(&flags.test, "test", false, "Process a small test batch")
	cmd.Flags().BoolVar(&flags.stats, "stats", false, "Print catalog statistics instead of running the stage")
	cmd.Flags().BoolVar(&flags.force, "force", false, "Re-process items that already completed this stage")
	cmd.Flags().Int64SliceVar(&flags.nodeIDs, "id", nil, "Restrict the batch to these node ids")
	return cmd
}

func runStage(cmd *cobra.Command, cfg *config.Config, store *catalog.Store, logger *slog.Logger, s catalog.Stage, flags stageFlags) error {
	if flags.limit < 0 || flags.delay < 0 {
		return fmt.Errorf("%w: --limit and --delay must not be negative", services.ErrConfiguration)
	}
	handler, err := buildHandler(cfg, s, logger)
	if err != nil {
		return err
	}
	if health := handler.HealthCheck(cmd.Context()); !health.Ready {
		return fmt.Errorf("%w: %s stage not ready: %s", services.ErrConfiguration, s, health.Detail)
	}

	exec := pipeline.NewExecutor(store, logger, []stage.Handler{handler},
		pipeline.WithTestBatchSize(cfg.Pipeline.TestBatchSize),
		pipeline.WithClaimChunk(cfg.Pipeline.ClaimChunk))
	report, err := exec.Run(cmd.Context(), s, pipeline.RunOptions{
		Limit:    flags.limit,
		Delay:    time.Duration(flags.delay * float64(time.Second)),
		TestMode: flags.test,
		Force:    flags.force,
		NodeIDs:  flags.nodeIDs,
	})
	if report.RunID != "" {
		printBatchReport(cmd, report)
	}
	return err
}

// buildHandler wires the collaborators of one stage from configuration.
func buildHandler(cfg *config.Config, s catalog.Stage, logger *slog.Logger) (stage.Handler, error) {
	switch s {
	case catalog.StageDownload:
		return download.New(cfg, nil, logger), nil
	case catalog.StageExtract:
		return extract.New(cfg, ocr.New(cfg.OCR), logger), nil
	case catalog.StageStream:
		return extract.NewStream(cfg, nil, ocr.New(cfg.OCR), logger), nil
	case catalog.StageAnalyze:
		if err := cfg.RequireAnalysis(); err != nil {
			return nil, fmt.Errorf("%w: %v", services.ErrConfiguration, err)
		}
		handler, err := analyze.NewFromConfig(cfg, logger)
		if err != nil {
			return nil, err
		}
		return handler, nil
	case catalog.StageMirror:
		if err := cfg.RequireMirror(); err != nil {
			return nil, fmt.Errorf("%w: %v", services.ErrConfiguration, err)
		}
		bucket, err := objectstore.New(cfg)
		if err != nil {
			return nil, err
		}
		return mirror.New(cfg, bucket, nil, logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", catalog.ErrUnknownStage, s)
	}
}

func printBatchReport(cmd *cobra.Command, report pipeline.BatchReport) {
	rows := [][]string{
		{"Run", report.RunID},
		{"Stage", string(report.Stage)},
		{"Attempted", strconv.Itoa(report.Attempted)},
		{"Succeeded", strconv.Itoa(report.Succeeded)},
		{"Failed", strconv.Itoa(report.Failed)},
		{"Skipped", strconv.Itoa(report.Skipped)},
	}
	if report.Abandoned > 0 {
		rows = append(rows, []string{"Abandoned", strconv.Itoa(report.Abandoned)})
	}
	rows = append(rows,
		[]string{"Forced", yesNo(report.Forced)},
		[]string{"Cancelled", yesNo(report.Cancelled)},
		[]string{"Duration", report.Duration().Round(time.Millisecond).String()},
	)
	printTable(cmd, []string{"Batch", "Value"}, rows, []columnAlignment{alignLeft, alignRight}, "")
}

func printStats(cmd *cobra.Command, store *catalog.Store, s catalog.Stage) error {
	c := cmd.Context()
	stats, err := store.StageStats(c)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Items: %d  Indexed: %d  Starred: %d\n", stats.Total, stats.Indexed, stats.Starred)

	rows := make([][]string, 0, len(stats.Stages))
	for _, sc := range stats.Stages {
		rows = append(rows, []string{
			string(sc.Stage),
			strconv.Itoa(sc.NotStarted),
			strconv.Itoa(sc.InProgress),
			strconv.Itoa(sc.Done),
			strconv.Itoa(sc.Failed),
		})
	}
	printTable(cmd, []string{"Stage", "Not started", "In progress", "Done", "Failed"}, rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight}, "")

	printCounts(cmd, "Language", stats.TopLanguages)
	printCounts(cmd, "Tag", stats.TopTags)
	printCounts(cmd, "Model", stats.Models)
	return printRecentRuns(c, cmd, store, s)
}

func printCounts(cmd *cobra.Command, label string, counts []catalog.Count) {
	if len(counts) == 0 {
		return
	}
	rows := make([][]string, 0, len(counts))
	for _, c := range counts {
		rows = append(rows, []string{c.Value, strconv.Itoa(c.Count)})
	}
	printTable(cmd, []string{label, "Items"}, rows, []columnAlignment{alignLeft, alignRight}, "")
}

func printRecentRuns(ctx context.Context, cmd *cobra.Command, store *catalog.Store, s catalog.Stage) error {
	runs, err := store.RecentRuns(ctx, s, 5)
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.RunID,
			strconv.Itoa(r.Attempted),
			strconv.Itoa(r.Succeeded),
			strconv.Itoa(r.Failed),
			strconv.Itoa(r.Skipped),
		})
	}
	printTable(cmd, []string{"Started", "Run", "Attempted", "Succeeded", "Failed", "Skipped"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight},
		fmt.Sprintf("No %s runs recorded", s))
	return nil
}
