package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"archivist/internal/catalog"
	"archivist/internal/config"
	"archivist/internal/services"
	"archivist/internal/services/anthropic"
	"archivist/internal/services/llm"
	"archivist/internal/summaries"
)

// summaryClient picks the primary provider, or the fallback when only it has
// credentials.
func summaryClient(cfg *config.Config) (summaries.Completer, error) {
	if primary := llm.NewClient(llm.ConfigFromProvider(cfg.Analysis.Primary)); primary.Configured() {
		return primary, nil
	}
	if fallback := anthropic.NewClient(cfg.Analysis.Fallback); fallback.Configured() {
		return fallback, nil
	}
	return nil, fmt.Errorf("%w: %v", services.ErrConfiguration, cfg.RequireAnalysis())
}

func newSummarizeCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Generate box and folder summaries for the finding aid",
	}
	cmd.AddCommand(newSummarizeUnitCommand(ctx, catalog.SummaryFolder))
	cmd.AddCommand(newSummarizeUnitCommand(ctx, catalog.SummaryBox))
	return cmd
}

func newSummarizeUnitCommand(ctx *commandContext, kind catalog.SummaryType) *cobra.Command {
	var limit int
	var delay float64
	var force bool

	use, short := "folders", "Summarize folders from their analyzed documents"
	if kind == catalog.SummaryBox {
		use, short = "boxes", "Summarize boxes from their folders and documents"
	}

	cmd := &cobra.Command{
		Use:   use,
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
			client, err := summaryClient(cfg)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("delay") {
				delay = cfg.Pipeline.DefaultDelaySeconds
			}
			opts := summaries.Options{
				Limit: limit,
				Delay: time.Duration(delay * float64(time.Second)),
				Force: force,
			}
			return ctx.withStore(func(store *catalog.Store) error {
				summarizer := summaries.New(store, client, logger)
				var report summaries.Report
				if kind == catalog.SummaryBox {
					report, err = summarizer.Boxes(cmd.Context(), opts)
				} else {
					report, err = summarizer.Folders(cmd.Context(), opts)
				}
				rows := [][]string{
					{"Selected", strconv.Itoa(report.Selected)},
					{"Succeeded", strconv.Itoa(report.Succeeded)},
					{"Failed", strconv.Itoa(report.Failed)},
					{"Skipped", strconv.Itoa(report.Skipped)},
				}
				printTable(cmd, []string{string(kind) + " summaries", "Count"}, rows, []columnAlignment{alignLeft, alignRight}, "")
				return err
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of units to summarize (0 summarizes all)")
	cmd.Flags().Float64Var(&delay, "delay", 0, "Seconds to wait between provider calls")
	cmd.Flags().BoolVar(&force, "force", false, "Regenerate existing summaries")
	return cmd
}
