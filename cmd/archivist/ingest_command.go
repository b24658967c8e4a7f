package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"archivist/internal/catalog"
	"archivist/internal/ingest"
	"archivist/internal/services/catalogsite"
)

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var pages, startPage int
	var delay float64
	var testMode bool

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Scrape the catalog search pages and insert new items",
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
				delay = cfg.Pipeline.DefaultDelaySeconds
			}
			site, err := catalogsite.New(cfg.Source)
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *catalog.Store) error {
				report, err := ingest.NewHarvester(store, site, logger).Run(cmd.Context(), ingest.Options{
					StartPage: startPage,
					MaxPages:  pages,
					Delay:     time.Duration(delay * float64(time.Second)),
					TestMode:  testMode,
				})
				rows := [][]string{
					{"Collection size", strconv.Itoa(report.Total)},
					{"Pages fetched", strconv.Itoa(report.Pages)},
					{"Rows parsed", strconv.Itoa(report.FetchedRows)},
					{"New items", strconv.Itoa(report.Inserted)},
				}
				if len(report.FailedPages) > 0 {
					failed := make([]string, 0, len(report.FailedPages))
					for _, p := range report.FailedPages {
						failed = append(failed, strconv.Itoa(p))
					}
					rows = append(rows, []string{"Failed pages", strings.Join(failed, ", ")})
				}
				printTable(cmd, []string{"Ingest", "Value"}, rows, []columnAlignment{alignLeft, alignRight}, "")
				if err != nil {
					return fmt.Errorf("ingest: %w", err)
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&pages, "pages", 0, "Maximum number of result pages to fetch (0 fetches all)")
	cmd.Flags().IntVar(&startPage, "start-page", 0, "Resume from this zero-based page")
	cmd.Flags().Float64Var(&delay, "delay", 0, "Seconds to wait between page requests")
	cmd.Flags().BoolVar(&testMode, "test", false, "Fetch only the first page")
	return cmd
}
