package main

import (
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"archivist/internal/api"
	"archivist/internal/catalog"
	"archivist/internal/extract"
	"archivist/internal/pipeline"
	"archivist/internal/services"
	"archivist/internal/services/ocr"
	"archivist/internal/stage"
)

func newArchiveCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "archive [BOX]",
		Short: "Browse the catalog by physical box and folder",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			box := 0
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n <= 0 {
					return fmt.Errorf("%w: box %q must be a positive integer", services.ErrValidation, args[0])
				}
				box = n
			}
			return ctx.withStore(func(store *catalog.Store) error {
				summaries, err := store.Summaries(cmd.Context())
				if err != nil {
					return err
				}
				if box > 0 {
					folders, err := store.FoldersForBox(cmd.Context(), box)
					if err != nil {
						return err
					}
					resp := api.FromFolders(box, folders, summaries)
					if asJSON {
						return writeJSON(cmd, resp)
					}
					rows := make([][]string, 0, len(resp.Folders))
					for _, f := range resp.Folders {
						rows = append(rows, []string{strconv.Itoa(f.Folder), strconv.Itoa(f.DocumentCount), orDash(truncate(f.Summary, 60))})
					}
					printTable(cmd, []string{"Folder", "Documents", "Summary"}, rows,
						[]columnAlignment{alignRight, alignRight, alignLeft}, fmt.Sprintf("Box %d has no catalogued folders", box))
					return nil
				}

				boxes, err := store.ArchiveStructure(cmd.Context())
				if err != nil {
					return err
				}
				resp := api.FromArchive(boxes, summaries)
				if asJSON {
					return writeJSON(cmd, resp)
				}
				rows := make([][]string, 0, len(resp.Boxes))
				for _, b := range resp.Boxes {
					rows = append(rows, []string{
						strconv.Itoa(b.Box),
						strconv.Itoa(len(b.Folders)),
						strconv.Itoa(b.DocumentCount),
						orDash(truncate(b.Summary, 60)),
					})
				}
				printTable(cmd, []string{"Box", "Folders", "Documents", "Summary"}, rows,
					[]columnAlignment{alignRight, alignRight, alignRight, alignLeft}, "No items with archive locations")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the layout as JSON")
	return cmd
}

func newReocrCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "reocr NODE_ID",
		Short: "Re-extract one item with OCR forced and reopen its analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			id, err := parseNodeID(args[0])
			if err != nil {
				return err
			}
			handler := extract.New(cfg, ocr.New(cfg.OCR), logger)
			if health := handler.HealthCheck(cmd.Context()); !health.Ready {
				return fmt.Errorf("%w: extract stage not ready: %s", services.ErrConfiguration, health.Detail)
			}
			return ctx.withStore(func(store *catalog.Store) error {
				exec := pipeline.NewExecutor(store, logger, []stage.Handler{handler})
				item, err := extract.Reocr(cmd.Context(), exec, store, id)
				if err != nil {
					return err
				}
				resp := api.FromReocr(item)
				if asJSON {
					return writeJSON(cmd, resp)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Re-extracted node %d: %d characters, analysis %s\n",
					id, utf8.RuneCountInString(item.TextContent), item.AnalysisStatus)
				fmt.Fprintln(cmd.OutOrStdout(), resp.Preview)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}
