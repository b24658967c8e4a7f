package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"archivist/internal/api"
	"archivist/internal/catalog"
	"archivist/internal/config"
	"archivist/internal/services/objectstore"
)

// itemURLs resolves PDF and mirror addresses for item views.
func itemURLs(cfg *config.Config) api.URLs {
	urls := api.URLs{PDFBaseURL: cfg.Source.PDFBaseURL}
	if cfg.MirrorConfigured() {
		if bucket, err := objectstore.New(cfg); err == nil {
			urls.Mirror = bucket.PublicURL
		}
	}
	return urls
}

func newTextCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "text NODE_ID",
		Short: "Print the extracted text of an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseNodeID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *catalog.Store) error {
				text, err := store.GetText(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), text)
				return nil
			})
		},
	}
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show NODE_ID",
		Short: "Show catalog metadata and stage status of an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			id, err := parseNodeID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *catalog.Store) error {
				item, err := store.Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				dto := api.FromItem(item, itemURLs(cfg))
				if asJSON {
					return writeJSON(cmd, api.ItemResponse{Item: dto})
				}
				printItem(cmd, dto)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the item as JSON")
	return cmd
}

func printItem(cmd *cobra.Command, item api.Item) {
	rows := [][]string{
		{"Node", strconv.FormatInt(item.NodeID, 10)},
		{"Title", item.Title},
		{"Date", orDash(item.Date)},
		{"Series", orDash(item.Series)},
		{"Type", orDash(item.ItemType)},
		{"Document", orDash(item.DocID)},
		{"PDF", orDash(item.PDFURL)},
		{"Mirror", orDash(item.MirrorURL)},
		{"Summary", orDash(item.Summary)},
		{"Tags", orDash(strings.Join(item.Tags, ", "))},
		{"Language", orDash(item.Language)},
		{"Model", orDash(item.AnalysisModel)},
		{"Download", item.DownloadStatus},
		{"Extract", item.ExtractStatus},
		{"Analysis", item.AnalysisStatus},
		{"Mirror status", item.MirrorStatus},
		{"Starred", yesNo(item.Starred)},
	}
	printTable(cmd, []string{"Field", "Value"}, rows, nil, "")
}

func newRelatedCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "related NODE_ID",
		Short: "List items from the same folder and items sharing tags",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			id, err := parseNodeID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *catalog.Store) error {
				related, err := store.Related(cmd.Context(), id, limit)
				if err != nil {
					return err
				}
				resp := api.FromRelated(id, related, itemURLs(cfg))
				if asJSON {
					return writeJSON(cmd, resp)
				}
				rows := make([][]string, 0, len(resp.SameFolder))
				for _, item := range resp.SameFolder {
					rows = append(rows, []string{strconv.FormatInt(item.NodeID, 10), orDash(item.Date), truncate(item.Title, 70)})
				}
				printTable(cmd, []string{"Same folder", "Date", "Title"}, rows, nil, "No items in the same folder")
				rows = rows[:0]
				for _, r := range resp.SharedTags {
					rows = append(rows, []string{strconv.FormatInt(r.Item.NodeID, 10), truncate(r.Item.Title, 60), strings.Join(r.SharedTags, ", ")})
				}
				printTable(cmd, []string{"Shared tags", "Title", "Tags"}, rows, nil, "No items share tags")
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum items per group")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the groups as JSON")
	return cmd
}

func newStarCommand(ctx *commandContext, starred bool) *cobra.Command {
	use, short, verb := "star NODE_ID", "Star an item", "Starred"
	if !starred {
		use, short, verb = "unstar NODE_ID", "Remove the star from an item", "Unstarred"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseNodeID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *catalog.Store) error {
				if err := store.SetStarred(cmd.Context(), id, starred); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %d\n", verb, id)
				return nil
			})
		},
	}
}

func newStarredCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "starred",
		Short: "List starred items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *catalog.Store) error {
				items, err := store.Starred(cmd.Context())
				if err != nil {
					return err
				}
				dtos := api.FromItems(items, itemURLs(cfg))
				if asJSON {
					return writeJSON(cmd, api.ItemListResponse{Items: dtos})
				}
				rows := make([][]string, 0, len(dtos))
				for _, item := range dtos {
					rows = append(rows, []string{strconv.FormatInt(item.NodeID, 10), orDash(item.Date), truncate(item.Title, 70), item.StarredAt})
				}
				printTable(cmd, []string{"ID", "Date", "Title", "Starred at"}, rows, nil, "No starred items")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the items as JSON")
	return cmd
}
