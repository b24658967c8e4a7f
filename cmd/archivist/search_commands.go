package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"archivist/internal/catalog"
	"archivist/internal/facets"
	"archivist/internal/search"
)

type searchFlags struct {
	mode     string
	series   string
	itemType string
	from     string
	to       string
	box      int
	folder   int
	language string
	model    string
	tags     []string
	starred  bool
	sortBy   string
	order    string
	page     int
	pageSize int
	json     bool
}

func (f searchFlags) request(query string) (search.Request, error) {
	mode, err := search.ParseMode(f.mode)
	if err != nil {
		return search.Request{}, err
	}
	order, err := search.ParseSort(f.sortBy, f.order)
	if err != nil {
		return search.Request{}, err
	}
	return search.Request{
		Query: query,
		Mode:  mode,
		Filters: search.Filters{
			Series:        f.series,
			ItemType:      f.itemType,
			DateFrom:      f.from,
			DateTo:        f.to,
			Box:           f.box,
			Folder:        f.folder,
			Language:      f.language,
			AnalysisModel: f.model,
			Tags:          f.tags,
			Starred:       f.starred,
		},
		Sort:     order,
		Page:     f.page,
		PageSize: f.pageSize,
	}, nil
}

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var flags searchFlags

	cmd := &cobra.Command{
		Use:   "search [QUERY]",
		Short: "Search the catalog",
		Long: "Search titles, summaries, tags, and extracted text.\n\n" +
			"Modes: exact (full-text, AND/OR/NOT and quoted phrases), fuzzy (substring),\n" +
			"regex (case-insensitive RE2 over the text). An empty query lists by filters.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			req, err := flags.request(query)
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *catalog.Store) error {
				engine := search.NewEngine(store, cfg.Search, search.WithLogger(logger))
				result, err := engine.Search(cmd.Context(), req)
				if err != nil {
					return err
				}
				if flags.json {
					return writeJSON(cmd, result)
				}
				printSearchResult(cmd, result)
				return nil
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.mode, "mode", "exact", "Match mode: exact, fuzzy, or regex")
	f.StringVar(&flags.series, "series", "", "Filter by series")
	f.StringVar(&flags.itemType, "type", "", "Filter by item type")
	f.StringVar(&flags.from, "from", "", "Earliest date (YYYY, YYYY-MM, or YYYY-MM-DD)")
	f.StringVar(&flags.to, "to", "", "Latest date (YYYY, YYYY-MM, or YYYY-MM-DD)")
	f.IntVar(&flags.box, "box", 0, "Filter by box number")
	f.IntVar(&flags.folder, "folder", 0, "Filter by folder number")
	f.StringVar(&flags.language, "lang", "", "Filter by detected language")
	f.StringVar(&flags.model, "model", "", "Filter by analysis model")
	f.StringArrayVar(&flags.tags, "tag", nil, "Require a tag (repeatable)")
	f.BoolVar(&flags.starred, "starred", false, "Only starred items")
	f.StringVar(&flags.sortBy, "sort", "", "Sort field: date_sort, title, series, item_type, node_id, box_number, folder_number, archive_order")
	f.StringVar(&flags.order, "order", "", "Sort order: asc or desc")
	f.IntVar(&flags.page, "page", 1, "Result page (1-based)")
	f.IntVar(&flags.pageSize, "page-size", 0, "Rows per page (0 uses the configured default)")
	f.BoolVar(&flags.json, "json", false, "Print the result as JSON")
	return cmd
}

func printSearchResult(cmd *cobra.Command, result search.Result) {
	out := cmd.OutOrStdout()
	rows := make([][]string, 0, len(result.Rows))
	for _, row := range result.Rows {
		star := ""
		if row.Starred {
			star = "*"
		}
		rows = append(rows, []string{
			strconv.FormatInt(row.NodeID, 10) + star,
			orDash(row.Date),
			truncate(row.Title, 60),
			orDash(row.Series),
			truncate(strings.Join(strings.Fields(row.Snippet), " "), 80),
		})
	}
	printTable(cmd, []string{"ID", "Date", "Title", "Series", "Snippet"}, rows, nil, "No matches")
	pages := 0
	if result.PageSize > 0 {
		pages = (result.Total + result.PageSize - 1) / result.PageSize
	}
	fmt.Fprintf(out, "%d matches, page %d of %d (%s, %s)\n", result.Total, result.Page, pages, result.Mode, result.Ranking)
}

func newFacetsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var top int

	cmd := &cobra.Command{
		Use:   "facets",
		Short: "Show value counts for the browse dimensions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *catalog.Store) error {
				cache := facets.NewCache(facets.NewAggregator(store.DB()), cfg.FacetTTL())
				snapshot, err := cache.Get(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, snapshot)
				}
				printFacets(cmd, snapshot, top)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the snapshot as JSON")
	cmd.Flags().IntVar(&top, "top", 10, "Buckets shown per dimension")
	return cmd
}

func printFacets(cmd *cobra.Command, snapshot facets.Snapshot, top int) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Items: %d\n", snapshot.Total)
	for _, d := range facets.Dimensions {
		buckets := snapshot.Buckets(d)
		if top > 0 && len(buckets) > top {
			buckets = buckets[:top]
		}
		rows := make([][]string, 0, len(buckets))
		for _, b := range buckets {
			rows = append(rows, []string{orDash(b.Value), strconv.Itoa(b.Count)})
		}
		printTable(cmd, []string{string(d), "Items"}, rows, []columnAlignment{alignLeft, alignRight}, fmt.Sprintf("%s: no values", d))
	}
}
