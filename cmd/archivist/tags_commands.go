package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"archivist/internal/catalog"
	"archivist/internal/tagnorm"
)

func newTagsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tags",
		Short: "Tag normalization utilities",
	}
	cmd.AddCommand(newTagsSimilarCommand(ctx))
	cmd.AddCommand(newTagsApplyCommand(ctx))
	return cmd
}

func newTagsSimilarCommand(ctx *commandContext) *cobra.Command {
	var threshold float64
	var rulesOut string

	cmd := &cobra.Command{
		Use:   "similar",
		Short: "Find groups of near-duplicate tags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if threshold <= 0 || threshold > 1 {
				return fmt.Errorf("--threshold must be in (0, 1]")
			}
			return ctx.withStore(func(store *catalog.Store) error {
				sets, err := store.TagSets(cmd.Context())
				if err != nil {
					return err
				}
				groups := tagnorm.FindSimilar(tagnorm.Count(sets), threshold)
				rows := make([][]string, 0, len(groups))
				for _, g := range groups {
					variants := make([]string, 0, len(g.Tags))
					for _, tc := range g.Tags {
						variants = append(variants, fmt.Sprintf("%s (%d)", tc.Tag, tc.Count))
					}
					kind := "similar"
					if g.Exact {
						kind = "case"
					}
					rows = append(rows, []string{g.Canonical(), kind, strconv.Itoa(g.Total()), strings.Join(variants, ", ")})
				}
				printTable(cmd, []string{"Canonical", "Match", "Items", "Variants"}, rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft}, "No similar tags found")

				if rulesOut == "" || len(groups) == 0 {
					return nil
				}
				data, err := tagnorm.GenerateRules(groups).Encode()
				if err != nil {
					return err
				}
				if rulesOut == "-" {
					_, err = cmd.OutOrStdout().Write(data)
					return err
				}
				if err := os.WriteFile(rulesOut, data, 0o644); err != nil {
					return fmt.Errorf("write rules: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote merge rules to %s\n", rulesOut)
				return nil
			})
		},
	}
	cmd.Flags().Float64Var(&threshold, "threshold", tagnorm.DefaultThreshold, "Similarity threshold between 0 and 1")
	cmd.Flags().StringVarP(&rulesOut, "output", "o", "", "Write suggested merge rules as YAML to this path (- for stdout)")
	return cmd
}

func newTagsApplyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "apply RULES.yaml",
		Short: "Rewrite stored tags using a merge/drop rules file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rules, err := tagnorm.LoadRules(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *catalog.Store) error {
				updated, err := tagnorm.ApplyToStore(cmd.Context(), store, rules)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d rules; updated %d items\n", rules.Len(), updated)
				return nil
			})
		},
	}
}
