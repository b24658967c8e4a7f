package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"archivist/internal/catalog"
)

func newIndexCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Full-text index maintenance",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild the full-text index from extracted items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withMaintenanceLock(func() error {
				return ctx.withStore(func(store *catalog.Store) error {
					n, err := store.RebuildIndex(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d items\n", n)
					return nil
				})
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "verify",
		Short: "Check that every extracted item has exactly one index row",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *catalog.Store) error {
				report, err := store.VerifyIndex(cmd.Context())
				if err != nil {
					return err
				}
				rows := [][]string{
					{"Indexed rows", strconv.Itoa(report.Indexed)},
					{"Extracted items", strconv.Itoa(report.Extracted)},
					{"Missing", strconv.Itoa(report.Missing)},
					{"Orphaned", strconv.Itoa(report.Orphaned)},
				}
				printTable(cmd, []string{"Index", "Count"}, rows, []columnAlignment{alignLeft, alignRight}, "")
				if !report.Consistent() {
					return fmt.Errorf("index inconsistent; run `archivist index rebuild`")
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Index consistent")
				return nil
			})
		},
	})
	return cmd
}

func newRecoverCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration
	var stageName string

	cmd := &cobra.Command{
		Use:   "recover",
		Short: "Reset in-progress claims abandoned by interrupted runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("older-than") {
				olderThan = cfg.StaleAfter()
			}
			var target catalog.Stage
			if stageName != "" {
				if target, err = catalog.ParseStage(stageName); err != nil {
					return err
				}
			}
			return ctx.withMaintenanceLock(func() error {
				return ctx.withStore(func(store *catalog.Store) error {
					n, err := store.ResetStuck(cmd.Context(), target, olderThan)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Reset %d stuck claims older than %s\n", n, olderThan)
					return nil
				})
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Reset claims started before this age (default pipeline.stale_minutes)")
	cmd.Flags().StringVar(&stageName, "stage", "", "Only reset this stage")
	return cmd
}
