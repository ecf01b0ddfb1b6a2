package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/lewtec/dupclassifier/internal/repository"
	"github.com/spf13/cobra"
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history database",
	Short: "List recorded changes",
	Long: `List the changes recorded in a database, newest first.

Example:
  dupclassifier history changes.db --camera front --limit 20
  dupclassifier history changes.db --prune 720h`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		camera, _ := cmd.Flags().GetString("camera")
		limit, _ := cmd.Flags().GetInt("limit")
		prune, _ := cmd.Flags().GetDuration("prune")

		db, err := repository.OpenDatabase(args[0], log)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		repo := repository.NewChangeRepository(db)
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		if prune > 0 {
			deleted, err := repo.DeleteBefore(ctx, time.Now().Add(-prune))
			if err != nil {
				return fmt.Errorf("failed to prune changes: %w", err)
			}
			fmt.Fprintf(out, "Pruned %d changes older than %s\n", deleted, prune)
		}

		changes, err := repo.List(ctx, camera, limit, 0)
		if err != nil {
			return fmt.Errorf("failed to list changes: %w", err)
		}
		stats, err := repo.Stats(ctx, camera)
		if err != nil {
			return fmt.Errorf("failed to read stats: %w", err)
		}

		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "detected_at\tcamera\tdifference\tsha256\tobject")
		for _, c := range changes {
			hash := c.SHA256
			if len(hash) > 12 {
				hash = hash[:12]
			}
			fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\t%s\n", c.DetectedAt.Format(time.RFC3339), c.Camera, c.Difference, hash, c.ObjectKey)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		if camera != "" {
			fmt.Fprintf(out, "\n%d changes on camera %s, mean difference %.2f\n", stats.TotalChanges, camera, stats.MeanDifference)
		} else {
			fmt.Fprintf(out, "\n%d changes across %d cameras, mean difference %.2f\n", stats.TotalChanges, stats.Cameras, stats.MeanDifference)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().String("camera", "", "Only list changes of this camera")
	historyCmd.Flags().IntP("limit", "l", 50, "Maximum number of changes to list, 0 for all")
	historyCmd.Flags().Duration("prune", 0, "Delete changes older than this before listing")
}
