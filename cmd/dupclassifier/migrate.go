package main

import (
	"fmt"

	"github.com/lewtec/dupclassifier/internal/repository"
	"github.com/spf13/cobra"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate database",
	Short: "Create or upgrade the change database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := repository.GetDatabase(args[0])
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		version, err := repository.Migrate(db, log)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Database %s at schema version %d\n", args[0], version)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
