package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete KEY...",
	Short: "Remove entries",
	Long: `Remove the entries stored under each KEY. Keys without an entry are
reported but do not fail the command.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	cache, err := openCache(logger, nil)
	if err != nil {
		return err
	}

	removed, err := cache.DeleteMultiple(cmd.Context(), args)
	for _, key := range args {
		if _, seen := removed[key]; !seen {
			continue
		}
		state := "absent"
		if removed[key] {
			state = "deleted"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", key, state)
	}
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}
