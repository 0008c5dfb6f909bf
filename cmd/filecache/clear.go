package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every entry from the cache directory",
	Long: `Remove every entry file and lock file under the cache directory and
prune the directories left empty. Files the cache did not create are kept.`,
	Args: cobra.NoArgs,
	RunE: runClear,
}

var clearYes bool

func init() {
	clearCmd.Flags().BoolVarP(&clearYes, "yes", "y", false, "do not ask for confirmation")
	rootCmd.AddCommand(clearCmd)
}

func runClear(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	cache, err := openCache(logger, nil)
	if err != nil {
		return err
	}
	if !clearYes {
		return fmt.Errorf("refusing to clear %s without --yes", cache.Dir())
	}

	if err := cache.Clear(cmd.Context()); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s\n", cache.Dir())
	return nil
}
