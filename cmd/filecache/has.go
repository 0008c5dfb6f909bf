package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var hasCmd = &cobra.Command{
	Use:   "has KEY",
	Short: "Report whether a key holds a live entry",
	Long: `Print true or false depending on whether KEY holds an entry that has
not expired. The exit status is non-zero when it does not.`,
	Args: cobra.ExactArgs(1),
	RunE: runHas,
}

func init() {
	rootCmd.AddCommand(hasCmd)
}

func runHas(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	cache, err := openCache(logger, nil)
	if err != nil {
		return err
	}

	ok, err := cache.Has(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("has %s: %w", args[0], err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), ok)
	if !ok {
		return fmt.Errorf("%s: %w", args[0], errNotFound)
	}
	return nil
}
