package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var errNotFound = errors.New("key not found")

var getCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Print the value stored under a key",
	Long: `Print the value stored under KEY. Strings are printed as-is, other
values as JSON. A missing or expired key exits with an error.

Examples:
  filecache get user:1
  filecache get user:1 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runGet,
}

var getJSON bool

func init() {
	getCmd.Flags().BoolVar(&getJSON, "json", false, "always print the value as JSON")
	rootCmd.AddCommand(getCmd)
}

// missing is returned by Get when the key has no live entry.
var missing = &struct{ name string }{"missing"}

func runGet(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	cache, err := openCache(logger, nil)
	if err != nil {
		return err
	}

	value, err := cache.Get(cmd.Context(), args[0], missing)
	if err != nil {
		return fmt.Errorf("get %s: %w", args[0], err)
	}
	if value == missing {
		return fmt.Errorf("%s: %w", args[0], errNotFound)
	}
	return printValue(cmd, value)
}

func printValue(cmd *cobra.Command, value any) error {
	if s, ok := value.(string); ok && !getJSON {
		fmt.Fprintln(cmd.OutOrStdout(), s)
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding value: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
