package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/discochess/filecache"
)

var setCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Store a value under a key",
	Long: `Store VALUE under KEY. VALUE is stored as a string unless --json is
given, in which case it is decoded first.

Examples:
  filecache set greeting hello
  filecache set user:1 '{"name":"Alice","roles":["admin"]}' --json --ttl 1h`,
	Args: cobra.ExactArgs(2),
	RunE: runSet,
}

var (
	setJSON bool
	setTTL  time.Duration
)

func init() {
	setCmd.Flags().BoolVar(&setJSON, "json", false, "decode VALUE as JSON")
	setCmd.Flags().DurationVar(&setTTL, "ttl", 0, "time to live (default: the configured default TTL)")
	rootCmd.AddCommand(setCmd)
}

func runSet(cmd *cobra.Command, args []string) error {
	value, err := parseValue(args[1], setJSON)
	if err != nil {
		return err
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	cache, err := openCache(logger, nil)
	if err != nil {
		return err
	}

	var opts []filecache.SetOption
	if cmd.Flags().Changed("ttl") {
		opts = append(opts, filecache.WithTTL(setTTL))
	}
	ok, err := cache.Set(cmd.Context(), args[0], value, opts...)
	if err != nil {
		return fmt.Errorf("set %s: %w", args[0], err)
	}
	if !ok {
		return fmt.Errorf("set %s: not stored", args[0])
	}
	return nil
}

func parseValue(raw string, asJSON bool) (any, error) {
	if !asJSON {
		return raw, nil
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("decoding JSON value: %w", err)
	}
	return v, nil
}
