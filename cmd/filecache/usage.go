package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show what the cache directory holds",
	Long: `Display statistics about the cache directory including:
- Number of entries, expired and corrupt ones
- Serialized size compared against max_cache_size
- Size on disk`,
	Args: cobra.NoArgs,
	RunE: runUsage,
}

func init() {
	rootCmd.AddCommand(usageCmd)
}

func runUsage(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	cache, err := openCache(logger, nil)
	if err != nil {
		return err
	}

	u, err := cache.Usage(cmd.Context())
	if err != nil {
		return fmt.Errorf("usage: %w", err)
	}

	limit := cache.Config().MaxCacheSize
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Cache directory: %s\n", cache.Dir())
	fmt.Fprintf(out, "Entries:         %d (%d expired, %d corrupt)\n", u.Entries, u.Expired, u.Corrupt)
	fmt.Fprintf(out, "Stored size:     %s of %s", formatBytes(u.RawBytes), formatBytes(limit))
	if limit > 0 {
		fmt.Fprintf(out, " (%.1f%%)", float64(u.RawBytes)/float64(limit)*100)
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Size on disk:    %s\n", formatBytes(u.DiskBytes))
	return nil
}
