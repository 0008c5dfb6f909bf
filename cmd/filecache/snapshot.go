package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/discochess/filecache"
	"github.com/discochess/filecache/internal/filelock"
	"github.com/discochess/filecache/internal/snapshot"
	"github.com/discochess/filecache/internal/snapshot/dirsink"
	"github.com/discochess/filecache/internal/snapshot/gcssink"
	"github.com/discochess/filecache/internal/snapshot/s3sink"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Copy live entries to or from a bucket or directory",
	Long: `Copy the live entries of the cache directory to a snapshot location,
or install the entries of a snapshot into the cache directory.

A location is one of:
  gs://bucket/prefix   Google Cloud Storage
  s3://bucket/prefix   AWS S3 or an S3-compatible service
  /path/to/dir         a local directory

Expired and corrupt entries are skipped in both directions. Pulling never
replaces a local entry that is newer than the snapshot's.`,
}

var pushCmd = &cobra.Command{
	Use:   "push LOCATION",
	Short: "Upload the live entries to a snapshot location",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnapshot(snapshot.Push),
}

var pullCmd = &cobra.Command{
	Use:   "pull LOCATION",
	Short: "Install the entries of a snapshot into the cache directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnapshot(snapshot.Pull),
}

var (
	snapshotWorkers  int
	snapshotRegion   string
	snapshotEndpoint string
	snapshotQuiet    bool
)

func init() {
	snapshotCmd.PersistentFlags().IntVar(&snapshotWorkers, "workers", snapshot.DefaultWorkers, "number of parallel transfers")
	snapshotCmd.PersistentFlags().StringVar(&snapshotRegion, "region", "", "AWS region for s3:// locations")
	snapshotCmd.PersistentFlags().StringVar(&snapshotEndpoint, "endpoint", "", "custom endpoint for S3-compatible services")
	snapshotCmd.PersistentFlags().BoolVarP(&snapshotQuiet, "quiet", "q", false, "do not print progress")
	snapshotCmd.AddCommand(pushCmd, pullCmd)
	rootCmd.AddCommand(snapshotCmd)
}

type transferFunc func(ctx context.Context, root string, sink snapshot.Sink, opts snapshot.Options) (snapshot.Result, error)

func runSnapshot(fn transferFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger()
		if err != nil {
			return err
		}
		defer logger.Sync()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		// Opening the cache creates the directory a pull installs into.
		if _, err := newCache(cfg, logger, nil); err != nil {
			return err
		}

		ctx := cmd.Context()
		sink, err := openSink(ctx, args[0])
		if err != nil {
			return err
		}
		defer sink.Close()

		opts := snapshotOptions(cfg, logger)
		if !snapshotQuiet {
			opts.Progress = printProgress(cmd.ErrOrStderr())
		}

		res, err := fn(ctx, cfg.CacheDirectory, sink, opts)
		if !snapshotQuiet {
			fmt.Fprintln(cmd.ErrOrStderr())
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Transferred %d entries (%s), skipped %d\n",
			res.Transferred, formatBytes(res.Bytes), res.Skipped)
		if err != nil {
			return fmt.Errorf("%s: %w", cmd.Name(), err)
		}
		return nil
	}
}

func snapshotOptions(cfg filecache.Config, logger *zap.Logger) snapshot.Options {
	return snapshot.Options{
		Extension:   cfg.FileExtension,
		Workers:     snapshotWorkers,
		Locker:      filelock.New(cfg.FileLocking, cfg.LockTimeout),
		DirPerm:     cfg.DirectoryPermissions,
		FilePerm:    cfg.FilePermissions,
		Logger:      logger,
		MaxItemSize: cfg.MaxItemSize,
	}
}

// openSink opens the sink named by a gs:// or s3:// URL or a directory path.
func openSink(ctx context.Context, location string) (snapshot.Sink, error) {
	switch {
	case strings.HasPrefix(location, "gs://"):
		bucket, prefix, err := gcssink.ParseURL(location)
		if err != nil {
			return nil, err
		}
		return gcssink.New(ctx, bucket, gcssink.WithPrefix(prefix))

	case strings.HasPrefix(location, "s3://"):
		bucket, prefix, err := s3sink.ParseURL(location)
		if err != nil {
			return nil, err
		}
		opts := []s3sink.Option{s3sink.WithPrefix(prefix)}
		if snapshotRegion != "" {
			opts = append(opts, s3sink.WithRegion(snapshotRegion))
		}
		if snapshotEndpoint != "" {
			opts = append(opts, s3sink.WithEndpoint(snapshotEndpoint))
		}
		return s3sink.New(ctx, bucket, opts...)

	case strings.Contains(location, "://"):
		return nil, fmt.Errorf("unsupported snapshot location %q", location)
	}
	return dirsink.New(location)
}

func printProgress(w io.Writer) snapshot.ProgressFunc {
	var mu sync.Mutex
	return func(p snapshot.Progress) {
		mu.Lock()
		defer mu.Unlock()
		pct := float64(0)
		if p.Total > 0 {
			pct = float64(p.Done) / float64(p.Total) * 100
		}
		fmt.Fprintf(w, "\r[%s] %d / %d entries, %s (%.1f%%)", p.Phase, p.Done, p.Total, formatBytes(p.Bytes), pct)
	}
}
