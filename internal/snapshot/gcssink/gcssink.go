// Package gcssink implements a snapshot sink on Google Cloud Storage.
package gcssink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/discochess/filecache/internal/snapshot"
)

// Compile-time check that Sink implements snapshot.Sink.
var _ snapshot.Sink = (*Sink)(nil)

// Sink stores snapshot objects in a GCS bucket.
type Sink struct {
	client *storage.Client
	bucket *storage.BucketHandle
	prefix string
}

// New creates a new GCS sink.
// The bucket must already exist.
func New(ctx context.Context, bucketName string, opts ...Option) (*Sink, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating GCS client: %w", err)
	}

	s := &Sink{
		client: client,
		bucket: client.Bucket(bucketName),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Option configures a Sink.
type Option func(*Sink)

// WithPrefix sets a key prefix for all operations.
func WithPrefix(prefix string) Option {
	return func(s *Sink) {
		s.prefix = normalizePrefix(prefix)
	}
}

// ParseURL parses "gs://bucket/prefix" into bucket and prefix.
func ParseURL(url string) (bucket, prefix string, err error) {
	if !strings.HasPrefix(url, "gs://") {
		return "", "", fmt.Errorf("invalid GCS path: must start with gs://")
	}

	path := strings.TrimPrefix(url, "gs://")
	parts := strings.SplitN(path, "/", 2)
	if parts[0] == "" {
		return "", "", fmt.Errorf("invalid GCS path: missing bucket name")
	}

	bucket = parts[0]
	if len(parts) > 1 {
		prefix = normalizePrefix(parts[1])
	}
	return bucket, prefix, nil
}

func normalizePrefix(prefix string) string {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return prefix
}

// Put uploads the content of r under name.
func (s *Sink) Put(ctx context.Context, name string, r io.Reader) error {
	writer := s.bucket.Object(s.objectName(name)).NewWriter(ctx)
	writer.ContentType = "application/octet-stream"

	if _, err := io.Copy(writer, r); err != nil {
		writer.Close()
		return fmt.Errorf("uploading %s: %w", name, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("uploading %s: %w", name, err)
	}
	return nil
}

// Get opens the object stored under name.
func (s *Sink) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	reader, err := s.bucket.Object(s.objectName(name)).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, snapshot.ErrNotFound
		}
		return nil, fmt.Errorf("creating reader: %w", err)
	}
	return reader, nil
}

// List returns the names of every object under the prefix.
func (s *Sink) List(ctx context.Context) ([]string, error) {
	it := s.bucket.Objects(ctx, &storage.Query{Prefix: s.prefix})

	var names []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("listing objects: %w", err)
		}
		names = append(names, strings.TrimPrefix(attrs.Name, s.prefix))
	}
	return names, nil
}

// Close releases resources.
func (s *Sink) Close() error {
	return s.client.Close()
}

// objectName returns the full object name for a snapshot name.
func (s *Sink) objectName(name string) string {
	return s.prefix + name
}
