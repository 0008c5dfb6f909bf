// Package s3sink implements a snapshot sink on AWS S3 or an S3-compatible
// service.
package s3sink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/discochess/filecache/internal/snapshot"
)

// Compile-time check that Sink implements snapshot.Sink.
var _ snapshot.Sink = (*Sink)(nil)

// Sink stores snapshot objects in an S3 bucket.
type Sink struct {
	client   *s3.Client
	bucket   string
	prefix   string
	region   string
	endpoint string
}

// New creates a new S3 sink.
// The bucket must already exist.
func New(ctx context.Context, bucketName string, opts ...Option) (*Sink, error) {
	s := &Sink{bucket: bucketName}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	var loadOpts []func(*config.LoadOptions) error
	if s.region != "" {
		loadOpts = append(loadOpts, config.WithRegion(s.region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	s.client = s3.NewFromConfig(cfg, func(o *s3.Options) {
		if s.endpoint != "" {
			o.BaseEndpoint = aws.String(s.endpoint)
			o.UsePathStyle = true
		}
	})
	return s, nil
}

// Option configures a Sink.
type Option func(*Sink) error

// WithPrefix sets a key prefix for all operations.
func WithPrefix(prefix string) Option {
	return func(s *Sink) error {
		s.prefix = normalizePrefix(prefix)
		return nil
	}
}

// WithRegion sets the AWS region.
func WithRegion(region string) Option {
	return func(s *Sink) error {
		if region == "" {
			return fmt.Errorf("s3sink: empty region")
		}
		s.region = region
		return nil
	}
}

// WithEndpoint sets a custom endpoint (for S3-compatible services like MinIO).
func WithEndpoint(endpoint string) Option {
	return func(s *Sink) error {
		if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
			return fmt.Errorf("s3sink: endpoint %q must be an http(s) URL", endpoint)
		}
		s.endpoint = endpoint
		return nil
	}
}

// ParseURL parses "s3://bucket/prefix" into bucket and prefix.
func ParseURL(url string) (bucket, prefix string, err error) {
	if !strings.HasPrefix(url, "s3://") {
		return "", "", fmt.Errorf("invalid S3 path: must start with s3://")
	}

	path := strings.TrimPrefix(url, "s3://")
	parts := strings.SplitN(path, "/", 2)
	if parts[0] == "" {
		return "", "", fmt.Errorf("invalid S3 path: missing bucket name")
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
	body, err := snapshot.ReadAllSeekable(r)
	if err != nil {
		return fmt.Errorf("reading %s: %w", name, err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(name)),
		Body:        body,
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return fmt.Errorf("uploading %s: %w", name, err)
	}
	return nil
}

// Get opens the object stored under name.
func (s *Sink) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, snapshot.ErrNotFound
		}
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return result.Body, nil
}

// List returns the names of every object under the prefix.
func (s *Sink) List(ctx context.Context) ([]string, error) {
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})

	var names []string
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing objects: %w", err)
		}
		for _, obj := range page.Contents {
			names = append(names, strings.TrimPrefix(aws.ToString(obj.Key), s.prefix))
		}
	}
	return names, nil
}

// Close releases resources.
func (s *Sink) Close() error {
	// S3 client doesn't need explicit closing.
	return nil
}

// key returns the full object key for a snapshot name.
func (s *Sink) key(name string) string {
	return s.prefix + name
}
