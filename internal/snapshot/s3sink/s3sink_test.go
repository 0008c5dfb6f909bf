package s3sink

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/discochess/filecache/internal/snapshot"
)

func TestWithPrefix(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"prefix", "prefix/"},
		{"prefix/", "prefix/"},
		{"a/b/c", "a/b/c/"},
		{"a/b/c/", "a/b/c/"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			s := &Sink{}
			if err := WithPrefix(tt.input)(s); err != nil {
				t.Fatalf("WithPrefix() error = %v", err)
			}
			if s.prefix != tt.want {
				t.Errorf("prefix = %q, want %q", s.prefix, tt.want)
			}
		})
	}
}

func TestWithRegion(t *testing.T) {
	s := &Sink{}
	if err := WithRegion("eu-west-1")(s); err != nil {
		t.Fatalf("WithRegion() error = %v", err)
	}
	if s.region != "eu-west-1" {
		t.Errorf("region = %q, want eu-west-1", s.region)
	}
	if err := WithRegion("")(s); err == nil {
		t.Error("WithRegion(\"\") error = nil, want error")
	}
}

func TestWithEndpoint(t *testing.T) {
	s := &Sink{}
	if err := WithEndpoint("http://localhost:9000")(s); err != nil {
		t.Fatalf("WithEndpoint() error = %v", err)
	}
	if s.endpoint != "http://localhost:9000" {
		t.Errorf("endpoint = %q", s.endpoint)
	}
	if err := WithEndpoint("localhost:9000")(s); err == nil {
		t.Error("WithEndpoint() without scheme error = nil, want error")
	}
}

func TestParseURL(t *testing.T) {
	tests := []struct {
		url        string
		wantBucket string
		wantPrefix string
		wantErr    bool
	}{
		{"s3://bucket", "bucket", "", false},
		{"s3://bucket/warm/cache/", "bucket", "warm/cache/", false},
		{"s3://", "", "", true},
		{"gs://bucket", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			bucket, prefix, err := ParseURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseURL() error = %v, wantErr %v", err, tt.wantErr)
			}
			if bucket != tt.wantBucket || prefix != tt.wantPrefix {
				t.Errorf("ParseURL() = %q, %q; want %q, %q", bucket, prefix, tt.wantBucket, tt.wantPrefix)
			}
		})
	}
}

func TestSink_key(t *testing.T) {
	s := &Sink{prefix: "data/v1/"}

	if got, want := s.key("ab/abcd.cache"), "data/v1/ab/abcd.cache"; got != want {
		t.Errorf("key() = %q, want %q", got, want)
	}
}

func TestReadAllSeekable(t *testing.T) {
	seeker := bytes.NewReader([]byte("seekable"))
	rs, err := snapshot.ReadAllSeekable(seeker)
	if err != nil {
		t.Fatalf("ReadAllSeekable() error = %v", err)
	}
	if rs != io.ReadSeeker(seeker) {
		t.Error("ReadAllSeekable() buffered a reader that can already seek")
	}

	rs, err = snapshot.ReadAllSeekable(io.MultiReader(strings.NewReader("plain")))
	if err != nil {
		t.Fatalf("ReadAllSeekable() error = %v", err)
	}
	data, _ := io.ReadAll(rs)
	if string(data) != "plain" {
		t.Errorf("ReadAllSeekable() content = %q, want plain", data)
	}
}

func TestSink_Close(t *testing.T) {
	s := &Sink{}
	if err := s.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
