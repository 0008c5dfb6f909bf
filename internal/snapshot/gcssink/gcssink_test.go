package gcssink

import "testing"

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
			WithPrefix(tt.input)(s)
			if s.prefix != tt.want {
				t.Errorf("prefix = %q, want %q", s.prefix, tt.want)
			}
		})
	}
}

func TestParseURL(t *testing.T) {
	tests := []struct {
		url        string
		wantBucket string
		wantPrefix string
		wantErr    bool
	}{
		{"gs://bucket", "bucket", "", false},
		{"gs://bucket/", "bucket", "", false},
		{"gs://bucket/snapshots/node-1", "bucket", "snapshots/node-1/", false},
		{"gs://", "", "", true},
		{"s3://bucket", "", "", true},
		{"/local/dir", "", "", true},
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

func TestSink_objectName(t *testing.T) {
	s := &Sink{prefix: "data/v1/"}

	got := s.objectName("ab/cd/abcd.cache")
	want := "data/v1/ab/cd/abcd.cache"
	if got != want {
		t.Errorf("objectName() = %q, want %q", got, want)
	}
}
