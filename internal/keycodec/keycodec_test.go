package keycodec

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/discochess/filecache/internal/digest"
)

func newCodec(t *testing.T, namespace, prefix string, depth, memo int) *Codec {
	t.Helper()
	h, err := digest.New("sha256")
	if err != nil {
		t.Fatalf("digest.New() error = %v", err)
	}
	c, err := New(h, namespace, prefix, depth, ".cache", memo)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestCodec_Path_Sharded(t *testing.T) {
	c := newCodec(t, "", "", 2, 0)
	sum := c.Digest("user:1")

	want := filepath.Join(sum[0:2], sum[2:4], sum+".cache")
	if got := c.Path("user:1"); got != want {
		t.Errorf("Path() = %q, want %q", got, want)
	}
}

func TestCodec_Path_Unsharded(t *testing.T) {
	c := newCodec(t, "", "", 0, 0)
	sum := c.Digest("user:1")

	if got := c.Path("user:1"); got != sum+".cache" {
		t.Errorf("Path() = %q, want %q", got, sum+".cache")
	}
}

func TestCodec_Digest_CompositeKey(t *testing.T) {
	h, _ := digest.New("sha256")
	c := newCodec(t, "ns1", "app:", 0, 0)

	if got, want := c.Digest("k"), h.Sum("ns1\x00app:k"); got != want {
		t.Errorf("Digest() = %q, want %q", got, want)
	}
}

func TestCodec_NamespaceIsolation(t *testing.T) {
	a := newCodec(t, "ns1", "", 2, 0)
	b := newCodec(t, "ns2", "", 2, 0)

	if a.Path("k") == b.Path("k") {
		t.Error("same key in different namespaces resolved to the same path")
	}
}

func TestCodec_NamespacePrefixNotAmbiguous(t *testing.T) {
	// "a"+"bc" and "ab"+"c" must not collide thanks to the separator.
	a := newCodec(t, "a", "", 0, 0)
	b := newCodec(t, "ab", "", 0, 0)

	if a.Digest("bc") == b.Digest("c") {
		t.Error("namespace boundary is ambiguous")
	}
}

func TestCodec_DepthBeyondDigest(t *testing.T) {
	h, _ := digest.New("fnv1a64")
	c, err := New(h, "", "", 20, ".cache", 0)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	// fnv1a64 has 16 hex chars, so at most 8 segments plus the file.
	parts := strings.Split(c.Path("k"), string(filepath.Separator))
	if len(parts) != 9 {
		t.Errorf("got %d path components, want 9", len(parts))
	}
}

func TestCodec_Memo(t *testing.T) {
	plain := newCodec(t, "ns", "p:", 3, 0)
	memo := newCodec(t, "ns", "p:", 3, 16)

	for _, key := range []string{"a", "b", "a", "c", "a"} {
		if memo.Path(key) != plain.Path(key) {
			t.Errorf("memoized Path(%q) differs from computed path", key)
		}
	}
}

func TestCodec_IsEntry(t *testing.T) {
	c := newCodec(t, "", "", 0, 0)

	tests := []struct {
		name string
		want bool
	}{
		{"abcdef.cache", true},
		{"abcdef.cache.lock", false},
		{".abcdef.cache.1234.tmp", false},
		{"README.md", false},
	}
	for _, tt := range tests {
		if got := c.IsEntry(tt.name); got != tt.want {
			t.Errorf("IsEntry(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func BenchmarkCodec_Path(b *testing.B) {
	h, _ := digest.New("sha256")
	plain, _ := New(h, "ns", "", 2, ".cache", 0)
	memo, _ := New(h, "ns", "", 2, ".cache", 1024)

	b.Run("computed", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			plain.Path("user:12345")
		}
	})
	b.Run("memoized", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			memo.Path("user:12345")
		}
	})
}
