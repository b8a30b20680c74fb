package cache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	baseDigest = digest.FromString("python:3.11-slim")
	reqDigest  = digest.FromString("streamlit\n")
)

func TestKeyStable(t *testing.T) {
	build := func() Key {
		return NewKey(baseDigest, "linux/amd64").
			Step("SET workdir=/app").
			Step("COPY requirements.txt requirements.txt").
			Source("requirements.txt", reqDigest).
			Step("RUN pip install --no-cache-dir -r requirements.txt")
	}

	a, b := build(), build()
	assert.Equal(t, a, b)
	assert.NoError(t, a.Digest().Validate())
	assert.Equal(t, a.Digest().String(), a.String())
}

func TestKeyInputs(t *testing.T) {
	base := NewKey(baseDigest, "linux/amd64")

	keys := map[string]Key{
		"root":     base,
		"platform": NewKey(baseDigest, "linux/arm64"),
		"base":     NewKey(digest.FromString("python:3.12-slim"), "linux/amd64"),
		"step":     base.Step("RUN pip install"),
		"source":   base.Source("requirements.txt", reqDigest),
		"other":    base.Source("requirements.txt", digest.FromString("pandas\n")),
		"kind":     base.Step("requirements.txt@" + reqDigest.String()),
		"order":    base.Step("a").Step("b"),
		"reversed": base.Step("b").Step("a"),
	}

	seen := make(map[Key]string)
	for name, k := range keys {
		if prev, ok := seen[k]; ok {
			t.Errorf("keys %q and %q collide", prev, name)
		}
		seen[k] = name
	}
}

func TestIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "layers.db")

	idx, err := Open(path)
	require.NoError(t, err)

	key := NewKey(baseDigest, "linux/amd64").Step("RUN pip install")

	got, err := idx.Get(key)
	require.NoError(t, err)
	assert.Nil(t, got)

	entry := &Entry{
		Snapshot: "pybox-layer-1",
		Layer: ocispec.Descriptor{
			MediaType: ocispec.MediaTypeImageLayerGzip,
			Digest:    digest.FromString("layer"),
			Size:      42,
		},
		DiffID:  digest.FromString("diff"),
		Created: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	require.NoError(t, idx.Put(key, entry))

	got, err = idx.Get(key)
	require.NoError(t, err)
	assert.Equal(t, entry, got)

	// Entries survive reopening.
	require.NoError(t, idx.Close())
	idx, err = Open(path)
	require.NoError(t, err)
	defer idx.Close()

	all, err := idx.List()
	require.NoError(t, err)
	assert.Equal(t, map[string]*Entry{key.String(): entry}, all)

	require.NoError(t, idx.Delete(key))
	require.NoError(t, idx.Delete(key))

	got, err = idx.Get(key)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestParseKey(t *testing.T) {
	key := NewKey(digest.FromString("python:3.11-slim"), "linux/amd64").Step("RUN pip install")

	parsed, err := ParseKey(key.String())
	require.NoError(t, err)
	assert.Equal(t, key, parsed)

	for _, s := range []string{"", "not-a-digest", "sha256:abc", digest.SHA512.FromString("x").String()} {
		_, err := ParseKey(s)
		assert.ErrorIs(t, err, ErrCache, "ParseKey(%q)", s)
	}
}
