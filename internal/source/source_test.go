package source

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/gmicfx/internal/config"
)

const defs = "#@gui Blur\n#@gui Gaussian : fx_gaussian\n#@gui : Sigma = float(2,0,20)\n#@gui _\n"

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()

	var buf bytes.Buffer

	w := gzip.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	return buf.Bytes()
}

func zlibBytes(t *testing.T, data []byte) []byte {
	t.Helper()

	var buf bytes.Buffer

	w := zlib.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	return buf.Bytes()
}

func zstdBytes(t *testing.T, data []byte) []byte {
	t.Helper()

	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)

	defer enc.Close()

	return enc.EncodeAll(data, nil)
}

func serve(t *testing.T, h http.HandlerFunc) string {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	return srv.URL
}

// ---------------------------------------------------------------------------
// Detect / descriptors
// ---------------------------------------------------------------------------

func TestDetect(t *testing.T) {
	tests := []struct {
		ref  string
		want Type
	}{
		{"https://example.com/filters.gmic", TypeHTTP},
		{"HTTP://example.com/filters.gmic", TypeHTTP},
		{"file:///tmp/filters.gmic", TypeFile},
		{"./filters.gmic", TypeFile},
		{"filters.gmic", TypeFile},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got, err := Detect(tt.ref)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Detect("")
	require.Error(t, err)

	_, err = Detect("ftp-less-name")
	require.Error(t, err)
}

func TestByPriority_StableForEqualPriorities(t *testing.T) {
	ds := []Descriptor{
		{Name: "b", Priority: 10},
		{Name: "a1"},
		{Name: "a2"},
		{Name: "c", Priority: -1},
	}

	var names []string
	for _, d := range ByPriority(ds) {
		names = append(names, d.Name)
	}

	assert.Equal(t, []string{"c", "a1", "a2", "b"}, names)
	assert.Equal(t, "b", ds[0].Name, "input must not be reordered")
}

func TestFromConfig(t *testing.T) {
	ds := FromConfig([]config.SourceConfig{{Name: "std", URL: "u", Priority: 3, Compression: "gzip"}})
	require.Len(t, ds, 1)
	assert.Equal(t, Descriptor{Name: "std", URL: "u", Priority: 3, Compression: "gzip"}, ds[0])
}

// ---------------------------------------------------------------------------
// Decompression
// ---------------------------------------------------------------------------

func TestDecompress(t *testing.T) {
	plain := []byte(defs)

	tests := []struct {
		name   string
		data   []byte
		method string
	}{
		{"plain auto", plain, ""},
		{"plain none", plain, config.CompressionNone},
		{"gzip declared", gzipBytes(t, plain), config.CompressionGzip},
		{"gzip sniffed", gzipBytes(t, plain), config.CompressionAuto},
		{"zlib declared", zlibBytes(t, plain), config.CompressionZlib},
		{"zlib sniffed", zlibBytes(t, plain), ""},
		{"zstd declared", zstdBytes(t, plain), config.CompressionZstd},
		{"zstd sniffed", zstdBytes(t, plain), config.CompressionAuto},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := decompress(tt.data, tt.method, DefaultMaxSize)
			require.NoError(t, err)
			assert.Equal(t, plain, out)
		})
	}
}

func TestDecompress_Errors(t *testing.T) {
	_, err := decompress([]byte(defs), config.CompressionGzip, DefaultMaxSize)
	require.Error(t, err)

	_, err = decompress([]byte(defs), "brotli", DefaultMaxSize)
	require.Error(t, err)

	_, err = decompress(gzipBytes(t, bytes.Repeat([]byte("x"), 1024)), config.CompressionGzip, 100)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds maximum")
}

// ---------------------------------------------------------------------------
// MultiFetcher outcomes
// ---------------------------------------------------------------------------

func TestFetch_HTTPSuccess(t *testing.T) {
	url := serve(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(gzipBytes(t, []byte(defs)))
	})

	m := NewMultiFetcher(WithTimeout(5 * time.Second))

	out := m.Fetch(context.Background(), Descriptor{Name: "std", URL: url + "/filters.gmic.gz"})
	require.True(t, out.OK(), "unexpected failure: %v", out.Err)
	assert.Equal(t, defs, string(out.Content))
	assert.Empty(t, out.CachePath, "fetching alone never writes the cache")
}

func TestFetch_FileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.gmic")
	require.NoError(t, os.WriteFile(path, []byte(defs), 0o600))

	m := NewMultiFetcher()

	out := m.Fetch(context.Background(), Descriptor{Name: "local", URL: path})
	require.True(t, out.OK())
	assert.Equal(t, defs, string(out.Content))
	assert.Empty(t, out.CachePath)

	out = m.Fetch(context.Background(), Descriptor{Name: "local", URL: "file://" + path})
	require.True(t, out.OK())
}

func TestFetch_Failures(t *testing.T) {
	slow := serve(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	empty := serve(t, func(http.ResponseWriter, *http.Request) {})
	missing := serve(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	garbage := serve(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not gzip at all"))
	})

	tests := []struct {
		name     string
		desc     Descriptor
		kind     FailureKind
		sentinel error
	}{
		{"timeout", Descriptor{Name: "slow", URL: slow}, FailureTimeout, ErrTimeout},
		{"empty", Descriptor{Name: "empty", URL: empty}, FailureEmptyContent, ErrEmptyContent},
		{"http status", Descriptor{Name: "missing", URL: missing}, FailureHTTP, ErrHTTP},
		{"bad gzip", Descriptor{Name: "garbage", URL: garbage, Compression: config.CompressionGzip}, FailureDecompression, ErrDecompressionFailed},
		{"missing file", Descriptor{Name: "nofile", URL: filepath.Join(t.TempDir(), "none.gmic")}, FailureUnreachable, ErrUnreachable},
	}

	m := NewMultiFetcher(WithTimeout(100 * time.Millisecond))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := m.Fetch(context.Background(), tt.desc)
			require.False(t, out.OK())
			assert.Nil(t, out.Content)
			assert.Equal(t, tt.kind, out.Err.Kind)
			assert.ErrorIs(t, out.Err, tt.sentinel)
		})
	}
}

func TestFetch_HTTPStatusCode(t *testing.T) {
	url := serve(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	out := NewMultiFetcher().Fetch(context.Background(), Descriptor{Name: "s", URL: url})
	require.NotNil(t, out.Err)
	assert.Equal(t, http.StatusServiceUnavailable, out.Err.Status)
	assert.Contains(t, out.Err.Error(), "http-error(503)")
}

// ---------------------------------------------------------------------------
// WriteCache
// ---------------------------------------------------------------------------

func TestWriteCache(t *testing.T) {
	dir := t.TempDir()
	out := Outcome{Source: Descriptor{Name: "std"}, Content: []byte(defs)}

	require.Nil(t, WriteCache(dir, &out))
	assert.Equal(t, CachePath(dir, "std"), out.CachePath)

	cached, err := os.ReadFile(out.CachePath)
	require.NoError(t, err)
	assert.Equal(t, defs, string(cached))
}

func TestWriteCache_FailedOutcomeIsRejected(t *testing.T) {
	dir := t.TempDir()
	out := Outcome{Source: Descriptor{Name: "s"}, Err: &FetchError{Source: "s", Kind: FailureTimeout}}

	ferr := WriteCache(dir, &out)
	require.NotNil(t, ferr)
	assert.Equal(t, FailureWrite, ferr.Kind)

	_, err := os.Stat(CachePath(dir, "s"))
	assert.True(t, os.IsNotExist(err))
}

func TestWriteCache_WriteFailed(t *testing.T) {
	// A regular file where the cache directory should be.
	blocker := filepath.Join(t.TempDir(), "cache")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	out := Outcome{Source: Descriptor{Name: "s"}, Content: []byte(defs)}

	ferr := WriteCache(blocker, &out)
	require.NotNil(t, ferr)
	assert.Equal(t, FailureWrite, ferr.Kind)
	assert.True(t, errors.Is(ferr, ErrWriteFailed))
	assert.Empty(t, out.CachePath)
}

type stubFetcher struct{ data []byte }

func (s stubFetcher) Fetch(context.Context, string) ([]byte, error) { return s.data, nil }

func TestFetch_CustomFetcher(t *testing.T) {
	m := NewMultiFetcher(WithFetcher(TypeHTTP, stubFetcher{data: []byte(defs)}))

	out := m.Fetch(context.Background(), Descriptor{Name: "stub", URL: "https://unused.invalid/x"})
	require.True(t, out.OK())
	assert.Equal(t, defs, string(out.Content))
}
