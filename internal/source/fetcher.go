package source

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hupe1980/gmicfx/internal/catalog"
	"github.com/hupe1980/gmicfx/internal/logging"
)

// DefaultMaxSize bounds downloaded and decompressed source content.
const DefaultMaxSize int64 = 64 << 20

// Fetcher retrieves the raw bytes of one source.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// statusError carries a non-2xx HTTP status.
type statusError struct {
	code int
	url  string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d %s", e.url, e.code, http.StatusText(e.code))
}

// HTTPFetcher downloads sources over http(s).
type HTTPFetcher struct {
	Client  *http.Client
	MaxSize int64
	// UserAgent is sent with every request when non-empty.
	UserAgent string
}

// NewHTTPFetcher returns an HTTPFetcher. insecure skips TLS certificate
// verification.
func NewHTTPFetcher(insecure bool) *HTTPFetcher {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if insecure {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via --insecure
	}

	return &HTTPFetcher{
		Client:  &http.Client{Transport: tr},
		MaxSize: DefaultMaxSize,
	}
}

// Fetch performs a GET and returns the body.
func (f *HTTPFetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &statusError{code: resp.StatusCode, url: ref}
	}

	return readLimited(resp.Body, f.maxSize())
}

func (f *HTTPFetcher) maxSize() int64 {
	if f.MaxSize > 0 {
		return f.MaxSize
	}

	return DefaultMaxSize
}

// FileFetcher reads sources from the local filesystem.
type FileFetcher struct {
	MaxSize int64
}

// Fetch reads a local path or file:// URL.
func (f *FileFetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := ref
	if u, err := url.Parse(ref); err == nil && u.Scheme == "file" {
		path = u.Path
	}

	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	limit := f.MaxSize
	if limit <= 0 {
		limit = DefaultMaxSize
	}

	return readLimited(fh, limit)
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("reading content: %w", err)
	}

	if int64(len(data)) > limit {
		return nil, fmt.Errorf("content exceeds maximum size of %d bytes", limit)
	}

	return data, nil
}

// MultiFetcher dispatches to the fetcher for the detected source type and
// turns the raw result into an Outcome.
type MultiFetcher struct {
	fetchers map[Type]Fetcher
	timeout  time.Duration
	maxSize  int64
}

// Option configures a MultiFetcher.
type Option func(*MultiFetcher)

// WithTimeout bounds each fetch.
func WithTimeout(d time.Duration) Option {
	return func(m *MultiFetcher) { m.timeout = d }
}

// WithFetcher overrides the fetcher for one source type.
func WithFetcher(t Type, f Fetcher) Option {
	return func(m *MultiFetcher) { m.fetchers[t] = f }
}

// NewMultiFetcher creates a MultiFetcher with the default http and file
// fetchers.
func NewMultiFetcher(opts ...Option) *MultiFetcher {
	m := &MultiFetcher{
		fetchers: map[Type]Fetcher{
			TypeHTTP: NewHTTPFetcher(false),
			TypeFile: &FileFetcher{},
		},
		maxSize: DefaultMaxSize,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// CachePath returns the cache file of a source under dir.
func CachePath(dir, name string) string {
	return filepath.Join(dir, "sources", name+".gmic")
}

// WriteCache saves the content of a successful outcome to its cache file
// under dir and records the path in o.CachePath. Callers write only
// content that parsed, so a broken download never replaces a good copy.
func WriteCache(dir string, o *Outcome) *FetchError {
	if !o.OK() {
		return failure(o.Source, FailureWrite, errors.New("outcome has no content"))
	}

	path := CachePath(dir, o.Source.Name)
	if err := catalog.WriteFileAtomic(path, o.Content, 0o644); err != nil {
		return failure(o.Source, FailureWrite, err)
	}

	o.CachePath = path

	return nil
}

// Fetch retrieves one source. It never returns an error; failures are
// reported in the Outcome.
func (m *MultiFetcher) Fetch(ctx context.Context, d Descriptor) Outcome {
	start := time.Now()
	logger := logging.WithSource(logging.FromContext(ctx), d.Name)

	out := Outcome{Source: d}
	out.Content, out.Err = m.fetch(ctx, d)
	out.Duration = time.Since(start)

	if out.Err != nil {
		out.Content = nil
		logger.Warn("source fetch failed", "kind", out.Err.Kind.String(), "error", out.Err)
	} else {
		logger.Debug("source fetched", "bytes", len(out.Content), "duration", out.Duration)
	}

	return out
}

func (m *MultiFetcher) fetch(ctx context.Context, d Descriptor) ([]byte, *FetchError) {
	typ, err := Detect(d.URL)
	if err != nil {
		return nil, failure(d, FailureUnreachable, err)
	}

	f, ok := m.fetchers[typ]
	if !ok {
		return nil, failure(d, FailureUnreachable, fmt.Errorf("no fetcher for %s sources", typ))
	}

	if m.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	raw, err := f.Fetch(ctx, d.URL)
	if err != nil {
		return nil, classify(d, err)
	}

	if len(raw) == 0 {
		return nil, failure(d, FailureEmptyContent, nil)
	}

	content, err := decompress(raw, d.Compression, m.maxSize)
	if err != nil {
		return nil, failure(d, FailureDecompression, err)
	}

	if len(strings.TrimSpace(string(content))) == 0 {
		return nil, failure(d, FailureEmptyContent, nil)
	}

	return content, nil
}

func classify(d Descriptor, err error) *FetchError {
	var se *statusError
	if errors.As(err, &se) {
		return &FetchError{Source: d.Name, Kind: FailureHTTP, Status: se.code, Err: err}
	}

	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return failure(d, FailureTimeout, err)
	}

	return failure(d, FailureUnreachable, err)
}
