package update

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/gmicfx/internal/catalog"
	"github.com/hupe1980/gmicfx/internal/merge"
	"github.com/hupe1980/gmicfx/internal/source"
)

const listA = `#@gui X
#@gui Y : fx_y_a
#@gui _
`

const listB = `#@gui X
#@gui Y : fx_y_b
#@gui _
#@gui Extra : fx_extra
`

// stubFetcher serves fixed content per source name and records the peak
// number of concurrent fetches.
type stubFetcher struct {
	content map[string]string
	delay   map[string]time.Duration

	active atomic.Int32
	peak   atomic.Int32
}

func (s *stubFetcher) Fetch(ctx context.Context, d source.Descriptor) source.Outcome {
	n := s.active.Add(1)
	defer s.active.Add(-1)

	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}

	select {
	case <-time.After(s.delay[d.Name]):
	case <-ctx.Done():
	}

	text, ok := s.content[d.Name]
	if !ok {
		return source.Outcome{Source: d, Err: &source.FetchError{Source: d.Name, Kind: source.FailureTimeout}}
	}

	return source.Outcome{Source: d, Content: []byte(text)}
}

// ---------------------------------------------------------------------------
// Orchestrator
// ---------------------------------------------------------------------------

func TestUpdate_PublishesMergedSnapshot(t *testing.T) {
	store := catalog.NewStore(nil)
	cacheFile := filepath.Join(t.TempDir(), "catalog.yaml")

	f := &stubFetcher{
		content: map[string]string{"A": listA, "B": listB},
		// B finishes first; priority, not arrival, decides.
		delay: map[string]time.Duration{"A": 30 * time.Millisecond},
	}

	o := New(store, f, []source.Descriptor{{Name: "A"}, {Name: "B", Priority: 5}}, WithCacheFile(cacheFile))

	res, err := o.Update(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Report)
	assert.True(t, res.Changed())
	assert.Same(t, store.Load(), res.Current)

	require.Len(t, res.Outcomes, 2)
	assert.Equal(t, "A", res.Outcomes[0].Source.Name)
	assert.Equal(t, "B", res.Outcomes[1].Source.Name)

	d, ok := store.Load().Lookup("x/y")
	require.True(t, ok)
	assert.Equal(t, "fx_y_b", d.Command)

	cached, err := catalog.LoadFile(cacheFile)
	require.NoError(t, err)
	assert.True(t, cached.Equal(store.Load()))

	diff, err := res.Diff(catalog.DefaultDiffOptions())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"x/y", "extra"}, diff.Added)
}

func TestUpdate_BoundsConcurrency(t *testing.T) {
	content := map[string]string{}
	delay := map[string]time.Duration{}

	var ds []source.Descriptor

	for _, name := range []string{"s1", "s2", "s3", "s4", "s5", "s6"} {
		content[name] = listA
		delay[name] = 20 * time.Millisecond
		ds = append(ds, source.Descriptor{Name: name})
	}

	f := &stubFetcher{content: content, delay: delay}
	o := New(catalog.NewStore(nil), f, ds, WithMaxConcurrent(2))

	_, err := o.Update(context.Background())
	require.NoError(t, err)
	assert.LessOrEqual(t, f.peak.Load(), int32(2))
}

func TestUpdate_AllFailedKeepsCatalog(t *testing.T) {
	store := catalog.NewStore(nil)
	f := &stubFetcher{content: map[string]string{"A": listA}}

	o := New(store, f, []source.Descriptor{{Name: "A"}})
	_, err := o.Update(context.Background())
	require.NoError(t, err)

	before := store.Load()

	o = New(store, &stubFetcher{}, []source.Descriptor{{Name: "A"}, {Name: "B"}})
	res, err := o.Update(context.Background())
	require.NoError(t, err)

	assert.False(t, res.Changed())
	assert.Same(t, before, store.Load())
	assert.Len(t, res.Report, 2)
}

func TestUpdate_CacheWriteFailureIsReported(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	f := &stubFetcher{content: map[string]string{"A": listA}}
	o := New(catalog.NewStore(nil), f, []source.Descriptor{{Name: "A"}},
		WithCacheFile(filepath.Join(blocker, "catalog.yaml")))

	res, err := o.Update(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Report, 1)
	assert.ErrorIs(t, res.Report[0], source.ErrWriteFailed)
	assert.True(t, res.Changed())
}

func TestUpdate_IdenticalContentIsNotPublished(t *testing.T) {
	store := catalog.NewStore(nil)
	cacheFile := filepath.Join(t.TempDir(), "catalog.yaml")

	f := &stubFetcher{content: map[string]string{"A": listA}}
	o := New(store, f, []source.Descriptor{{Name: "A"}}, WithCacheFile(cacheFile))

	first, err := o.Update(context.Background())
	require.NoError(t, err)
	require.True(t, first.Changed())

	gen := store.Load().Generation()

	require.NoError(t, os.Remove(cacheFile))

	second, err := o.Update(context.Background())
	require.NoError(t, err)
	assert.False(t, second.Changed())
	assert.Same(t, first.Current, store.Load())
	assert.Equal(t, gen, store.Load().Generation())

	_, err = os.Stat(cacheFile)
	assert.True(t, os.IsNotExist(err), "an unchanged catalog is not saved again")

	diff, err := second.Diff(catalog.DefaultDiffOptions())
	require.NoError(t, err)
	assert.False(t, diff.HasDifferences)
}

// ---------------------------------------------------------------------------
// Source cache
// ---------------------------------------------------------------------------

func TestUpdate_SourceCacheWrittenAfterMerge(t *testing.T) {
	dir := t.TempDir()

	f := &stubFetcher{content: map[string]string{"A": listA}}
	o := New(catalog.NewStore(nil), f, []source.Descriptor{{Name: "A"}, {Name: "B"}},
		WithSourceCacheDir(dir))

	res, err := o.Update(context.Background())
	require.NoError(t, err)

	assert.Equal(t, source.CachePath(dir, "A"), res.Outcomes[0].CachePath)
	assert.Empty(t, res.Outcomes[1].CachePath)

	cached, err := os.ReadFile(source.CachePath(dir, "A"))
	require.NoError(t, err)
	assert.Equal(t, listA, string(cached))

	_, err = os.Stat(source.CachePath(dir, "B"))
	assert.True(t, os.IsNotExist(err), "failed fetch must not touch the cache")
}

func TestUpdate_RejectedSourceKeepsLastGoodCache(t *testing.T) {
	dir := t.TempDir()
	store := catalog.NewStore(nil)
	merger := merge.New(merge.WithEngineVersion(semver.MustParse("3.4.0")), merge.WithCacheDir(dir))
	ds := []source.Descriptor{{Name: "A"}}

	good := &stubFetcher{content: map[string]string{"A": listA}}
	_, err := New(store, good, ds, WithMerger(merger), WithSourceCacheDir(dir)).Update(context.Background())
	require.NoError(t, err)

	// Parses as a download but targets a newer engine.
	future := &stubFetcher{content: map[string]string{"A": "#@gui_version >=9.0.0\n" + listB}}

	res, err := New(store, future, ds, WithMerger(merger), WithSourceCacheDir(dir)).Update(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Report.FailedSources(), 1)
	assert.Empty(t, res.Outcomes[0].CachePath)

	cached, err := os.ReadFile(source.CachePath(dir, "A"))
	require.NoError(t, err)
	assert.Equal(t, listA, string(cached))

	d, ok := store.Load().Lookup("x/y")
	require.True(t, ok)
	assert.Equal(t, "fx_y_a", d.Command)
}

func TestUpdate_SourceCacheWriteFailureIsReported(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	store := catalog.NewStore(nil)
	f := &stubFetcher{content: map[string]string{"A": listA}}

	res, err := New(store, f, []source.Descriptor{{Name: "A"}}, WithSourceCacheDir(blocker)).Update(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Report, 1)
	assert.ErrorIs(t, res.Report[0], source.ErrWriteFailed)
	assert.False(t, res.Report[0].SourceFailed)
	assert.True(t, res.Changed(), "definitions are published even when the cache copy fails")
}

func TestUpdate_CancelledPublishesNothing(t *testing.T) {
	store := catalog.NewStore(nil)
	before := store.Load()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := &stubFetcher{content: map[string]string{"A": listA}}
	_, err := New(store, f, []source.Descriptor{{Name: "A"}}).Update(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Same(t, before, store.Load())
}

func TestLocalFiles(t *testing.T) {
	got := LocalFiles([]source.Descriptor{
		{URL: "https://example.com/a.gmic"},
		{URL: "./local.gmic"},
		{URL: "file:///abs/other.gmic"},
	})

	assert.Equal(t, []string{"./local.gmic", "/abs/other.gmic"}, got)
}

// ---------------------------------------------------------------------------
// Debouncer
// ---------------------------------------------------------------------------

func TestDebouncer_CoalescesDistinctPaths(t *testing.T) {
	var (
		mu    sync.Mutex
		calls [][]string
	)

	d := NewDebouncer(50*time.Millisecond, func(paths []string) {
		mu.Lock()
		calls = append(calls, paths)
		mu.Unlock()
	})
	defer d.Stop()

	for _, p := range []string{"a.gmic", "b.gmic", "a.gmic"} {
		d.Trigger(p)
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()

	require.Len(t, calls, 1)
	assert.Equal(t, []string{"a.gmic", "b.gmic"}, calls[0])
}

func TestDebouncer_Stop(t *testing.T) {
	var calls atomic.Int32

	d := NewDebouncer(50*time.Millisecond, func([]string) { calls.Add(1) })
	d.Trigger("a.gmic")
	d.Stop()

	time.Sleep(150 * time.Millisecond)
	assert.Zero(t, calls.Load())
}

// ---------------------------------------------------------------------------
// Watch
// ---------------------------------------------------------------------------

func TestIsRelevant(t *testing.T) {
	tests := []struct {
		name string
		path string
		op   fsnotify.Op
		want bool
	}{
		{"write", "filters.gmic", fsnotify.Write, true},
		{"create", "filters.gmic", fsnotify.Create, true},
		{"rename", "filters.gmic", fsnotify.Rename, true},
		{"config file", ".gmicfx.yaml", fsnotify.Write, true},
		{"swap file", "filters.gmic.swp", fsnotify.Write, false},
		{"backup tilde", "filters.gmic~", fsnotify.Write, false},
		{"chmod only", "filters.gmic", fsnotify.Chmod, false},
		{"zero op", "filters.gmic", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRelevant(fsnotify.Event{Name: tt.path, Op: tt.op}))
		})
	}
}

func TestWatch_NoFiles(t *testing.T) {
	err := Watch(context.Background(), WatchOptions{Out: io.Discard}, func(context.Context) (*Result, error) {
		return nil, nil
	})
	require.Error(t, err)
}

func TestWatch_FileChangeTriggersUpdate(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "filters.gmic")
	other := filepath.Join(dir, "unrelated.txt")
	require.NoError(t, os.WriteFile(file, []byte(listA), 0o644))

	store := catalog.NewStore(nil)
	o := New(store, source.NewMultiFetcher(), []source.Descriptor{{Name: "local", URL: file}})

	var runs atomic.Int32

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := DefaultWatchOptions()
	opts.Files = []string{file}
	opts.Debounce = 50 * time.Millisecond
	opts.Out = io.Discard

	done := make(chan error, 1)

	go func() {
		done <- Watch(ctx, opts, func(ctx context.Context) (*Result, error) {
			runs.Add(1)
			return o.Update(ctx)
		})
	}()

	require.Eventually(t, func() bool { return runs.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(other, []byte("x"), 0o644))
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load(), "unwatched file must not trigger")

	require.NoError(t, os.WriteFile(file, []byte(listB), 0o644))

	require.Eventually(t, func() bool {
		_, ok := store.Load().Lookup("extra")
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not shut down in time")
	}
}
