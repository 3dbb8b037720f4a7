// Package update runs catalog update cycles: every configured source is
// fetched concurrently, the results are merged over the current catalog
// and the new snapshot is published and persisted.
package update

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/gmicfx/internal/catalog"
	"github.com/hupe1980/gmicfx/internal/logging"
	"github.com/hupe1980/gmicfx/internal/merge"
	"github.com/hupe1980/gmicfx/internal/source"
)

// DefaultMaxConcurrent bounds concurrent fetches when no limit is set.
const DefaultMaxConcurrent = 4

// Fetcher retrieves one source. *source.MultiFetcher implements it.
type Fetcher interface {
	Fetch(ctx context.Context, d source.Descriptor) source.Outcome
}

// Result describes one update cycle.
type Result struct {
	Previous *catalog.Snapshot
	Current  *catalog.Snapshot
	// Outcomes are indexed like the configured sources.
	Outcomes []source.Outcome
	Report   merge.Report
	Duration time.Duration
}

// Changed reports whether a new snapshot was published.
func (r *Result) Changed() bool { return r.Previous != r.Current }

// Diff compares the previous and current snapshots.
func (r *Result) Diff(opts catalog.DiffOptions) (*catalog.DiffResult, error) {
	return catalog.Diff(r.Previous, r.Current, opts)
}

// Orchestrator runs update cycles against a catalog store.
type Orchestrator struct {
	store         *catalog.Store
	fetcher       Fetcher
	merger        *merge.Merger
	sources       []source.Descriptor
	maxConcurrent int
	cacheFile     string
	sourceCache   string

	mu sync.Mutex
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMaxConcurrent bounds the number of concurrent fetches.
func WithMaxConcurrent(n int) Option {
	return func(o *Orchestrator) { o.maxConcurrent = n }
}

// WithCacheFile persists every published snapshot to path.
func WithCacheFile(path string) Option {
	return func(o *Orchestrator) { o.cacheFile = path }
}

// WithSourceCacheDir saves the content of every source that merged without
// a source-level failure under dir (see source.CachePath).
func WithSourceCacheDir(dir string) Option {
	return func(o *Orchestrator) { o.sourceCache = dir }
}

// WithMerger replaces the default merger.
func WithMerger(m *merge.Merger) Option {
	return func(o *Orchestrator) { o.merger = m }
}

// New creates an Orchestrator publishing into store.
func New(store *catalog.Store, fetcher Fetcher, sources []source.Descriptor, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:         store,
		fetcher:       fetcher,
		merger:        merge.New(),
		sources:       sources,
		maxConcurrent: DefaultMaxConcurrent,
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.maxConcurrent < 1 {
		o.maxConcurrent = 1
	}

	return o
}

// Sources returns the configured sources.
func (o *Orchestrator) Sources() []source.Descriptor { return o.sources }

// Update runs one cycle. Source failures are reported in Result.Report and
// never abort the cycle; an error is returned only when ctx is cancelled
// before the merge, in which case nothing is published. Concurrent calls
// are serialized.
func (o *Orchestrator) Update(ctx context.Context) (*Result, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	start := time.Now()
	logger := logging.FromContext(ctx)

	logger.Debug("fetching sources", "sources", len(o.sources), "max-concurrent", o.maxConcurrent)

	outcomes := make([]source.Outcome, len(o.sources))

	var g errgroup.Group

	g.SetLimit(o.maxConcurrent)

	for i, d := range o.sources {
		g.Go(func() error {
			outcomes[i] = o.fetcher.Fetch(ctx, d)
			return nil
		})
	}

	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("update cancelled: %w", err)
	}

	prev := o.store.Load()
	next, report := o.merger.Merge(ctx, prev, outcomes)

	res := &Result{
		Previous: prev,
		Current:  prev,
		Outcomes: outcomes,
		Report:   report,
	}

	if o.sourceCache != "" {
		res.Report = append(res.Report, o.saveSources(ctx, outcomes, report)...)
	}

	// An identical merge result is not published, so the generation only
	// moves when the catalog content does.
	if next != prev && !next.Equal(prev) {
		o.store.Swap(next)
		res.Current = o.store.Load()

		if o.cacheFile != "" {
			if err := catalog.Save(o.cacheFile, res.Current); err != nil {
				res.Report = append(res.Report, &merge.Problem{
					Source: "catalog",
					Err:    fmt.Errorf("%w: %w", source.ErrWriteFailed, err),
				})
			}
		}
	}

	res.Duration = time.Since(start)

	if !res.Changed() {
		logger.Debug("catalog unchanged", "generation", res.Current.Generation())
	}

	logger.Info("update finished",
		"generation", res.Current.Generation(),
		"definitions", res.Current.Len(),
		"problems", len(res.Report),
		"duration", res.Duration)

	return res, nil
}

// saveSources writes the cache file of every fetched source the merge
// accepted. Sources rejected as a whole keep their previous cache file.
func (o *Orchestrator) saveSources(ctx context.Context, outcomes []source.Outcome, report merge.Report) merge.Report {
	rejected := make(map[string]bool)
	for _, p := range report.FailedSources() {
		rejected[p.Source] = true
	}

	var problems merge.Report

	for i := range outcomes {
		out := &outcomes[i]
		if !out.OK() || rejected[out.Source.Name] {
			continue
		}

		if err := source.WriteCache(o.sourceCache, out); err != nil {
			logging.WithSource(logging.FromContext(ctx), out.Source.Name).
				Warn("source cache write failed", "error", err)

			problems = append(problems, &merge.Problem{Source: out.Source.Name, Err: err})
		}
	}

	return problems
}
