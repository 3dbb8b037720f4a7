// Package merge combines fetched filter definition sources into one
// catalog snapshot.
//
// Sources are applied in ascending priority, so for a path defined by more
// than one source the highest priority source wins. Sources with equal
// priority keep their configured order. The order in which fetches
// completed never matters.
package merge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/Masterminds/semver/v3"

	"github.com/hupe1980/gmicfx/internal/catalog"
	"github.com/hupe1980/gmicfx/internal/filter"
	"github.com/hupe1980/gmicfx/internal/logging"
	"github.com/hupe1980/gmicfx/internal/source"
)

// ErrAllSourcesFailed is reported when no source produced definitions and
// the previous catalog was kept.
var ErrAllSourcesFailed = errors.New("all sources failed")

// Problem is one entry of the merge report.
type Problem struct {
	Source string
	Err    error
	// SourceFailed is true when the whole source was rejected (fetch or
	// source-level parse failure) and false for a single rejected entry.
	SourceFailed bool
	// Retained counts the definitions kept for a failed source from its
	// cached copy or the previous catalog.
	Retained int
}

func (p *Problem) Error() string {
	if p.SourceFailed && p.Retained > 0 {
		return fmt.Sprintf("%v (kept %d cached definitions)", p.Err, p.Retained)
	}

	return p.Err.Error()
}

func (p *Problem) Unwrap() error { return p.Err }

// Report aggregates the problems of one merge.
type Report []*Problem

// FailedSources returns the problems that rejected a whole source.
func (r Report) FailedSources() Report {
	var out Report

	for _, p := range r {
		if p.SourceFailed {
			out = append(out, p)
		}
	}

	return out
}

// Err joins all problems, or returns nil for an empty report.
func (r Report) Err() error {
	if len(r) == 0 {
		return nil
	}

	errs := make([]error, len(r))
	for i, p := range r {
		errs[i] = p
	}

	return errors.Join(errs...)
}

// Merger merges fetch outcomes over a previous snapshot.
type Merger struct {
	engine   *semver.Version
	cacheDir string
}

// Option configures a Merger.
type Option func(*Merger)

// WithEngineVersion checks each source's #@gui_version constraint.
func WithEngineVersion(v *semver.Version) Option {
	return func(m *Merger) { m.engine = v }
}

// WithCacheDir lets failed sources fall back to their last fetched copy
// under dir (see source.CachePath).
func WithCacheDir(dir string) Option {
	return func(m *Merger) { m.cacheDir = dir }
}

// New creates a Merger.
func New(opts ...Option) *Merger {
	m := &Merger{}
	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Merge builds a new snapshot from outcomes. prev is returned unchanged
// when there are no outcomes or every source failed. Merge never modifies
// prev.
func (m *Merger) Merge(ctx context.Context, prev *catalog.Snapshot, outcomes []source.Outcome) (*catalog.Snapshot, Report) {
	if prev == nil {
		prev = catalog.Empty()
	}

	logger := logging.FromContext(ctx)

	ordered := slices.Clone(outcomes)
	slices.SortStableFunc(ordered, func(a, b source.Outcome) int {
		return a.Source.Priority - b.Source.Priority
	})

	var (
		report    Report
		merged    []*filter.Definition
		succeeded int
	)

	for _, o := range ordered {
		name := o.Source.Name

		defs, problems, err := m.parse(o)
		report = append(report, problems...)

		if err == nil {
			succeeded++
			merged = append(merged, defs...)

			continue
		}

		kept := m.fallback(prev, name)
		merged = append(merged, kept...)
		report = append(report, &Problem{Source: name, Err: err, SourceFailed: true, Retained: len(kept)})
	}

	if succeeded == 0 {
		if len(ordered) > 0 {
			logger.Warn("catalog update failed, keeping previous catalog",
				"sources", len(ordered), "definitions", prev.Len())
		}

		return prev, report
	}

	next := catalog.New(merged)

	logger.Info("catalog merged",
		"sources", len(ordered),
		"failed", len(report.FailedSources()),
		"problems", len(report),
		"definitions", next.Len())

	return next, report
}

// parse turns one outcome into definitions. A non-nil error rejects the
// whole source; entry problems are returned either way.
func (m *Merger) parse(o source.Outcome) ([]*filter.Definition, Report, error) {
	if !o.OK() {
		return nil, nil, o.Err
	}

	res, err := filter.Parse(o.Source.Name, o.Content, filter.ParseOptions{EngineVersion: m.engine})

	var report Report
	if res != nil {
		for _, p := range res.Problems {
			report = append(report, &Problem{Source: o.Source.Name, Err: p})
		}
	}

	if err != nil {
		return nil, report, fmt.Errorf("source %q: %w", o.Source.Name, err)
	}

	return res.Definitions, report, nil
}

// fallback returns the definitions a failed source keeps: its cached copy
// when one parses, otherwise what it contributed to prev.
func (m *Merger) fallback(prev *catalog.Snapshot, name string) []*filter.Definition {
	if m.cacheDir != "" {
		data, err := os.ReadFile(source.CachePath(m.cacheDir, name))
		if err == nil {
			res, err := filter.Parse(name, data, filter.ParseOptions{EngineVersion: m.engine})
			if err == nil {
				return res.Definitions
			}
		}
	}

	return prev.FromOrigin(name)
}
