package catalog

import (
	"fmt"
	"io"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// DiffResult describes how two snapshots differ.
type DiffResult struct {
	Unified        string
	HasDifferences bool
	Added          []string
	Removed        []string
	Changed        []string
}

// DiffOptions configures Diff.
type DiffOptions struct {
	OldLabel string
	NewLabel string
	Context  int
}

// DefaultDiffOptions returns sensible default diff options.
func DefaultDiffOptions() DiffOptions {
	return DiffOptions{
		OldLabel: "cached",
		NewLabel: "updated",
		Context:  2,
	}
}

// Diff compares two snapshots path by path and renders a unified diff of
// their definition listings.
func Diff(oldSnap, newSnap *Snapshot, opts DiffOptions) (*DiffResult, error) {
	res := &DiffResult{}

	for _, p := range newSnap.paths {
		prev, ok := oldSnap.byPath[p]

		switch {
		case !ok:
			res.Added = append(res.Added, p)
		case !prev.Equal(newSnap.byPath[p]):
			res.Changed = append(res.Changed, p)
		}
	}

	for _, p := range oldSnap.paths {
		if _, ok := newSnap.byPath[p]; !ok {
			res.Removed = append(res.Removed, p)
		}
	}

	unified, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        splitLines(listing(oldSnap)),
		B:        splitLines(listing(newSnap)),
		FromFile: opts.OldLabel,
		ToFile:   opts.NewLabel,
		Context:  opts.Context,
	})
	if err != nil {
		return nil, fmt.Errorf("computing catalog diff: %w", err)
	}

	res.Unified = unified
	res.HasDifferences = unified != ""

	return res, nil
}

// Summary returns a one-line count of added, removed and changed paths.
func (r *DiffResult) Summary() string {
	return fmt.Sprintf("%d added, %d removed, %d changed", len(r.Added), len(r.Removed), len(r.Changed))
}

// WriteDiff writes a formatted diff to the given writer with optional ANSI colors.
func WriteDiff(w io.Writer, result *DiffResult, color bool) {
	if !result.HasDifferences {
		_, _ = fmt.Fprintln(w, "No differences found.")
		return
	}

	for _, line := range strings.Split(strings.TrimSuffix(result.Unified, "\n"), "\n") {
		if color {
			writeColorLine(w, line)
		} else {
			_, _ = fmt.Fprintln(w, line)
		}
	}
}

func writeColorLine(w io.Writer, line string) {
	const (
		red   = "\033[31m"
		green = "\033[32m"
		cyan  = "\033[36m"
		bold  = "\033[1m"
		reset = "\033[0m"
	)

	switch {
	case strings.HasPrefix(line, "---"), strings.HasPrefix(line, "+++"):
		_, _ = fmt.Fprintf(w, "%s%s%s\n", bold, line, reset)
	case strings.HasPrefix(line, "@@"):
		_, _ = fmt.Fprintf(w, "%s%s%s\n", cyan, line, reset)
	case strings.HasPrefix(line, "-"):
		_, _ = fmt.Fprintf(w, "%s%s%s\n", red, line, reset)
	case strings.HasPrefix(line, "+"):
		_, _ = fmt.Fprintf(w, "%s%s%s\n", green, line, reset)
	default:
		_, _ = fmt.Fprintln(w, line)
	}
}

// listing renders one block per definition, prefixed by its path and
// origin, so a diff hunk names the filter it touches.
func listing(s *Snapshot) string {
	var b strings.Builder

	for _, p := range s.paths {
		d := s.byPath[p]
		fmt.Fprintf(&b, "[%s] (%s)\n", p, d.Origin)
		fmt.Fprintf(&b, "  command: %s\n", d.Command)

		if d.PreviewCommand != "" {
			fmt.Fprintf(&b, "  preview: %s\n", d.PreviewCommand)
		}

		for _, ps := range d.Params {
			fmt.Fprintf(&b, "  param: %s = %s\n", ps.Name, ps.Declaration())
		}

		if len(d.Tags) > 0 {
			fmt.Fprintf(&b, "  tags: %s\n", strings.Join(d.Tags, ","))
		}

		if d.Hidden {
			b.WriteString("  hidden\n")
		}
	}

	return b.String()
}

// splitLines splits s into lines that keep their trailing newline, as
// difflib expects.
func splitLines(s string) []string {
	if s == "" {
		return []string{""}
	}

	return strings.SplitAfter(s, "\n")
}
