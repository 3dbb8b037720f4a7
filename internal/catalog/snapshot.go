// Package catalog holds the merged, queryable index of filter definitions.
//
// A [Snapshot] is immutable once built. Updates build a new snapshot off to
// the side and publish it through [Store.Swap], so readers always observe a
// complete catalog, old or new, and never a partially merged one.
package catalog

import (
	"slices"
	"strings"
	"sync/atomic"

	"github.com/hupe1980/gmicfx/internal/filter"
)

// Snapshot is an immutable mapping from filter path to definition.
type Snapshot struct {
	generation uint64
	byPath     map[string]*filter.Definition
	byCommand  map[string][]*filter.Definition
	byPreview  map[string][]*filter.Definition
	paths      []string
}

// Empty returns a snapshot with no definitions.
func Empty() *Snapshot {
	return New(nil)
}

// New builds a snapshot from defs. A later definition replaces an earlier
// one with the same path.
func New(defs []*filter.Definition) *Snapshot {
	s := &Snapshot{
		byPath:    make(map[string]*filter.Definition, len(defs)),
		byCommand: make(map[string][]*filter.Definition, len(defs)),
		byPreview: make(map[string][]*filter.Definition),
	}

	for _, d := range defs {
		s.byPath[d.Path] = d
	}

	s.paths = make([]string, 0, len(s.byPath))
	for p := range s.byPath {
		s.paths = append(s.paths, p)
	}

	slices.Sort(s.paths)

	// Owners are kept in path order.
	for _, p := range s.paths {
		d := s.byPath[p]
		s.byCommand[d.Command] = append(s.byCommand[d.Command], d)

		if pc := d.PreviewCommand; pc != "" && pc != d.Command {
			s.byPreview[pc] = append(s.byPreview[pc], d)
		}
	}

	return s
}

// Generation is the sequence number assigned when the snapshot was
// published. Unpublished snapshots report 0.
func (s *Snapshot) Generation() uint64 { return s.generation }

// Len returns the number of definitions.
func (s *Snapshot) Len() int { return len(s.paths) }

// Lookup returns the definition at path. The path is normalised first.
func (s *Snapshot) Lookup(path string) (*filter.Definition, bool) {
	d, ok := s.byPath[filter.NormalizePath(path)]
	return d, ok
}

// LookupCommand returns the definition whose command or preview command is
// name. When several filters share name, the lexically first path that uses
// it as its main command wins; see CommandOwners.
func (s *Snapshot) LookupCommand(name string) (*filter.Definition, bool) {
	owners := s.CommandOwners(name)
	if len(owners) == 0 {
		return nil, false
	}

	return owners[0], true
}

// CommandOwners returns the definitions using name as their main command,
// sorted by path. If there are none, it returns those using name as their
// preview command.
func (s *Snapshot) CommandOwners(name string) []*filter.Definition {
	if owners := s.byCommand[name]; len(owners) > 0 {
		return slices.Clone(owners)
	}

	return slices.Clone(s.byPreview[name])
}

// Paths returns all paths in sorted order.
func (s *Snapshot) Paths() []string { return slices.Clone(s.paths) }

// Definitions returns all definitions sorted by path.
func (s *Snapshot) Definitions() []*filter.Definition {
	return s.collect(func(*filter.Definition) bool { return true })
}

// Visible returns the definitions that are not hidden, sorted by path.
func (s *Snapshot) Visible() []*filter.Definition {
	return s.collect(func(d *filter.Definition) bool { return !d.Hidden })
}

// Under returns the definitions inside folder prefix, sorted by path.
func (s *Snapshot) Under(prefix string) []*filter.Definition {
	prefix = filter.NormalizePath(prefix)
	if prefix == "" {
		return s.Definitions()
	}

	return s.collect(func(d *filter.Definition) bool {
		return d.Path == prefix || strings.HasPrefix(d.Path, prefix+filter.PathSeparator)
	})
}

// Tagged returns the definitions carrying tag, sorted by path.
func (s *Snapshot) Tagged(tag string) []*filter.Definition {
	return s.collect(func(d *filter.Definition) bool { return d.HasTag(tag) })
}

// FromOrigin returns the definitions read from the named source.
func (s *Snapshot) FromOrigin(origin string) []*filter.Definition {
	return s.collect(func(d *filter.Definition) bool { return d.Origin == origin })
}

// Origins returns the distinct source names, sorted.
func (s *Snapshot) Origins() []string {
	seen := make(map[string]bool)

	var out []string

	for _, p := range s.paths {
		if o := s.byPath[p].Origin; !seen[o] {
			seen[o] = true
			out = append(out, o)
		}
	}

	slices.Sort(out)

	return out
}

// Equal reports whether both snapshots hold equal definitions.
func (s *Snapshot) Equal(o *Snapshot) bool {
	if !slices.Equal(s.paths, o.paths) {
		return false
	}

	for _, p := range s.paths {
		if !s.byPath[p].Equal(o.byPath[p]) {
			return false
		}
	}

	return true
}

func (s *Snapshot) collect(keep func(*filter.Definition) bool) []*filter.Definition {
	var out []*filter.Definition

	for _, p := range s.paths {
		if d := s.byPath[p]; keep(d) {
			out = append(out, d)
		}
	}

	return out
}

// Store publishes the current snapshot. Reads are lock-free.
type Store struct {
	current    atomic.Pointer[Snapshot]
	generation atomic.Uint64
}

// NewStore returns a store publishing initial, or an empty snapshot when
// initial is nil.
func NewStore(initial *Snapshot) *Store {
	st := &Store{}
	if initial == nil {
		initial = Empty()
	}

	st.Swap(initial)

	return st
}

// Load returns the current snapshot.
func (st *Store) Load() *Snapshot {
	return st.current.Load()
}

// Swap publishes next and returns the snapshot it replaced. next is
// stamped with the store's next generation number before publication.
// Publishing the snapshot that is already current is a no-op.
func (st *Store) Swap(next *Snapshot) *Snapshot {
	if cur := st.current.Load(); cur == next {
		return cur
	}

	published := *next
	published.generation = st.generation.Add(1)

	return st.current.Swap(&published)
}
