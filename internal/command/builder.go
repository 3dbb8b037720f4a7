package command

import (
	"fmt"

	"github.com/hupe1980/gmicfx/internal/catalog"
	"github.com/hupe1980/gmicfx/internal/filter"
	"github.com/hupe1980/gmicfx/internal/param"
)

// SnapshotSource supplies the catalog snapshot to resolve against.
// *catalog.Store satisfies it.
type SnapshotSource interface {
	Load() *catalog.Snapshot
}

// Builder composes commands from catalog definitions. It has no side
// effects; each call resolves against the snapshot current at call time.
type Builder struct {
	catalog SnapshotSource
}

// NewBuilder returns a Builder reading from src.
func NewBuilder(src SnapshotSource) *Builder {
	return &Builder{catalog: src}
}

// Build renders the command for the filter at path with the given values.
func (b *Builder) Build(path string, set param.Set, io IOMode) (Command, error) {
	def, err := b.lookup(path)
	if err != nil {
		return Command{}, err
	}

	return build(def, def.Command, set, io, false)
}

// BuildPreview is Build using the filter's preview command.
func (b *Builder) BuildPreview(path string, set param.Set, io IOMode) (Command, error) {
	def, err := b.lookup(path)
	if err != nil {
		return Command{}, err
	}

	return build(def, def.Preview(), set, io, true)
}

// Decode parses command text produced by Build and recovers the filter
// definition and the parameter values. The command name must belong to
// exactly one filter; use DecodePath for names shared by several.
func (b *Builder) Decode(text string) (Command, *filter.Definition, param.Set, error) {
	p, err := Parse(text)
	if err != nil {
		return Command{}, nil, param.Set{}, err
	}

	def, err := soleOwner(b.catalog.Load(), p.Name)
	if err != nil {
		return Command{}, nil, param.Set{}, err
	}

	if def == nil {
		return Command{}, nil, param.Set{}, fmt.Errorf("%w: no filter uses command %q", ErrUnknownFilter, p.Name)
	}

	return decode(def, p)
}

// DecodePath is Decode for the filter at path. The command name must be
// that filter's main or preview command.
func (b *Builder) DecodePath(path, text string) (Command, *filter.Definition, param.Set, error) {
	p, err := Parse(text)
	if err != nil {
		return Command{}, nil, param.Set{}, err
	}

	def, err := b.lookup(path)
	if err != nil {
		return Command{}, nil, param.Set{}, err
	}

	if p.Name != def.Command && p.Name != def.Preview() {
		return Command{}, nil, param.Set{}, fmt.Errorf("%w: command %q is not the command of %q", ErrCommandPathMismatch, p.Name, def.Path)
	}

	return decode(def, p)
}

func decode(def *filter.Definition, p Parsed) (Command, *filter.Definition, param.Set, error) {
	set, err := param.ParseSet(def.Params, p.Args)
	if err != nil {
		return Command{}, nil, param.Set{}, fmt.Errorf("%w: %s: %w", ErrCommandParse, def.Path, err)
	}

	cmd := Command{
		Name:    p.Name,
		Args:    p.Args,
		IO:      p.IO,
		Path:    def.Path,
		Preview: p.Name != def.Command,
	}

	return cmd, def, set, nil
}

func (b *Builder) lookup(path string) (*filter.Definition, error) {
	def, ok := b.catalog.Load().Lookup(path)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFilter, path)
	}

	return def, nil
}

func build(def *filter.Definition, name string, set param.Set, io IOMode, preview bool) (Command, error) {
	if set.Len() != len(def.Params) {
		return Command{}, fmt.Errorf("%w: %s declares %d parameter(s), got %d",
			ErrParameterCountMismatch, def.Path, len(def.Params), set.Len())
	}

	if !io.Input.Valid() || !io.Output.Valid() {
		return Command{}, fmt.Errorf("invalid layer modes %s/%s", io.Input, io.Output)
	}

	args, err := set.Format(def.Params)
	if err != nil {
		return Command{}, fmt.Errorf("%s: %w", def.Path, err)
	}

	return Command{
		Name:    name,
		Args:    args,
		IO:      io,
		Path:    def.Path,
		Preview: preview,
	}, nil
}
