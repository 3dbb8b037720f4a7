package command

import (
	"fmt"
	"strings"

	"github.com/hupe1980/gmicfx/internal/catalog"
	"github.com/hupe1980/gmicfx/internal/filter"
	"github.com/hupe1980/gmicfx/internal/param"
)

// Request is a headless invocation: a filter path, a command text, or both.
type Request struct {
	// Path selects a catalog filter.
	Path string
	// Command is explicit command text, with or without mode assignments.
	Command string
	// Params are textual parameter values, one per declared parameter.
	// When set they take precedence over arguments inside Command.
	Params []string
	// IO is used unless Command carries its own mode assignments.
	IO IOMode
}

// Invocation is a resolved headless request.
type Invocation struct {
	Command    Command
	Definition *filter.Definition // nil for custom commands
	Params     param.Set
}

// Resolve turns a headless request into a command.
//
// With only a path, the filter's defaults (or Params) are used. With a path
// and a command, the command must be the filter's main or preview command.
// With only a command, the filter is derived from it; a name shared by
// several filters is ambiguous. A command unknown to the catalog runs
// verbatim as a custom command, unless a path was also given.
func (b *Builder) Resolve(req Request) (*Invocation, error) {
	if req.Path == "" && req.Command == "" {
		return nil, ErrMissingFilterSpecifier
	}

	if req.Command == "" {
		def, err := b.lookup(req.Path)
		if err != nil {
			return nil, err
		}

		return b.invoke(def, "", req.Params, req.IO)
	}

	p, err := Parse(req.Command)
	if err != nil {
		return nil, err
	}

	io := req.IO
	if p.HasInput {
		io.Input = p.IO.Input
	}

	if p.HasOutput {
		io.Output = p.IO.Output
	}

	snap := b.catalog.Load()

	var def *filter.Definition

	if req.Path != "" {
		var ok bool
		if def, ok = snap.Lookup(req.Path); !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownFilter, req.Path)
		}

		if p.Name != def.Command && p.Name != def.Preview() {
			if owner, known := snap.LookupCommand(p.Name); known {
				return nil, fmt.Errorf("%w: command %q belongs to %q, not %q", ErrCommandPathMismatch, p.Name, owner.Path, def.Path)
			}

			return nil, fmt.Errorf("%w: command %q is not the command of %q", ErrCommandPathMismatch, p.Name, def.Path)
		}
	} else {
		if def, err = soleOwner(snap, p.Name); err != nil {
			return nil, err
		}

		if def == nil {
			return &Invocation{Command: Command{Name: p.Name, Args: p.Args, IO: io}}, nil
		}
	}

	inv, err := b.invoke(def, p.Args, req.Params, io)
	if err != nil {
		return nil, err
	}

	if p.Name != def.Command {
		inv.Command.Name = p.Name
		inv.Command.Preview = true
	}

	return inv, nil
}

// soleOwner returns the one filter using name, nil if none does, or
// ErrAmbiguousCommand if several do.
func soleOwner(snap *catalog.Snapshot, name string) (*filter.Definition, error) {
	owners := snap.CommandOwners(name)

	switch len(owners) {
	case 0:
		return nil, nil
	case 1:
		return owners[0], nil
	}

	paths := make([]string, len(owners))
	for i, d := range owners {
		paths[i] = d.Path
	}

	return nil, fmt.Errorf("%w: %q is used by %s; give a path", ErrAmbiguousCommand, name, strings.Join(paths, ", "))
}

// invoke binds values to def: explicit raw values first, then command
// arguments, then declared defaults.
func (b *Builder) invoke(def *filter.Definition, args string, raw []string, io IOMode) (*Invocation, error) {
	var (
		set param.Set
		err error
	)

	switch {
	case len(raw) > 0:
		set, err = param.ParseValues(def.Params, raw)
	case args != "":
		set, err = param.ParseSet(def.Params, args)
	default:
		set = def.Defaults()
	}

	if err != nil {
		if len(raw) > 0 && len(raw) != len(def.Params) {
			return nil, fmt.Errorf("%w: %s declares %d parameter(s), got %d",
				ErrParameterCountMismatch, def.Path, len(def.Params), len(raw))
		}

		return nil, fmt.Errorf("%w: %s: %w", ErrCommandParse, def.Path, err)
	}

	cmd, err := build(def, def.Command, set, io, false)
	if err != nil {
		return nil, err
	}

	return &Invocation{Command: cmd, Definition: def, Params: set}, nil
}
