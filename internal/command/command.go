// Package command turns filter selections into executable command text and
// reads command text back.
//
// Command text has the form
//
//	_input_layers=<n> _output_mode=<n> <name> <args>
//
// where <args> is the comma-separated rendering of a parameter set (see
// package param). The mode assignments are optional when parsing.
package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/hupe1980/gmicfx/internal/filter"
	"github.com/hupe1980/gmicfx/internal/layer"
)

var (
	// ErrUnknownFilter is returned when a path or command is not in the catalog.
	ErrUnknownFilter = errors.New("unknown filter")
	// ErrParameterCountMismatch is returned when a parameter set does not
	// match the filter's declared parameters one to one.
	ErrParameterCountMismatch = errors.New("parameter count mismatch")
	// ErrCommandParse is returned for malformed command text.
	ErrCommandParse = errors.New("command parse error")
	// ErrCommandPathMismatch is returned when an explicit path disagrees with
	// the path derived from an explicit command.
	ErrCommandPathMismatch = errors.New("command does not match filter path")
	// ErrAmbiguousCommand is returned when a command shared by several
	// filters is given without a path to pick one.
	ErrAmbiguousCommand = errors.New("command is used by several filters")
	// ErrMissingFilterSpecifier is returned when neither path nor command is given.
	ErrMissingFilterSpecifier = errors.New("missing filter specifier: give a filter path, a command, or both")
)

const (
	inputVar  = "_input_layers"
	outputVar = "_output_mode"
)

// IOMode pairs the input layer selection with the output application mode.
type IOMode struct {
	Input  layer.InputMode
	Output layer.OutputMode
}

// DefaultIOMode returns the active-layer, in-place mode.
func DefaultIOMode() IOMode {
	return IOMode{Input: layer.DefaultInputMode, Output: layer.DefaultOutputMode}
}

// Command is fully resolved command text plus what it was resolved from.
// A Command is immutable and maps to exactly one execution attempt.
type Command struct {
	// Name is the command invoked.
	Name string
	// Args is the serialized parameter text, possibly empty.
	Args string
	// IO holds the layer modes.
	IO IOMode
	// Path is the filter path, empty for custom commands.
	Path string
	// Preview marks commands built from a filter's preview command.
	Preview bool
}

// Custom reports whether the command was not resolved from the catalog.
func (c Command) Custom() bool { return c.Path == "" }

// Text renders the complete command text.
func (c Command) Text() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s=%d %s=%d %s", inputVar, int(c.IO.Input), outputVar, int(c.IO.Output), c.Name)

	if c.Args != "" {
		b.WriteByte(' ')
		b.WriteString(c.Args)
	}

	return b.String()
}

func (c Command) String() string { return c.Text() }

// Parsed is the result of reading command text without a catalog.
type Parsed struct {
	Name string
	Args string
	// IO holds the modes found in the text; fields not present keep the
	// defaults and are flagged in HasInput / HasOutput.
	IO        IOMode
	HasInput  bool
	HasOutput bool
}

// Parse reads command text. Leading `_input_layers=` and `_output_mode=`
// assignments are consumed; the next token is the command name and the
// remainder, trimmed, its arguments.
func Parse(text string) (Parsed, error) {
	p := Parsed{IO: DefaultIOMode()}
	rest := strings.TrimSpace(text)

	for {
		tok, tail := cutSpace(rest)
		name, value, isAssign := strings.Cut(tok, "=")

		if !isAssign || (name != inputVar && name != outputVar) {
			break
		}

		n, err := strconv.Atoi(value)
		if err != nil {
			return Parsed{}, fmt.Errorf("%w: %s value %q is not an integer", ErrCommandParse, name, value)
		}

		if name == inputVar {
			p.IO.Input, p.HasInput = layer.InputMode(n), true
			if !p.IO.Input.Valid() {
				return Parsed{}, fmt.Errorf("%w: input mode %d out of range", ErrCommandParse, n)
			}
		} else {
			p.IO.Output, p.HasOutput = layer.OutputMode(n), true
			if !p.IO.Output.Valid() {
				return Parsed{}, fmt.Errorf("%w: output mode %d out of range", ErrCommandParse, n)
			}
		}

		rest = strings.TrimSpace(tail)
	}

	if rest == "" {
		return Parsed{}, fmt.Errorf("%w: no command in %q", ErrCommandParse, text)
	}

	name, args := cutSpace(rest)
	if !filter.IsCommandName(name) {
		return Parsed{}, fmt.Errorf("%w: invalid command name %q", ErrCommandParse, name)
	}

	p.Name = name
	p.Args = strings.TrimSpace(args)

	return p, nil
}

// cutSpace splits s around its first whitespace run.
func cutSpace(s string) (head, tail string) {
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}

	return s[:i], strings.TrimLeftFunc(s[i:], unicode.IsSpace)
}
