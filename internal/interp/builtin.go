package interp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/hupe1980/gmicfx/internal/command"
	"github.com/hupe1980/gmicfx/internal/filter"
	"github.com/hupe1980/gmicfx/internal/layer"
	"github.com/hupe1980/gmicfx/internal/logging"
	"github.com/hupe1980/gmicfx/internal/param"
)

// ErrUnknownCommand is returned for a name that is neither builtin nor defined.
var ErrUnknownCommand = errors.New("unknown command")

const maxExpansionDepth = 16

// step is one builtin invocation after macro expansion.
type step struct {
	name string
	args []string
}

// run is the state of one Run call.
type run struct {
	ctx     context.Context
	st      *Status
	stack   layer.Stack
	message string

	index, total int
}

// report publishes progress of the current step, scaled to the whole run.
func (r *run) report(fraction float64, text string) {
	r.st.SetProgress((float64(r.index)+fraction)/float64(r.total), text)
}

type builtinFunc func(r *run, args []string) error

// Builtin is the reference interpreter. Commands may be chained with ';'.
// Macros registered with Define expand $1..$9 to their arguments and $*
// to the full argument text.
type Builtin struct {
	builtins map[string]builtinFunc
	macros   map[string]string
}

// NewBuiltin returns an interpreter with the standard command set.
func NewBuiltin() *Builtin {
	return &Builtin{
		builtins: map[string]builtinFunc{
			"blur":     blur,
			"channels": channels,
			"fail":     fail,
			"fill":     fill,
			"invert":   invert,
			"message":  message,
			"name":     rename,
			"nop":      func(*run, []string) error { return nil },
			"resize":   resize,
			"rm":       remove,
			"sleep":    sleep,
		},
		macros: map[string]string{},
	}
}

// Define registers a macro. Defining a builtin's name shadows the builtin.
func (b *Builtin) Define(name, body string) error {
	if !filter.IsCommandName(name) {
		return fmt.Errorf("invalid macro name %q", name)
	}

	b.macros[name] = body

	return nil
}

// Commands returns the builtin and macro names, sorted.
func (b *Builtin) Commands() []string {
	names := slices.Collect(maps.Keys(b.builtins))
	for n := range b.macros {
		if _, ok := b.builtins[n]; !ok {
			names = append(names, n)
		}
	}

	slices.Sort(names)

	return names
}

// Run implements Interpreter.
func (b *Builtin) Run(ctx context.Context, text string, in layer.Stack, st *Status) (*Result, error) {
	steps, err := b.expand(text, 0)
	if err != nil {
		return nil, err
	}

	r := &run{ctx: ctx, st: st, stack: in, total: max(len(steps), 1)}
	logger := logging.FromContext(ctx)

	for i, s := range steps {
		r.index = i

		if err := st.Checkpoint(ctx); err != nil {
			return nil, err
		}

		logger.Debug("interpreting", slog.String("command", s.name), slog.Int("args", len(s.args)))

		if err := b.builtins[s.name](r, s.args); err != nil {
			return nil, fmt.Errorf("%s: %w", s.name, err)
		}
	}

	st.SetProgress(1, "")

	return &Result{Layers: r.stack, Message: r.message}, nil
}

func (b *Builtin) expand(text string, depth int) ([]step, error) {
	if depth > maxExpansionDepth {
		return nil, fmt.Errorf("macro expansion deeper than %d levels", maxExpansionDepth)
	}

	var steps []step

	for _, seg := range splitPipeline(text) {
		if strings.TrimSpace(seg) == "" {
			continue
		}

		p, err := command.Parse(seg)
		if err != nil {
			return nil, err
		}

		args, err := param.SplitArgs(p.Args)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p.Name, err)
		}

		if body, ok := b.macros[p.Name]; ok {
			sub, err := b.expand(substitute(body, p.Args, args), depth+1)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", p.Name, err)
			}

			steps = append(steps, sub...)

			continue
		}

		if _, ok := b.builtins[p.Name]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, p.Name)
		}

		steps = append(steps, step{name: p.Name, args: args})
	}

	return steps, nil
}

// splitPipeline splits on ';' and newlines outside double quotes.
func splitPipeline(text string) []string {
	var (
		out     []string
		start   int
		inQuote bool
	)

	for i := 0; i < len(text); i++ {
		switch c := text[i]; {
		case c == '\\' && inQuote:
			i++
		case c == '"':
			inQuote = !inQuote
		case (c == ';' || c == '\n') && !inQuote:
			out = append(out, text[start:i])
			start = i + 1
		}
	}

	return append(out, text[start:])
}

func substitute(body, all string, args []string) string {
	pairs := []string{"$*", all}
	for i := 9; i >= 1; i-- {
		v := ""
		if i <= len(args) {
			v = args[i-1]
		}

		pairs = append(pairs, "$"+strconv.Itoa(i), v)
	}

	return strings.NewReplacer(pairs...).Replace(body)
}

// ---------------------------------------------------------------------------
// argument helpers
// ---------------------------------------------------------------------------

func floatArg(args []string, i int, def float64) (float64, error) {
	if i >= len(args) || args[i] == "" {
		return def, nil
	}

	v, err := strconv.ParseFloat(args[i], 64)
	if err != nil {
		return 0, fmt.Errorf("argument %d: %q is not a number", i+1, args[i])
	}

	return v, nil
}

func intArg(args []string, i int, def int) (int, error) {
	v, err := floatArg(args, i, float64(def))
	return int(v), err
}

func textArg(args []string) (string, error) {
	parts := make([]string, len(args))

	for i, a := range args {
		if strings.HasPrefix(a, `"`) {
			s, err := param.Unquote(a)
			if err != nil {
				return "", err
			}

			a = s
		}

		parts[i] = a
	}

	return strings.Join(parts, ","), nil
}
