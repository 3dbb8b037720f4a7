package param

import (
	"fmt"
	"slices"
	"strings"
)

// Set is the ordered list of values bound to one filter invocation.
// Values are positionally aligned with the filter's specs.
type Set struct {
	values []Value
}

// NewSet returns a Set holding a copy of values.
func NewSet(values ...Value) Set {
	return Set{values: slices.Clone(values)}
}

// Defaults returns the Set of each spec's default value.
func Defaults(specs []Spec) Set {
	values := make([]Value, len(specs))
	for i, s := range specs {
		values[i] = s.Default
	}

	return Set{values: values}
}

// Len returns the number of values.
func (s Set) Len() int { return len(s.values) }

// At returns the value at index i.
func (s Set) At(i int) Value { return s.values[i] }

// Values returns a copy of the values.
func (s Set) Values() []Value { return slices.Clone(s.values) }

// With returns a copy of s with the value at index i replaced.
func (s Set) With(i int, v Value) Set {
	values := slices.Clone(s.values)
	values[i] = v

	return Set{values: values}
}

// Equal reports whether both sets hold equal values in the same order.
func (s Set) Equal(o Set) bool {
	return slices.EqualFunc(s.values, o.values, Value.Equal)
}

// Format renders the set as comma-separated argument text. The set must
// be aligned 1:1 with specs; every value is checked before anything is
// rendered so a failure never yields partial text.
func (s Set) Format(specs []Spec) (string, error) {
	if len(s.values) != len(specs) {
		return "", fmt.Errorf("%w: %d value(s) for %d parameter(s)", ErrCountMismatch, len(s.values), len(specs))
	}

	parts := make([]string, len(specs))

	for i, spec := range specs {
		text, err := spec.Format(s.values[i])
		if err != nil {
			return "", fmt.Errorf("parameter %d: %w", i, err)
		}

		parts[i] = text
	}

	return strings.Join(parts, ","), nil
}

// ParseSet reads argument text produced by Format back into a Set.
func ParseSet(specs []Spec, args string) (Set, error) {
	fields, err := SplitArgs(args)
	if err != nil {
		return Set{}, err
	}

	want := 0
	for _, spec := range specs {
		want += spec.Arity()
	}

	if len(fields) != want {
		return Set{}, fmt.Errorf("%w: %d argument field(s) for %d expected", ErrCountMismatch, len(fields), want)
	}

	values := make([]Value, len(specs))
	pos := 0

	for i, spec := range specs {
		n := spec.Arity()

		v, err := spec.Parse(fields[pos : pos+n])
		if err != nil {
			return Set{}, fmt.Errorf("parameter %d: %w", i, err)
		}

		values[i] = v
		pos += n
	}

	return Set{values: values}, nil
}

// ParseValues reads one textual value per spec, as given on a command line
// (`--param 5 --param "a b"`). Color values use comma-separated components.
func ParseValues(specs []Spec, raw []string) (Set, error) {
	if len(raw) != len(specs) {
		return Set{}, fmt.Errorf("%w: %d value(s) for %d parameter(s)", ErrCountMismatch, len(raw), len(specs))
	}

	values := make([]Value, len(specs))

	for i, spec := range specs {
		text := raw[i]
		if spec.Kind.IsQuoted() && !strings.HasPrefix(text, `"`) {
			text = Quote(text)
		}

		fields, err := SplitArgs(text)
		if err != nil {
			return Set{}, fmt.Errorf("parameter %d: %w", i, err)
		}

		if len(fields) == 0 {
			fields = []string{""}
		}

		v, err := spec.Parse(fields)
		if err != nil {
			return Set{}, fmt.Errorf("parameter %d: %w", i, err)
		}

		values[i] = v
	}

	return Set{values: values}, nil
}
