package param

import (
	"fmt"
	"strings"
)

// Spec declares one filter parameter.
type Spec struct {
	// Name is the label shown to users.
	Name string `json:"name"`

	// Kind selects the value type and its text grammar.
	Kind Kind `json:"kind"`

	// Default is the value used when the caller supplies none.
	Default Value `json:"default"`

	// Min and Max bound numeric kinds. Ignored elsewhere.
	Min float64 `json:"min,omitempty"`
	Max float64 `json:"max,omitempty"`

	// Choices lists the entries of a choice parameter.
	Choices []string `json:"choices,omitempty"`

	// Multiline marks a text parameter edited as a block.
	Multiline bool `json:"multiline,omitempty"`
}

// Declare builds a Spec from a declaration such as `float(2,0,20)`.
// keyword is the part before the parentheses, args the raw text inside them.
func Declare(name, keyword, args string) (Spec, error) {
	kind, err := ParseKind(keyword)
	if err != nil {
		return Spec{}, err
	}

	fields, err := SplitArgs(args)
	if err != nil {
		return Spec{}, fmt.Errorf("%w: %s %q: %w", ErrInvalidDeclaration, keyword, name, err)
	}

	spec := Spec{Name: strings.TrimSpace(name), Kind: kind}

	if err := codecs[kind].declare(&spec, fields); err != nil {
		return Spec{}, fmt.Errorf("%w: %s %q: %w", ErrInvalidDeclaration, keyword, name, err)
	}

	return spec, nil
}

// Check verifies that v may be bound to s.
func (s Spec) Check(v Value) error {
	if v.kind != s.Kind {
		return fmt.Errorf("%w: %q expects %s, got %s", ErrKindMismatch, s.Name, s.Kind, v.kind)
	}

	if err := codecs[s.Kind].check(s, v); err != nil {
		return fmt.Errorf("%w: %q: %w", ErrInvalidValue, s.Name, err)
	}

	return nil
}

// Arity returns how many comma-separated argument fields a value of s spans.
func (s Spec) Arity() int {
	return codecs[s.Kind].arity(s)
}

// Format renders v according to s's grammar after checking it.
func (s Spec) Format(v Value) (string, error) {
	if err := s.Check(v); err != nil {
		return "", err
	}

	return codecs[s.Kind].format(v), nil
}

// Parse reads a value for s from its argument fields.
func (s Spec) Parse(fields []string) (Value, error) {
	if len(fields) != s.Arity() {
		return Value{}, fmt.Errorf("%w: %q expects %d field(s), got %d", ErrSyntax, s.Name, s.Arity(), len(fields))
	}

	v, err := codecs[s.Kind].parse(s, fields)
	if err != nil {
		return Value{}, fmt.Errorf("%w: %q: %w", ErrInvalidValue, s.Name, err)
	}

	if err := s.Check(v); err != nil {
		return Value{}, err
	}

	return v, nil
}

// Declaration renders s back into `keyword(args)` form, the inverse of Declare.
func (s Spec) Declaration() string {
	c := codecs[s.Kind]

	var args []string

	switch s.Kind {
	case KindFloat, KindInt:
		args = append(args, c.format(s.Default))
		if s.Min < s.Max {
			args = append(args, c.format(Float(s.Min)), c.format(Float(s.Max)))
		}
	case KindChoice:
		args = append(args, c.format(s.Default))
		for _, choice := range s.Choices {
			args = append(args, Quote(choice))
		}
	case KindText:
		if s.Multiline {
			args = append(args, "1")
		}

		args = append(args, c.format(s.Default))
	default:
		args = append(args, c.format(s.Default))
	}

	return fmt.Sprintf("%s(%s)", s.Kind, strings.Join(args, ","))
}
