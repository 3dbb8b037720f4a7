package param

import (
	"fmt"
	"slices"
)

// Value is a typed parameter value. The zero Value is a float 0.
// Values are immutable; constructors copy any slice they receive.
type Value struct {
	kind  Kind
	num   float64
	str   string
	color []int
	flag  bool
}

// Float returns a KindFloat value.
func Float(v float64) Value { return Value{kind: KindFloat, num: v} }

// Int returns a KindInt value.
func Int(v int) Value { return Value{kind: KindInt, num: float64(v)} }

// Choice returns a KindChoice value selecting the entry at index.
func Choice(index int) Value { return Value{kind: KindChoice, num: float64(index)} }

// Color returns a KindColor value from 3 (RGB) or 4 (RGBA) components.
func Color(components ...int) Value {
	return Value{kind: KindColor, color: slices.Clone(components)}
}

// File returns a KindFile value.
func File(path string) Value { return Value{kind: KindFile, str: path} }

// Folder returns a KindFolder value.
func Folder(path string) Value { return Value{kind: KindFolder, str: path} }

// Text returns a KindText value.
func Text(s string) Value { return Value{kind: KindText, str: s} }

// Bool returns a KindBool value.
func Bool(b bool) Value { return Value{kind: KindBool, flag: b} }

// Kind returns the value's kind.
func (v Value) Kind() Kind { return v.kind }

// Float returns the numeric payload of a float value.
func (v Value) Float() float64 { return v.num }

// Int returns the numeric payload of an int or choice value.
func (v Value) Int() int { return int(v.num) }

// Components returns a copy of a color value's components.
func (v Value) Components() []int { return slices.Clone(v.color) }

// String returns the textual payload of a file, folder or text value.
func (v Value) String() string {
	switch v.kind {
	case KindFile, KindFolder, KindText:
		return v.str
	default:
		return fmt.Sprintf("%s(%s)", v.kind, formatPlain(v))
	}
}

// Bool returns the payload of a bool value.
func (v Value) Bool() bool { return v.flag }

// Equal reports whether two values have the same kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}

	switch v.kind {
	case KindFloat, KindInt, KindChoice:
		return v.num == o.num
	case KindColor:
		return slices.Equal(v.color, o.color)
	case KindBool:
		return v.flag == o.flag
	default:
		return v.str == o.str
	}
}

// MarshalText renders the value in command-argument grammar.
func (v Value) MarshalText() ([]byte, error) {
	c, ok := codecs[v.kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, v.kind)
	}

	return []byte(c.format(v)), nil
}

func formatPlain(v Value) string {
	c, ok := codecs[v.kind]
	if !ok {
		return "?"
	}

	return c.format(v)
}
