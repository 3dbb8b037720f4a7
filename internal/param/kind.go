// Package param models filter parameters: the typed specifications a filter
// declares, the values bound to one invocation, and the table-driven text
// grammar used to render values into command arguments and read them back.
package param

import (
	"fmt"
	"strings"
)

// Kind identifies the type of a filter parameter.
type Kind int

const (
	// KindFloat is a real number within a [min, max] range.
	KindFloat Kind = iota
	// KindInt is an integer within a [min, max] range.
	KindInt
	// KindChoice selects one entry of a list; serialized as its index.
	KindChoice
	// KindColor is an RGB or RGBA color with 0..255 components.
	KindColor
	// KindFile is a file path, always quoted.
	KindFile
	// KindFolder is a folder path, always quoted.
	KindFolder
	// KindText is free text, always quoted.
	KindText
	// KindBool is a boolean; serialized as 0 or 1.
	KindBool
)

var kindNames = [...]string{
	KindFloat:  "float",
	KindInt:    "int",
	KindChoice: "choice",
	KindColor:  "color",
	KindFile:   "file",
	KindFolder: "folder",
	KindText:   "text",
	KindBool:   "bool",
}

// String returns the declaration keyword of the kind.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}

	return kindNames[k]
}

// ParseKind converts a declaration keyword into a Kind.
func ParseKind(s string) (Kind, error) {
	name := strings.ToLower(strings.TrimSpace(s))

	for k, n := range kindNames {
		if n == name {
			return Kind(k), nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}

	*k = parsed

	return nil
}

// IsQuoted reports whether values of this kind are rendered between quotes.
func (k Kind) IsQuoted() bool {
	return k == KindFile || k == KindFolder || k == KindText
}

// decorations are declaration keywords that render UI only and carry no
// value. They never become part of a parameter set.
var decorations = map[string]bool{
	"separator": true,
	"note":      true,
	"link":      true,
}

// IsDecoration reports whether keyword declares a value-less UI element.
func IsDecoration(keyword string) bool {
	return decorations[strings.ToLower(strings.TrimSpace(keyword))]
}
