package filter

import (
	"regexp"
	"slices"
	"strings"

	"github.com/hupe1980/gmicfx/internal/param"
)

// PathSeparator joins folder and filter names into a path.
const PathSeparator = "/"

// Definition is a named, parameterized image-transform recipe.
// Definitions are immutable once parsed; catalogs replace them wholesale.
type Definition struct {
	// Path is the normalised hierarchical identifier, e.g. "blur/gaussian".
	Path string `json:"path"`

	// Name is the display name as declared.
	Name string `json:"name"`

	// Folders are the display names of the enclosing folders, outermost first.
	Folders []string `json:"folders,omitempty"`

	// Command is the command template invoked to apply the filter.
	Command string `json:"command"`

	// PreviewCommand is used for previews. Empty means Command.
	PreviewCommand string `json:"previewCommand,omitempty"`

	// Params are the declared parameters in positional order.
	Params []param.Spec `json:"params,omitempty"`

	// Tags label the definition for grouping and search.
	Tags []string `json:"tags,omitempty"`

	// Hidden definitions are kept in the catalog but not listed by default.
	Hidden bool `json:"hidden,omitempty"`

	// Origin names the source the definition was read from.
	Origin string `json:"origin"`
}

// Preview returns the command used to render previews.
func (d *Definition) Preview() string {
	if d.PreviewCommand != "" {
		return d.PreviewCommand
	}

	return d.Command
}

// HasTag reports whether the definition carries tag (case-insensitive).
func (d *Definition) HasTag(tag string) bool {
	return slices.ContainsFunc(d.Tags, func(t string) bool {
		return strings.EqualFold(t, tag)
	})
}

// Defaults returns the parameter set of declared defaults.
func (d *Definition) Defaults() param.Set {
	return param.Defaults(d.Params)
}

// Equal reports whether two definitions are identical.
func (d *Definition) Equal(o *Definition) bool {
	if d == nil || o == nil {
		return d == o
	}

	return Render([]*Definition{d}) == Render([]*Definition{o}) && d.Origin == o.Origin
}

var (
	spaceRun    = regexp.MustCompile(`\s+`)
	markupTag   = regexp.MustCompile(`<[^>]*>`)
	commandName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// NormalizeSegment turns a display name into a path segment: markup is
// stripped, the result lower-cased, and whitespace runs replaced with "_".
// Separators inside a name become "-".
func NormalizeSegment(name string) string {
	s := markupTag.ReplaceAllString(name, "")
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, PathSeparator, "-")

	return spaceRun.ReplaceAllString(s, "_")
}

// JoinPath builds a normalised path from folder and filter display names.
func JoinPath(folders []string, name string) string {
	segs := make([]string, 0, len(folders)+1)
	for _, f := range folders {
		segs = append(segs, NormalizeSegment(f))
	}

	return strings.Join(append(segs, NormalizeSegment(name)), PathSeparator)
}

// NormalizePath normalises each segment of a user-supplied path.
func NormalizePath(path string) string {
	parts := strings.Split(strings.Trim(path, PathSeparator), PathSeparator)
	for i, p := range parts {
		parts[i] = NormalizeSegment(p)
	}

	return strings.Join(parts, PathSeparator)
}

// IsCommandName reports whether s is a valid command identifier.
func IsCommandName(s string) bool {
	return commandName.MatchString(s)
}
