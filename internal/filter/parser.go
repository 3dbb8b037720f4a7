package filter

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/hupe1980/gmicfx/internal/param"
)

const (
	guiPrefix        = "#@gui"
	guiVersionPrefix = "#@gui_version"
	guiEnglishPrefix = "#@gui_en"
	folderClose      = "_"
)

var (
	// ErrNoDefinitions is returned when a source yields no usable definition.
	ErrNoDefinitions = errors.New("source contains no filter definitions")
	// ErrIncompatibleSource is returned when a source requires another engine version.
	ErrIncompatibleSource = errors.New("source is incompatible with engine version")
	// ErrMalformedEntry is the kind of every EntryError.
	ErrMalformedEntry = errors.New("malformed filter entry")
)

// EntryError reports one filter entry that could not be parsed.
type EntryError struct {
	Origin string
	Line   int
	Name   string
	Err    error
}

func (e *EntryError) Error() string {
	name := e.Name
	if name == "" {
		name = "<unnamed>"
	}

	return fmt.Sprintf("%s:%d: %s %q: %v", e.Origin, e.Line, ErrMalformedEntry, name, e.Err)
}

// Unwrap lets errors.Is match both ErrMalformedEntry and the cause.
func (e *EntryError) Unwrap() []error { return []error{ErrMalformedEntry, e.Err} }

// ParseOptions configures Parse.
type ParseOptions struct {
	// EngineVersion is checked against a source's #@gui_version constraint.
	// Nil skips the check.
	EngineVersion *semver.Version
}

// Result is the outcome of parsing one source.
type Result struct {
	// Definitions are the well-formed entries in source order.
	Definitions []*Definition
	// Problems are the entries that were skipped.
	Problems []*EntryError
	// Constraint is the source's declared engine version constraint, if any.
	Constraint string
}

// entry accumulates one filter while its parameter lines are read.
type entry struct {
	def    *Definition
	line   int
	failed error
}

// Parse reads a definition list. Malformed entries are collected in
// Result.Problems; an error is returned only for source-level failures
// (incompatible version or no definitions at all), in which case the
// returned Result still carries the problems found.
func Parse(origin string, data []byte, opts ParseOptions) (*Result, error) {
	res := &Result{}

	var (
		folders []string
		cur     *entry
		seen    = make(map[string]int)
		owners  = make(map[string]int)
	)

	flush := func() {
		if cur == nil {
			return
		}

		switch {
		case cur.failed != nil:
			res.Problems = append(res.Problems, &EntryError{Origin: origin, Line: cur.line, Name: cur.def.Name, Err: cur.failed})
		case seen[cur.def.Path] > 0:
			res.Problems = append(res.Problems, &EntryError{
				Origin: origin, Line: cur.line, Name: cur.def.Name,
				Err: fmt.Errorf("duplicate path %q (first declared on line %d)", cur.def.Path, seen[cur.def.Path]),
			})
		case owners[cur.def.Command] > 0:
			res.Problems = append(res.Problems, &EntryError{
				Origin: origin, Line: cur.line, Name: cur.def.Name,
				Err: fmt.Errorf("duplicate command %q (first used on line %d)", cur.def.Command, owners[cur.def.Command]),
			})
		default:
			seen[cur.def.Path] = cur.line
			owners[cur.def.Command] = cur.line
			res.Definitions = append(res.Definitions, cur.def)
		}

		cur = nil
	}

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lineNo := 0

	for sc.Scan() {
		lineNo++

		line := strings.TrimSpace(sc.Text())

		if rest, ok := cutKeyword(line, guiVersionPrefix); ok {
			res.Constraint = strings.TrimSpace(rest)
			continue
		}

		body, ok := cutKeyword(line, guiPrefix)
		if !ok {
			body, ok = cutKeyword(line, guiEnglishPrefix)
		}

		if !ok {
			continue
		}

		body = strings.TrimSpace(body)

		switch {
		case body == "":
			continue
		case strings.HasPrefix(body, ":"):
			if cur == nil {
				res.Problems = append(res.Problems, &EntryError{
					Origin: origin, Line: lineNo,
					Err: errors.New("parameter line outside of a filter"),
				})

				continue
			}

			if cur.failed == nil {
				cur.failed = applyAttribute(cur.def, strings.TrimSpace(body[1:]))
			}
		case body == folderClose:
			flush()

			if len(folders) > 0 {
				folders = folders[:len(folders)-1]
			}
		case strings.Contains(body, ":"):
			flush()

			cur = newEntry(origin, folders, body, lineNo)
		default:
			flush()

			folders = append(folders, body)
		}
	}

	flush()

	if err := sc.Err(); err != nil {
		return res, fmt.Errorf("reading %s: %w", origin, err)
	}

	if err := checkConstraint(res.Constraint, opts.EngineVersion); err != nil {
		return res, fmt.Errorf("%s: %w", origin, err)
	}

	if len(res.Definitions) == 0 {
		return res, fmt.Errorf("%s: %w", origin, ErrNoDefinitions)
	}

	return res, nil
}

// cutKeyword strips keyword from line when it is followed by whitespace or
// ends the line, so "#@gui" does not match "#@gui_fr".
func cutKeyword(line, keyword string) (string, bool) {
	rest, ok := strings.CutPrefix(line, keyword)
	if !ok {
		return "", false
	}

	if rest != "" && rest[0] != ' ' && rest[0] != '\t' {
		return "", false
	}

	return rest, true
}

func newEntry(origin string, folders []string, body string, line int) *entry {
	name, commands, _ := strings.Cut(body, ":")
	name = strings.TrimSpace(name)

	def := &Definition{
		Name:    name,
		Folders: append([]string(nil), folders...),
		Path:    JoinPath(folders, name),
		Origin:  origin,
	}

	e := &entry{def: def, line: line}

	if name == "" {
		e.failed = errors.New("filter name is empty")
		return e
	}

	main, preview, _ := strings.Cut(commands, ",")
	def.Command = strings.TrimSpace(main)

	if !IsCommandName(def.Command) {
		e.failed = fmt.Errorf("invalid command name %q", def.Command)
		return e
	}

	preview = strings.TrimSpace(preview)
	if i := strings.IndexByte(preview, '('); i >= 0 {
		preview = strings.TrimSpace(preview[:i])
	}

	if preview != "" && !IsCommandName(preview) {
		e.failed = fmt.Errorf("invalid preview command name %q", preview)
		return e
	}

	def.PreviewCommand = preview

	return e
}

// applyAttribute handles `Name = kind(args)`, `tags = a,b` and `hidden = bool`.
func applyAttribute(def *Definition, attr string) error {
	name, decl, ok := strings.Cut(attr, "=")
	if !ok {
		return fmt.Errorf("parameter %q has no declaration", attr)
	}

	name = strings.TrimSpace(name)
	decl = strings.TrimSpace(decl)

	switch strings.ToLower(name) {
	case "tags":
		for _, t := range strings.Split(decl, ",") {
			if t = strings.TrimSpace(t); t != "" {
				def.Tags = append(def.Tags, t)
			}
		}

		return nil
	case "hidden":
		switch strings.ToLower(decl) {
		case "1", "true":
			def.Hidden = true
		case "0", "false":
			def.Hidden = false
		default:
			return fmt.Errorf("hidden must be a boolean, got %q", decl)
		}

		return nil
	}

	open := strings.IndexByte(decl, '(')
	if open <= 0 || !strings.HasSuffix(decl, ")") {
		return fmt.Errorf("parameter %q: declaration %q is not of the form kind(args)", name, decl)
	}

	keyword := strings.TrimSpace(decl[:open])
	if param.IsDecoration(keyword) {
		return nil
	}

	spec, err := param.Declare(name, keyword, decl[open+1:len(decl)-1])
	if err != nil {
		return err
	}

	def.Params = append(def.Params, spec)

	return nil
}

func checkConstraint(constraint string, engine *semver.Version) error {
	if constraint == "" || engine == nil {
		return nil
	}

	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return fmt.Errorf("invalid #@gui_version constraint %q: %w", constraint, err)
	}

	if !c.Check(engine) {
		return fmt.Errorf("%w: requires %s, engine is %s", ErrIncompatibleSource, constraint, engine)
	}

	return nil
}
