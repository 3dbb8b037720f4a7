// Package docs generates a human-readable reference of the filter catalog.
// It supports Markdown, HTML, and AsciiDoc output formats, with optional
// example invocations.
package docs

import (
	"strings"

	"github.com/hupe1980/gmicfx/internal/catalog"
	"github.com/hupe1980/gmicfx/internal/filter"
	"github.com/hupe1980/gmicfx/internal/param"
)

// ParamInfo describes a single filter parameter.
type ParamInfo struct {
	// Name is the label shown to users (e.g., "Sigma").
	Name string
	// Kind is the parameter kind (float, int, choice, ...).
	Kind string
	// Declaration is the declaration text (e.g., "float(2,0,20)").
	Declaration string
	// Default is the default value in command-argument form.
	Default string
}

// FilterInfo describes one catalog entry.
type FilterInfo struct {
	Path    string
	Name    string
	Command string
	Preview string
	Origin  string
	Tags    []string
	Hidden  bool
	Params  []ParamInfo
}

// Section groups the filters of one folder.
type Section struct {
	// Folder is the folder path; empty for top-level filters.
	Folder  string
	Filters []FilterInfo
}

// DocModel is the structured data model for documentation generation.
type DocModel struct {
	// Title overrides the document title.
	Title string
	// Generation is the catalog generation the model was built from.
	Generation uint64
	// Sections are ordered by folder path.
	Sections []Section
	// IncludeExamples controls whether an example invocation is shown per filter.
	IncludeExamples bool
}

// Len returns the number of documented filters.
func (m *DocModel) Len() int {
	n := 0
	for _, s := range m.Sections {
		n += len(s.Filters)
	}

	return n
}

// Options selects the filters that are documented.
type Options struct {
	// Prefix restricts the model to filters under a folder path.
	Prefix string
	// Tag restricts the model to filters carrying a tag.
	Tag string
	// IncludeHidden documents hidden filters too.
	IncludeHidden bool
}

// FromSnapshot extracts a DocModel from a catalog snapshot.
func FromSnapshot(snap *catalog.Snapshot, opts Options) *DocModel {
	model := &DocModel{Generation: snap.Generation()}

	defs := snap.Definitions()
	if opts.Prefix != "" {
		defs = snap.Under(opts.Prefix)
	}

	// Definitions are sorted by path, so filters of one folder are adjacent.
	for _, d := range defs {
		if d.Hidden && !opts.IncludeHidden {
			continue
		}

		if opts.Tag != "" && !d.HasTag(opts.Tag) {
			continue
		}

		folder := folderOf(d)

		if n := len(model.Sections); n == 0 || model.Sections[n-1].Folder != folder {
			model.Sections = append(model.Sections, Section{Folder: folder})
		}

		s := &model.Sections[len(model.Sections)-1]
		s.Filters = append(s.Filters, filterInfo(d))
	}

	return model
}

func folderOf(d *filter.Definition) string {
	i := strings.LastIndex(d.Path, filter.PathSeparator)
	if i < 0 {
		return ""
	}

	return d.Path[:i]
}

func filterInfo(d *filter.Definition) FilterInfo {
	fi := FilterInfo{
		Path:    d.Path,
		Name:    d.Name,
		Command: d.Command,
		Preview: d.PreviewCommand,
		Origin:  d.Origin,
		Tags:    d.Tags,
		Hidden:  d.Hidden,
	}

	for _, p := range d.Params {
		fi.Params = append(fi.Params, paramInfo(p))
	}

	return fi
}

func paramInfo(p param.Spec) ParamInfo {
	def, err := p.Format(p.Default)
	if err != nil {
		def = ""
	}

	return ParamInfo{
		Name:        p.Name,
		Kind:        p.Kind.String(),
		Declaration: p.Declaration(),
		Default:     def,
	}
}

// ExampleInvocation returns a command line that runs f with its defaults.
func ExampleInvocation(f FilterInfo) string {
	var b strings.Builder

	b.WriteString("gmicfx run --path ")
	b.WriteString(f.Path)

	for _, p := range f.Params {
		b.WriteString(" --param ")
		b.WriteString(shellQuote(p.Default))
	}

	return b.String()
}

func shellQuote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\"'$\\;&|<>()*?") {
		return s
	}

	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
