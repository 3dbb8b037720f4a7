package docs

import (
	"fmt"
	"html/template"
	"io"
	"strings"
	"text/tabwriter"
)

const defaultTitle = "Filter Reference"

// Formatter renders a DocModel to a writer.
type Formatter interface {
	Format(w io.Writer, model *DocModel) error
}

// NewFormatter returns a formatter for the given format name.
func NewFormatter(format string) (Formatter, error) {
	switch strings.ToLower(format) {
	case "markdown", "md":
		return &MarkdownFormatter{}, nil
	case "html":
		return &HTMLFormatter{}, nil
	case "asciidoc", "adoc":
		return &AsciiDocFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported docs format: %s", format)
	}
}

func titleOf(model *DocModel) string {
	if model.Title != "" {
		return model.Title
	}

	return defaultTitle
}

func sectionTitle(s Section) string {
	if s.Folder == "" {
		return "(top level)"
	}

	return s.Folder
}

func previewOf(f FilterInfo) string {
	if f.Preview == "" {
		return "-"
	}

	return f.Preview
}

// ---------------------------------------------------------------------------
// Markdown
// ---------------------------------------------------------------------------

// MarkdownFormatter renders documentation as Markdown.
type MarkdownFormatter struct{}

func (f *MarkdownFormatter) Format(w io.Writer, model *DocModel) error {
	fmt.Fprintf(w, "# %s\n\n", titleOf(model))
	fmt.Fprintf(w, "**Catalog generation:** `%d`  \n", model.Generation)
	fmt.Fprintf(w, "**Filters:** %d  \n\n", model.Len())

	for _, s := range model.Sections {
		fmt.Fprintf(w, "## %s\n\n", sectionTitle(s))

		tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)

		fmt.Fprintln(tw, "| Filter\t| Command\t| Preview\t| Source\t|")
		fmt.Fprintln(tw, "|--------\t|---------\t|---------\t|--------\t|")

		for _, fi := range s.Filters {
			fmt.Fprintf(tw, "| `%s`\t| `%s`\t| %s\t| %s\t|\n", fi.Path, fi.Command, previewOf(fi), fi.Origin)
		}

		if err := tw.Flush(); err != nil {
			return err
		}

		fmt.Fprintln(w)

		for _, fi := range s.Filters {
			writeMarkdownFilter(w, fi, model.IncludeExamples)
		}
	}

	return nil
}

func writeMarkdownFilter(w io.Writer, fi FilterInfo, examples bool) {
	if len(fi.Params) == 0 && len(fi.Tags) == 0 && !examples {
		return
	}

	fmt.Fprintf(w, "### %s\n\n", fi.Name)

	if len(fi.Tags) > 0 {
		fmt.Fprintf(w, "**Tags:** %s\n\n", strings.Join(fi.Tags, ", "))
	}

	if len(fi.Params) > 0 {
		fmt.Fprintln(w, "| Parameter | Kind | Declaration | Default |")
		fmt.Fprintln(w, "|-----------|------|-------------|---------|")

		for _, p := range fi.Params {
			fmt.Fprintf(w, "| %s | `%s` | `%s` | `%s` |\n", p.Name, p.Kind, p.Declaration, p.Default)
		}

		fmt.Fprintln(w)
	}

	if examples {
		fmt.Fprintf(w, "```sh\n%s\n```\n\n", ExampleInvocation(fi))
	}
}

// ---------------------------------------------------------------------------
// HTML
// ---------------------------------------------------------------------------

// HTMLFormatter renders documentation as a standalone HTML page.
type HTMLFormatter struct{}

var htmlTpl = template.Must(template.New("docs").Funcs(template.FuncMap{
	"join":    strings.Join,
	"example": ExampleInvocation,
	"section": sectionTitle,
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body{font-family:sans-serif;margin:2em;line-height:1.6}
table{border-collapse:collapse;width:100%;margin-bottom:1em}
th,td{border:1px solid #ddd;padding:8px;text-align:left}
th{background:#f5f5f5}
code{background:#f0f0f0;padding:2px 4px;border-radius:3px}
pre{background:#f5f5f5;padding:1em;border-radius:4px;overflow-x:auto}
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p><strong>Catalog generation:</strong> <code>{{.Generation}}</code></p>
<p><strong>Filters:</strong> {{.Len}}</p>
{{range .Sections}}
<h2>{{section .}}</h2>
{{range .Filters}}
<h3>{{.Name}}</h3>
<p><code>{{.Path}}</code> runs <code>{{.Command}}</code>{{if .Preview}} (preview <code>{{.Preview}}</code>){{end}} from <em>{{.Origin}}</em></p>
{{if .Tags}}<p><strong>Tags:</strong> {{join .Tags ", "}}</p>{{end}}
{{if .Params}}
<table>
<tr><th>Parameter</th><th>Kind</th><th>Declaration</th><th>Default</th></tr>
{{range .Params}}<tr><td>{{.Name}}</td><td><code>{{.Kind}}</code></td><td><code>{{.Declaration}}</code></td><td><code>{{.Default}}</code></td></tr>
{{end}}
</table>
{{end}}
{{if $.IncludeExamples}}<pre><code>{{example .}}</code></pre>{{end}}
{{end}}
{{end}}
</body>
</html>
`))

// htmlModel wraps DocModel with the resolved title for the HTML template.
type htmlModel struct {
	*DocModel
	Title string
}

func (f *HTMLFormatter) Format(w io.Writer, model *DocModel) error {
	return htmlTpl.Execute(w, htmlModel{DocModel: model, Title: titleOf(model)})
}

// ---------------------------------------------------------------------------
// AsciiDoc
// ---------------------------------------------------------------------------

// AsciiDocFormatter renders documentation as AsciiDoc.
type AsciiDocFormatter struct{}

func (f *AsciiDocFormatter) Format(w io.Writer, model *DocModel) error {
	fmt.Fprintf(w, "= %s\n\n", titleOf(model))
	fmt.Fprintf(w, "*Catalog generation:* `%d` +\n", model.Generation)
	fmt.Fprintf(w, "*Filters:* %d +\n\n", model.Len())

	for _, s := range model.Sections {
		fmt.Fprintf(w, "== %s\n\n", sectionTitle(s))

		for _, fi := range s.Filters {
			fmt.Fprintf(w, "=== %s\n\n", fi.Name)
			fmt.Fprintf(w, "`%s` runs `%s`, preview %s, from _%s_.\n\n", fi.Path, fi.Command, previewOf(fi), fi.Origin)

			if len(fi.Tags) > 0 {
				fmt.Fprintf(w, "*Tags:* %s\n\n", strings.Join(fi.Tags, ", "))
			}

			if len(fi.Params) > 0 {
				fmt.Fprintln(w, "[cols=\"1,1,2,1\", options=\"header\"]")
				fmt.Fprintln(w, "|===")
				fmt.Fprintln(w, "| Parameter | Kind | Declaration | Default")

				for _, p := range fi.Params {
					fmt.Fprintf(w, "\n| %s\n| `%s`\n| `%s`\n| `%s`\n", p.Name, p.Kind, p.Declaration, p.Default)
				}

				fmt.Fprintln(w, "|===")
				fmt.Fprintln(w)
			}

			if model.IncludeExamples {
				fmt.Fprintf(w, "[source,sh]\n----\n%s\n----\n\n", ExampleInvocation(fi))
			}
		}
	}

	return nil
}
