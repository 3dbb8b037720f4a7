package filter

import (
	"strings"
)

// Render writes definitions back in definition-list form. Parsing the
// output with the same origin yields equal definitions.
func Render(defs []*Definition) string {
	var (
		b    strings.Builder
		open []string
	)

	for _, d := range defs {
		common := 0
		for common < len(open) && common < len(d.Folders) && open[common] == d.Folders[common] {
			common++
		}

		for len(open) > common {
			b.WriteString(guiPrefix + " " + folderClose + "\n")
			open = open[:len(open)-1]
		}

		for _, f := range d.Folders[common:] {
			b.WriteString(guiPrefix + " " + f + "\n")
			open = append(open, f)
		}

		b.WriteString(guiPrefix + " " + d.Name + " : " + d.Command)

		if d.PreviewCommand != "" {
			b.WriteString(", " + d.PreviewCommand)
		}

		b.WriteByte('\n')

		for _, p := range d.Params {
			b.WriteString(guiPrefix + " : " + p.Name + " = " + p.Declaration() + "\n")
		}

		if len(d.Tags) > 0 {
			b.WriteString(guiPrefix + " : tags = " + strings.Join(d.Tags, ",") + "\n")
		}

		if d.Hidden {
			b.WriteString(guiPrefix + " : hidden = true\n")
		}
	}

	for range open {
		b.WriteString(guiPrefix + " " + folderClose + "\n")
	}

	return b.String()
}
