package docs_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/gmicfx/internal/catalog"
	"github.com/hupe1980/gmicfx/internal/docs"
	"github.com/hupe1980/gmicfx/internal/filter"
)

const sampleSource = `#@gui Blur
#@gui Gaussian : blur, blur_preview
#@gui : Sigma = float(2,0,20)
#@gui : tags = smooth
#@gui Box : box_blur
#@gui _
#@gui Colors
#@gui Negative : invert
#@gui Label : fx_label
#@gui : Text = text("hello world")
#@gui Secret : nop
#@gui : hidden = true
#@gui _
#@gui Sharpen : sharpen
`

func sampleSnapshot(t *testing.T) *catalog.Snapshot {
	t.Helper()

	res, err := filter.Parse("stdlib", []byte(sampleSource), filter.ParseOptions{})
	require.NoError(t, err)
	require.Empty(t, res.Problems)

	return catalog.New(res.Definitions)
}

func TestFromSnapshot(t *testing.T) {
	model := docs.FromSnapshot(sampleSnapshot(t), docs.Options{})

	require.Len(t, model.Sections, 3)
	assert.Equal(t, 5, model.Len())

	assert.Equal(t, "blur", model.Sections[0].Folder)
	assert.Equal(t, "colors", model.Sections[1].Folder)
	assert.Equal(t, "", model.Sections[2].Folder)

	gauss := model.Sections[0].Filters[1]
	assert.Equal(t, "blur/gaussian", gauss.Path)
	assert.Equal(t, "blur_preview", gauss.Preview)
	assert.Equal(t, "stdlib", gauss.Origin)
	assert.Equal(t, []string{"smooth"}, gauss.Tags)

	require.Len(t, gauss.Params, 1)
	assert.Equal(t, "Sigma", gauss.Params[0].Name)
	assert.Equal(t, "float", gauss.Params[0].Kind)
	assert.Equal(t, "2", gauss.Params[0].Default)
}

func TestFromSnapshot_Options(t *testing.T) {
	snap := sampleSnapshot(t)

	t.Run("prefix", func(t *testing.T) {
		model := docs.FromSnapshot(snap, docs.Options{Prefix: "colors"})
		require.Len(t, model.Sections, 1)
		assert.Equal(t, 2, model.Len())
	})

	t.Run("hidden", func(t *testing.T) {
		model := docs.FromSnapshot(snap, docs.Options{Prefix: "colors", IncludeHidden: true})
		assert.Equal(t, 3, model.Len())
	})

	t.Run("tag", func(t *testing.T) {
		model := docs.FromSnapshot(snap, docs.Options{Tag: "smooth"})
		assert.Equal(t, 1, model.Len())
	})

	t.Run("empty catalog", func(t *testing.T) {
		model := docs.FromSnapshot(catalog.Empty(), docs.Options{})
		assert.Empty(t, model.Sections)
		assert.Zero(t, model.Len())
	})
}

func TestExampleInvocation(t *testing.T) {
	model := docs.FromSnapshot(sampleSnapshot(t), docs.Options{})

	assert.Equal(t, "gmicfx run --path blur/gaussian --param 2",
		docs.ExampleInvocation(model.Sections[0].Filters[1]))
	assert.Equal(t, "gmicfx run --path sharpen",
		docs.ExampleInvocation(model.Sections[2].Filters[0]))

	label := model.Sections[1].Filters[0]
	require.Equal(t, "colors/label", label.Path)
	assert.Contains(t, docs.ExampleInvocation(label), `--param '"hello world"'`)
}

func TestFromSnapshot_RendersEveryFormat(t *testing.T) {
	model := docs.FromSnapshot(sampleSnapshot(t), docs.Options{})

	for _, format := range []string{"markdown", "html", "asciidoc"} {
		f, err := docs.NewFormatter(format)
		require.NoError(t, err)

		var buf bytes.Buffer
		require.NoError(t, f.Format(&buf, model), format)
		assert.Contains(t, buf.String(), "blur/gaussian", format)
		assert.NotContains(t, buf.String(), "colors/secret", format)
	}
}
