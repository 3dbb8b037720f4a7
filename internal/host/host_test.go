package host

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/gmicfx/internal/layer"
)

func names(s layer.Stack) []string {
	out := make([]string, len(s))
	for i, l := range s {
		out[i] = l.Name
	}

	return out
}

func testDoc() *Memory {
	hidden := layer.New("hidden", 1, 1, 3)
	hidden.Meta["visible"] = "0"

	return NewMemory(layer.Stack{
		layer.New("top", 1, 1, 3),
		layer.New("mid", 1, 1, 3),
		hidden,
		layer.New("bottom", 1, 1, 3),
	}, 1)
}

func TestMemory_InputLayers(t *testing.T) {
	tests := []struct {
		mode layer.InputMode
		want []string
	}{
		{layer.InputNone, []string{}},
		{layer.InputActive, []string{"mid"}},
		{layer.InputAll, []string{"top", "mid", "hidden", "bottom"}},
		{layer.InputActiveAndBelow, []string{"mid", "hidden", "bottom"}},
		{layer.InputActiveAndAbove, []string{"top", "mid"}},
		{layer.InputAllVisible, []string{"top", "mid", "bottom"}},
		{layer.InputAllInvisible, []string{"hidden"}},
	}

	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			got, err := testDoc().InputLayers(tt.mode)
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(got))
		})
	}
}

func TestMemory_InputLayersAreCopies(t *testing.T) {
	doc := testDoc()

	in, err := doc.InputLayers(layer.InputActive)
	require.NoError(t, err)

	in[0].Set(0, 0, 0, 99)
	assert.InDelta(t, 0, doc.Layers()[1].At(0, 0, 0), 0)
}

func TestMemory_EmptyDocument(t *testing.T) {
	_, err := NewMemory(nil, 0).InputLayers(layer.InputActive)
	require.ErrorIs(t, err, ErrNoLayers)
}

func TestMemory_ApplyOutputLayers(t *testing.T) {
	out := func() layer.Stack { return layer.Stack{layer.New("r1", 1, 1, 3), layer.New("r2", 1, 1, 3)} }

	t.Run("in place replaces selection", func(t *testing.T) {
		doc := testDoc()
		_, err := doc.InputLayers(layer.InputActiveAndAbove)
		require.NoError(t, err)

		require.NoError(t, doc.ApplyOutputLayers(out(), layer.OutputInPlace))
		assert.Equal(t, []string{"r1", "r2", "hidden", "bottom"}, names(doc.Layers()))
		assert.Equal(t, 0, doc.Active())
	})

	t.Run("new layers keep active", func(t *testing.T) {
		doc := testDoc()
		require.NoError(t, doc.ApplyOutputLayers(out(), layer.OutputNewLayers))
		assert.Equal(t, []string{"top", "r1", "r2", "mid", "hidden", "bottom"}, names(doc.Layers()))
		assert.Equal(t, "mid", doc.Layers()[doc.Active()].Name)
	})

	t.Run("new active layers", func(t *testing.T) {
		doc := testDoc()
		require.NoError(t, doc.ApplyOutputLayers(out(), layer.OutputNewActiveLayers))
		assert.Equal(t, "r1", doc.Layers()[doc.Active()].Name)
	})

	t.Run("new image leaves document", func(t *testing.T) {
		doc := testDoc()
		require.NoError(t, doc.ApplyOutputLayers(out(), layer.OutputNewImage))
		assert.Len(t, doc.Layers(), 4)
		require.Len(t, doc.Images(), 1)
		assert.Equal(t, []string{"r1", "r2"}, names(doc.Images()[0]))
	})

	t.Run("unknown mode", func(t *testing.T) {
		require.Error(t, testDoc().ApplyOutputLayers(out(), layer.OutputMode(9)))
	})
}

func TestMemory_Progress(t *testing.T) {
	doc := testDoc()

	var texts []string
	doc.OnProgress = func(_ float64, text string) { texts = append(texts, text) }

	doc.ReportProgress(0.1, "a")
	doc.ReportProgress(0.5, "b")

	assert.Equal(t, []float64{0.1, 0.5}, doc.Progress())
	assert.Equal(t, []string{"a", "b"}, texts)
}

func TestConvert_RoundTrip(t *testing.T) {
	for _, channels := range []int{1, 3, 4} {
		l := layer.New("x", 3, 2, channels)
		for i := range l.Pix {
			l.Pix[i] = float32(i * 10)
		}

		back := FromImage("x", ToImage(l))
		assert.Equal(t, channels, back.Channels)
		assert.Equal(t, l.Pix, back.Pix)
	}
}

func TestFile_OpenAndApply(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "photo.png")

	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.SetNRGBA(1, 1, color.NRGBA{R: 200, G: 10, B: 20, A: 255})
	for _, p := range []image.Point{{0, 0}, {1, 0}, {0, 1}} {
		img.SetNRGBA(p.X, p.Y, color.NRGBA{A: 255})
	}

	f, err := os.Create(in)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	out := filepath.Join(dir, "out")

	h, err := New(KindFile, Options{Inputs: []string{in}, OutputDir: out})
	require.NoError(t, err)

	stack, err := h.InputLayers(layer.InputActive)
	require.NoError(t, err)
	require.Len(t, stack, 1)
	assert.Equal(t, "photo", stack[0].Name)
	assert.Equal(t, 3, stack[0].Channels)
	assert.InDelta(t, 200, stack[0].At(1, 1, 0), 0)

	require.NoError(t, h.ApplyOutputLayers(stack, layer.OutputInPlace))

	written := h.(*File).Written()
	require.Equal(t, []string{filepath.Join(out, "photo.png")}, written)

	_, err = os.Stat(written[0])
	require.NoError(t, err)
}

func TestFile_MissingInput(t *testing.T) {
	_, err := OpenFiles([]string{filepath.Join(t.TempDir(), "nope.png")}, "", nil)
	require.Error(t, err)
}

func TestNew(t *testing.T) {
	h, err := New(KindMemory, Options{})
	require.NoError(t, err)

	stack, err := h.InputLayers(layer.InputActive)
	require.NoError(t, err)
	require.Len(t, stack, 1)
	assert.Equal(t, 256, stack[0].Width)
	assert.Equal(t, 3, stack[0].Channels)

	_, err = New("gimp", Options{})
	require.Error(t, err)
}
