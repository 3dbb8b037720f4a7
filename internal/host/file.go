package host

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg" // register decoder
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "golang.org/x/image/bmp"  // register decoder
	_ "golang.org/x/image/tiff" // register decoder

	"github.com/hupe1980/gmicfx/internal/catalog"
	"github.com/hupe1980/gmicfx/internal/layer"
)

// File is a host backed by image files. The inputs form the document,
// first file topmost and active; results are written as PNG to OutputDir.
type File struct {
	doc       *Memory
	outputDir string

	mu      sync.Mutex
	written []string
}

// OpenFiles decodes inputs (PNG, JPEG, BMP or TIFF) into a document.
func OpenFiles(inputs []string, outputDir string, progress func(float64, string)) (*File, error) {
	stack := make(layer.Stack, 0, len(inputs))

	for _, p := range inputs {
		l, err := decodeFile(p)
		if err != nil {
			return nil, err
		}

		stack = append(stack, l)
	}

	if outputDir == "" {
		outputDir = "."
	}

	doc := NewMemory(stack, 0)
	doc.OnProgress = progress

	return &File{doc: doc, outputDir: outputDir}, nil
}

func decodeFile(path string) (*layer.Layer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening input: %w", err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}

	l := FromImage(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), img)
	l.Meta["source"] = path
	l.Meta["format"] = format

	return l, nil
}

// InputLayers implements Collaborator.
func (f *File) InputLayers(mode layer.InputMode) (layer.Stack, error) {
	return f.doc.InputLayers(mode)
}

// ApplyOutputLayers implements Collaborator. The layers are applied to the
// document and then every layer of the result is saved; new images are
// saved with a "new_" prefix.
func (f *File) ApplyOutputLayers(out layer.Stack, mode layer.OutputMode) error {
	if err := f.doc.ApplyOutputLayers(out, mode); err != nil {
		return err
	}

	if err := os.MkdirAll(f.outputDir, 0o750); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	prefix := ""
	if mode == layer.OutputNewImage {
		prefix = "new_"
	}

	seen := map[string]int{}

	for i, l := range out {
		base := l.Name
		if base == "" {
			base = fmt.Sprintf("layer%d", i)
		}

		name := base
		if n := seen[base]; n > 0 {
			name = fmt.Sprintf("%s_%d", base, n)
		}

		seen[base]++

		path := filepath.Join(f.outputDir, prefix+name+".png")
		if err := writePNG(path, l); err != nil {
			return err
		}

		f.mu.Lock()
		f.written = append(f.written, path)
		f.mu.Unlock()
	}

	return nil
}

// ReportProgress implements Collaborator.
func (f *File) ReportProgress(fraction float64, text string) {
	f.doc.ReportProgress(fraction, text)
}

// Written returns the files saved so far.
func (f *File) Written() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.written...)
}

// Document returns the in-memory document behind the host.
func (f *File) Document() *Memory { return f.doc }

func writePNG(path string, l *layer.Layer) error {
	var buf bytes.Buffer

	if err := png.Encode(&buf, ToImage(l)); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}

	if err := catalog.WriteFileAtomic(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	return nil
}
