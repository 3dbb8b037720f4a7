package host

import (
	"fmt"
	"slices"
	"sync"

	"github.com/hupe1980/gmicfx/internal/layer"
)

// Memory is an in-memory document. Output applied with OutputNewImage is
// collected in Images instead of touching the document.
type Memory struct {
	mu       sync.Mutex
	layers   layer.Stack
	active   int
	selected []int
	images   []layer.Stack
	progress []float64

	// OnProgress, if set, receives every progress report.
	OnProgress func(fraction float64, text string)
}

// NewMemory returns a document holding stack with the layer at active selected.
func NewMemory(stack layer.Stack, active int) *Memory {
	return &Memory{layers: stack, active: active}
}

// InputLayers implements Collaborator.
func (m *Memory) InputLayers(mode layer.InputMode) (layer.Stack, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, err := selectIndices(m.layers, m.active, mode)
	if err != nil {
		return nil, err
	}

	m.selected = idx

	out := make(layer.Stack, len(idx))
	for i, j := range idx {
		out[i] = m.layers[j].Clone()
	}

	return out, nil
}

// ApplyOutputLayers implements Collaborator. In-place output replaces the
// layers handed out by the last InputLayers call, inserting the result at
// the position of the first of them.
func (m *Memory) ApplyOutputLayers(out layer.Stack, mode layer.OutputMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch mode {
	case layer.OutputInPlace:
		pos := m.active
		if len(m.selected) > 0 {
			pos = m.selected[0]
		}

		kept := make(layer.Stack, 0, len(m.layers))
		for i, l := range m.layers {
			if !slices.Contains(m.selected, i) {
				kept = append(kept, l)
			} else if i < pos {
				pos--
			}
		}

		pos = min(pos, len(kept))
		m.layers = slices.Insert(kept, pos, out...)
		m.active = min(pos, max(len(m.layers)-1, 0))
	case layer.OutputNewLayers, layer.OutputNewActiveLayers:
		pos := min(m.active, len(m.layers))
		m.layers = slices.Insert(m.layers, pos, out...)

		if mode == layer.OutputNewLayers {
			m.active += len(out)
		}
	case layer.OutputNewImage:
		m.images = append(m.images, out)
	default:
		return fmt.Errorf("unsupported output mode %s", mode)
	}

	m.selected = nil

	return nil
}

// ReportProgress implements Collaborator.
func (m *Memory) ReportProgress(fraction float64, text string) {
	m.mu.Lock()
	m.progress = append(m.progress, fraction)
	fn := m.OnProgress
	m.mu.Unlock()

	if fn != nil {
		fn(fraction, text)
	}
}

// Layers returns the document's current layers. The slice is a copy; the
// layers are shared.
func (m *Memory) Layers() layer.Stack {
	m.mu.Lock()
	defer m.mu.Unlock()

	return slices.Clone(m.layers)
}

// Active returns the index of the active layer.
func (m *Memory) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.active
}

// Images returns stacks applied as new images.
func (m *Memory) Images() []layer.Stack {
	m.mu.Lock()
	defer m.mu.Unlock()

	return slices.Clone(m.images)
}

// Progress returns every reported fraction in order.
func (m *Memory) Progress() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return slices.Clone(m.progress)
}
