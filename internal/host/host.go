// Package host defines the contract between the engine and the application
// that owns the image, and provides two implementations: an in-memory
// document and a file-backed host used by the command line.
package host

import (
	"errors"
	"fmt"

	"github.com/hupe1980/gmicfx/internal/layer"
)

// Collaborator is implemented by every host. The engine asks it for input
// layers, hands it validated output layers and forwards progress to it.
// Implementations must be safe for use from the engine's worker goroutine.
type Collaborator interface {
	// InputLayers returns copies of the layers selected by mode.
	InputLayers(mode layer.InputMode) (layer.Stack, error)

	// ApplyOutputLayers applies a validated stack. It is called at most
	// once per execution, after the stack passed validation.
	ApplyOutputLayers(out layer.Stack, mode layer.OutputMode) error

	// ReportProgress receives non-decreasing progress in [0,1].
	ReportProgress(fraction float64, text string)
}

// ErrNoLayers is returned when a mode selects layers from an empty document.
var ErrNoLayers = errors.New("document has no layers")

// Supported host kinds for New.
const (
	KindMemory = "memory"
	KindFile   = "file"
)

// Options configures New.
type Options struct {
	// Inputs are image files opened by the file host.
	Inputs []string
	// OutputDir receives images written by the file host.
	OutputDir string
	// Width, Height and Channels size the blank layer of a memory host
	// created without inputs.
	Width, Height, Channels int
	// Progress, if set, receives every progress report.
	Progress func(fraction float64, text string)
}

// New selects a host implementation by kind.
func New(kind string, opts Options) (Collaborator, error) {
	switch kind {
	case KindMemory, "":
		w, h, c := opts.Width, opts.Height, opts.Channels
		if w <= 0 || h <= 0 {
			w, h = 256, 256
		}

		if c <= 0 {
			c = 3
		}

		m := NewMemory(layer.Stack{layer.New("background", w, h, c)}, 0)
		m.OnProgress = opts.Progress

		return m, nil
	case KindFile:
		return OpenFiles(opts.Inputs, opts.OutputDir, opts.Progress)
	default:
		return nil, fmt.Errorf("unknown host kind %q (valid: %s, %s)", kind, KindMemory, KindFile)
	}
}

// selectIndices returns the stack positions chosen by mode. Layers are
// ordered topmost first, so "below" means a higher index.
func selectIndices(stack layer.Stack, active int, mode layer.InputMode) ([]int, error) {
	if mode == layer.InputNone {
		return nil, nil
	}

	if len(stack) == 0 {
		return nil, ErrNoLayers
	}

	var idx []int

	for i, l := range stack {
		var take bool

		switch mode {
		case layer.InputActive:
			take = i == active
		case layer.InputAll:
			take = true
		case layer.InputActiveAndBelow:
			take = i >= active
		case layer.InputActiveAndAbove:
			take = i <= active
		case layer.InputAllVisible:
			take = Visible(l)
		case layer.InputAllInvisible:
			take = !Visible(l)
		default:
			return nil, fmt.Errorf("unsupported input mode %s", mode)
		}

		if take {
			idx = append(idx, i)
		}
	}

	return idx, nil
}

// Visible reports whether l is shown. Layers are visible unless their
// "visible" metadata is "0" or "false".
func Visible(l *layer.Layer) bool {
	switch l.Meta["visible"] {
	case "0", "false":
		return false
	default:
		return true
	}
}
