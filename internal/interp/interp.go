// Package interp runs command text against a layer stack.
//
// The engine only depends on the Interpreter interface. Builtin is a small
// reference interpreter covering the commands needed to exercise the engine
// headlessly; it is not a general image-processing language.
package interp

import (
	"context"
	"errors"
	"math"
	"sync/atomic"

	"github.com/hupe1980/gmicfx/internal/layer"
)

// ErrInterrupted is returned by Checkpoint once cancellation was requested.
var ErrInterrupted = errors.New("interrupted")

// Interpreter executes command text. in is owned by the interpreter for the
// duration of the call and may be modified or returned as part of the result.
type Interpreter interface {
	Run(ctx context.Context, text string, in layer.Stack, st *Status) (*Result, error)
}

// Result is what a command produced.
type Result struct {
	Layers layer.Stack
	// Message is the status text the command left, if any.
	Message string
}

// Canceler is polled at checkpoints.
type Canceler interface {
	Canceled() bool
}

// Status is shared between a running interpreter and the engine sampling
// it. Interpreters publish progress with SetProgress and call Checkpoint
// at safe points.
type Status struct {
	cancel   Canceler
	progress atomic.Uint64
	text     atomic.Pointer[string]
}

// NewStatus returns a status polling c. A nil c never cancels.
func NewStatus(c Canceler) *Status {
	return &Status{cancel: c}
}

// SetProgress publishes progress. Values are clamped to [0,1].
func (s *Status) SetProgress(fraction float64, text string) {
	if math.IsNaN(fraction) {
		fraction = 0
	}

	s.progress.Store(math.Float64bits(min(max(fraction, 0), 1)))

	if text != "" {
		s.text.Store(&text)
	}
}

// Progress returns the latest published progress.
func (s *Status) Progress() (float64, string) {
	var text string
	if p := s.text.Load(); p != nil {
		text = *p
	}

	return math.Float64frombits(s.progress.Load()), text
}

// Canceled reports whether cancellation was requested.
func (s *Status) Canceled() bool {
	return s.cancel != nil && s.cancel.Canceled()
}

// Checkpoint returns ErrInterrupted once cancellation was requested or ctx
// is done.
func (s *Status) Checkpoint(ctx context.Context) error {
	if s.Canceled() {
		return ErrInterrupted
	}

	if ctx.Err() != nil {
		return errors.Join(ErrInterrupted, ctx.Err())
	}

	return nil
}
