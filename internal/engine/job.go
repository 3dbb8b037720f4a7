package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/gmicfx/internal/command"
	"github.com/hupe1980/gmicfx/internal/layer"
)

// CancelToken is held by the caller and polled by the engine and the
// interpreter. Signalling it more than once has no further effect.
type CancelToken struct {
	flag atomic.Bool
}

// NewCancelToken returns an unsignalled token.
func NewCancelToken() *CancelToken { return &CancelToken{} }

// Cancel signals the token.
func (t *CancelToken) Cancel() { t.flag.Store(true) }

// Canceled reports whether the token was signalled.
func (t *CancelToken) Canceled() bool { return t.flag.Load() }

// ProgressFunc receives progress while a job runs. Within one job the
// fraction never decreases.
type ProgressFunc func(fraction float64, text string)

// Result is the output of a completed job. It belongs to the caller once
// Wait returns it.
type Result struct {
	Layers   layer.Stack
	Message  string
	Duration time.Duration
}

// Job is one execution attempt of one command.
type Job struct {
	id      uuid.UUID
	cmd     command.Command
	token   *CancelToken
	state   stateCell
	apply   func(*Result) error
	started time.Time
	done    chan struct{}

	// commit serialises the final state decision with Cancel.
	commit sync.Mutex

	// Set by the worker before done is closed.
	result *Result
	err    error
}

// ID identifies the job in logs.
func (j *Job) ID() uuid.UUID { return j.id }

// Command returns the command being executed.
func (j *Job) Command() command.Command { return j.cmd }

// State returns the job's current state.
func (j *Job) State() State { return j.state.load() }

// Done is closed when the job reached a terminal state.
func (j *Job) Done() <-chan struct{} { return j.done }

// Cancel requests cooperative cancellation and does not wait for the
// interpreter; the job moves to Cancelling and later to Cancelled. A job
// whose output is already being applied completes normally.
func (j *Job) Cancel() {
	j.token.Cancel()
	j.markCancelling()
}

func (j *Job) markCancelling() {
	j.commit.Lock()
	defer j.commit.Unlock()

	_ = j.state.transition(StateRunning, StateCancelling)
}

// Wait blocks until the job finishes or ctx is done. Waiting does not
// cancel the job.
func (j *Job) Wait(ctx context.Context) (*Result, error) {
	select {
	case <-j.done:
		return j.result, j.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// AwaitCancel cancels the job and waits up to grace for it to stop. When
// the grace period passes first it returns ErrCancelTimeout; the job keeps
// running and must still be waited for before its layers are touched.
func (j *Job) AwaitCancel(grace time.Duration) error {
	j.Cancel()

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-j.done:
		return nil
	case <-timer.C:
		return ErrCancelTimeout
	}
}
