// Package engine runs commands against layer stacks on a worker goroutine.
//
// An Engine runs at most one job at a time. Jobs report progress by
// sampling the interpreter's status, honour a cooperative cancel token and
// validate their output before anyone sees it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/gmicfx/internal/command"
	"github.com/hupe1980/gmicfx/internal/host"
	"github.com/hupe1980/gmicfx/internal/interp"
	"github.com/hupe1980/gmicfx/internal/layer"
	"github.com/hupe1980/gmicfx/internal/logging"
)

var (
	// ErrAlreadyRunning is returned when a job is started while another runs.
	ErrAlreadyRunning = errors.New("a filter is already running")
	// ErrEmptyResultNoMessage is returned when a command produced no layers
	// and no message.
	ErrEmptyResultNoMessage = errors.New("filter produced no output and no message")
	// ErrCancelled is the error of a cancelled job.
	ErrCancelled = errors.New("filter execution cancelled")
	// ErrInvalidInput is returned when the input stack holds a nil or
	// inconsistent layer. No job is started.
	ErrInvalidInput = errors.New("invalid input layers")
	// ErrCancelTimeout is returned by AwaitCancel when the job did not stop
	// within the grace period.
	ErrCancelTimeout = errors.New("waiting for cancelled job")
)

// DefaultProgressInterval is the progress sampling period.
const DefaultProgressInterval = 250 * time.Millisecond

// Option configures an Engine.
type Option func(*Engine)

// WithProgressInterval sets how often progress is sampled.
func WithProgressInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.interval = d
		}
	}
}

// Engine executes commands with an Interpreter.
type Engine struct {
	interp   interp.Interpreter
	interval time.Duration

	mu      sync.Mutex
	current *Job
}

// New returns an engine using in.
func New(in interp.Interpreter, opts ...Option) *Engine {
	e := &Engine{interp: in, interval: DefaultProgressInterval}
	for _, o := range opts {
		o(e)
	}

	return e
}

// State returns the state of the latest job, or StateIdle.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil {
		return StateIdle
	}

	return e.current.State()
}

// Start launches cmd against a copy of stack and returns immediately. The
// caller's stack is never modified. token may be nil; onProgress may be nil.
func (e *Engine) Start(ctx context.Context, cmd command.Command, stack layer.Stack, token *CancelToken, onProgress ProgressFunc) (*Job, error) {
	return e.start(ctx, cmd, stack, token, onProgress, nil)
}

// Execute runs cmd and waits for it.
func (e *Engine) Execute(ctx context.Context, cmd command.Command, stack layer.Stack, token *CancelToken, onProgress ProgressFunc) (*Result, error) {
	job, err := e.Start(ctx, cmd, stack, token, onProgress)
	if err != nil {
		return nil, err
	}

	<-job.Done()

	return job.result, job.err
}

// Apply runs cmd on the layers h selects for the command's input mode.
// When the job completes with layers, they are handed to h before the job
// is marked completed; a failure to apply them fails the job. Progress
// goes to both h and onProgress.
func (e *Engine) Apply(ctx context.Context, cmd command.Command, h host.Collaborator, token *CancelToken, onProgress ProgressFunc) (*Job, error) {
	if e.State() == StateRunning || e.State() == StateCancelling {
		return nil, ErrAlreadyRunning
	}

	in, err := h.InputLayers(cmd.IO.Input)
	if err != nil {
		return nil, fmt.Errorf("selecting input layers: %w", err)
	}

	forward := func(f float64, text string) {
		h.ReportProgress(f, text)

		if onProgress != nil {
			onProgress(f, text)
		}
	}

	apply := func(res *Result) error {
		if len(res.Layers) == 0 {
			return nil
		}

		if err := h.ApplyOutputLayers(res.Layers, cmd.IO.Output); err != nil {
			return fmt.Errorf("applying output layers: %w", err)
		}

		return nil
	}

	return e.start(ctx, cmd, in, token, forward, apply)
}

func (e *Engine) start(ctx context.Context, cmd command.Command, stack layer.Stack, token *CancelToken, onProgress ProgressFunc, apply func(*Result) error) (*Job, error) {
	if token == nil {
		token = NewCancelToken()
	}

	if err := checkInput(stack); err != nil {
		return nil, err
	}

	work := stack.Clone()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current != nil && !e.current.State().IsTerminal() {
		return nil, fmt.Errorf("%w: job %s", ErrAlreadyRunning, e.current.ID())
	}

	job := &Job{
		id:      uuid.New(),
		cmd:     cmd,
		token:   token,
		apply:   apply,
		started: time.Now(),
		done:    make(chan struct{}),
	}

	if err := job.state.transition(StateIdle, StateRunning); err != nil {
		return nil, err
	}

	e.current = job

	logger := logging.WithJob(logging.FromContext(ctx), job.id.String())
	logger.Debug("starting filter", slog.String("command", cmd.Text()), slog.Int("layers", len(stack)))

	go e.work(logging.NewContext(ctx, logger), job, work, onProgress)

	return job, nil
}

func checkInput(stack layer.Stack) error {
	for i, l := range stack {
		if l == nil {
			return fmt.Errorf("%w: layer %d is nil", ErrInvalidInput, i)
		}

		if err := l.Check(); err != nil {
			return fmt.Errorf("%w: layer %d: %w", ErrInvalidInput, i, err)
		}
	}

	return nil
}

type outcome struct {
	res *interp.Result
	err error
}

func (e *Engine) work(ctx context.Context, job *Job, stack layer.Stack, onProgress ProgressFunc) {
	logger := logging.FromContext(ctx)
	st := interp.NewStatus(job.token)

	finished := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				finished <- outcome{err: fmt.Errorf("interpreter panic: %v", r)}
			}
		}()

		res, err := e.interp.Run(ctx, job.cmd.Text(), stack, st)
		finished <- outcome{res: res, err: err}
	}()

	sampler := newProgressSampler(onProgress)
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	var out outcome

loop:
	for {
		select {
		case out = <-finished:
			break loop
		case <-ticker.C:
			if job.token.Canceled() {
				job.markCancelling()
			}

			sampler.sample(st)
		}
	}

	e.commit(job, out)

	if job.State() == StateCompleted {
		sampler.sample(st)
	}

	attrs := []any{slog.String("state", job.State().String()), slog.Duration("duration", time.Since(job.started))}

	switch job.State() {
	case StateCompleted:
		logger.Info("filter completed", attrs...)
	case StateCancelled:
		logger.Info("filter cancelled", attrs...)
	default:
		logger.Warn("filter failed", append(attrs, slog.Any("error", job.err))...)
	}

	close(job.done)
}

// commit decides the job's final state. It holds the job's commit lock so
// that a concurrent Cancel either lands before the decision, and the job
// is cancelled, or after it, and has no effect.
func (e *Engine) commit(job *Job, out outcome) {
	job.commit.Lock()
	defer job.commit.Unlock()

	res, err := e.finish(job, out.res, out.err)
	if err == nil && job.apply != nil {
		err = job.apply(res)
	}

	from := job.State()

	var to State

	switch {
	case errors.Is(err, ErrCancelled):
		to = StateCancelled
		res = nil
	case err != nil:
		to = StateFailed
		res = nil
	default:
		to = StateCompleted
	}

	if err := job.state.transition(from, to); err != nil {
		// Only a cancelling job can refuse; it always ends cancelled.
		res, to = nil, StateCancelled
		_ = job.state.transition(from, to)
	}

	if to == StateCancelled {
		err = ErrCancelled
	}

	job.result, job.err = res, err
}

// finish turns the interpreter outcome into the job's result.
func (e *Engine) finish(job *Job, res *interp.Result, err error) (*Result, error) {
	if job.token.Canceled() || errors.Is(err, interp.ErrInterrupted) {
		return nil, ErrCancelled
	}

	if err != nil {
		return nil, err
	}

	if res == nil || (len(res.Layers) == 0 && res.Message == "") {
		return nil, ErrEmptyResultNoMessage
	}

	if err := layer.Validate(res.Layers); err != nil {
		return nil, err
	}

	return &Result{Layers: res.Layers, Message: res.Message, Duration: time.Since(job.started)}, nil
}

// progressSampler forwards interpreter progress, dropping samples that
// would move backwards or repeat.
type progressSampler struct {
	fn       ProgressFunc
	last     float64
	lastText string
	sent     bool
}

func newProgressSampler(fn ProgressFunc) *progressSampler {
	return &progressSampler{fn: fn}
}

func (p *progressSampler) sample(st *interp.Status) {
	if p.fn == nil {
		return
	}

	f, text := st.Progress()
	if p.sent && (f < p.last || (f == p.last && text == p.lastText)) {
		return
	}

	p.last, p.lastText, p.sent = f, text, true
	p.fn(f, text)
}
