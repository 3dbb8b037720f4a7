package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/gmicfx/internal/command"
	"github.com/hupe1980/gmicfx/internal/config"
	"github.com/hupe1980/gmicfx/internal/engine"
	"github.com/hupe1980/gmicfx/internal/host"
	"github.com/hupe1980/gmicfx/internal/layer"
	"github.com/hupe1980/gmicfx/internal/logging"
)

type runOptions struct {
	path       string
	command    string
	params     []string
	inputMode  string
	outputMode string
	preview    bool

	host      string
	inputs    []string
	outputDir string
	width     int
	height    int
	channels  int

	timeout time.Duration
}

func newRunCommand() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a filter headlessly",
		Long: `Run applies one filter to a set of layers.

The filter is selected with --path, with --command, or both. When both
are given the command must belong to the filter at that path. A command
whose name is not in the catalog runs verbatim as a custom command.

Input images are read with --input (PNG, JPEG, BMP, TIFF) and results are
written as PNG to --output-dir. Without inputs a blank in-memory layer is
used. Ctrl-C cancels the running filter cooperatively.`,
		Example: `  gmicfx run --path "Blur/Gaussian" --param 5 --input photo.png --output-dir out
  gmicfx run --command "fx_gaussian 5" --input photo.png
  gmicfx run --command "blur 3; invert" --output-mode new_layers`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRun(cmd.Context(), cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.path, "path", "p", "", "filter path in the catalog, e.g. blur/gaussian")
	f.StringVarP(&opts.command, "command", "c", "", "explicit command text")
	f.StringArrayVar(&opts.params, "param", nil, "parameter value, repeated once per declared parameter")
	f.StringVar(&opts.inputMode, "input-mode", layer.DefaultInputMode.String(), "input layers: none, active, all, active_and_below, active_and_above, all_visible, all_invisible")
	f.StringVar(&opts.outputMode, "output-mode", layer.DefaultOutputMode.String(), "output mode: in_place, new_layers, new_active_layers, new_image")
	f.BoolVar(&opts.preview, "preview", false, "run the filter's preview command")
	f.StringVar(&opts.host, "host", "", "host kind: memory or file (default: file when --input is set)")
	f.StringArrayVarP(&opts.inputs, "input", "i", nil, "input image, topmost layer first")
	f.StringVarP(&opts.outputDir, "output-dir", "o", ".", "directory for result images")
	f.IntVar(&opts.width, "width", 256, "width of the blank layer without inputs")
	f.IntVar(&opts.height, "height", 256, "height of the blank layer without inputs")
	f.IntVar(&opts.channels, "channels", 3, "channels of the blank layer without inputs")
	f.DurationVar(&opts.timeout, "timeout", 0, "cancel the filter after this duration (0 = no limit)")

	_ = cmd.RegisterFlagCompletionFunc("path", completeFilterPaths)

	return cmd
}

func runRun(ctx context.Context, cmd *cobra.Command, opts *runOptions) error {
	cfg := config.FromContext(ctx)
	logger := logging.FromContext(ctx)

	if opts.path == "" && opts.command == "" {
		return &ExitError{Code: exitUsage, Err: fmt.Errorf("%w: use --path, --command or both", command.ErrMissingFilterSpecifier)}
	}

	io, err := parseIOMode(opts.inputMode, opts.outputMode)
	if err != nil {
		return &ExitError{Code: exitUsage, Err: err}
	}

	store, err := loadStore(cfg)
	if err != nil {
		return &ExitError{Code: exitFailure, Err: err}
	}

	builder := command.NewBuilder(store)

	inv, err := builder.Resolve(command.Request{
		Path:    opts.path,
		Command: opts.command,
		Params:  opts.params,
		IO:      io,
	})
	if err != nil {
		return &ExitError{Code: exitUsage, Err: err}
	}

	run := inv.Command
	if opts.preview && inv.Definition != nil {
		run, err = builder.BuildPreview(inv.Definition.Path, inv.Params, run.IO)
		if err != nil {
			return &ExitError{Code: exitUsage, Err: err}
		}
	}

	interpreter, err := newInterpreter(cfg)
	if err != nil {
		return &ExitError{Code: exitUsage, Err: err}
	}

	kind := opts.host
	if kind == "" {
		kind = host.KindMemory
		if len(opts.inputs) > 0 {
			kind = host.KindFile
		}
	}

	h, err := host.New(kind, host.Options{
		Inputs:    opts.inputs,
		OutputDir: opts.outputDir,
		Width:     opts.width,
		Height:    opts.height,
		Channels:  opts.channels,
	})
	if err != nil {
		return &ExitError{Code: exitUsage, Err: err}
	}

	if opts.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	stderr := cmd.ErrOrStderr()
	progress := newProgressPrinter(stderr, isTerminal(stderr), cfg.Quiet)

	eng := engine.New(interpreter, engine.WithProgressInterval(cfg.ProgressInterval))

	logger.Debug("running filter", slog.String("command", run.Text()), slog.String("host", kind))

	job, err := eng.Apply(ctx, run, h, engine.NewCancelToken(), progress.update)
	if err != nil {
		return &ExitError{Code: exitFilterFailed, Err: err}
	}

	waitForJob(ctx, job, cfg.CancelGrace, func() {
		progress.finish()
		fmt.Fprintln(stderr, "waiting for cancelled job")
	})

	progress.finish()

	res, err := job.Wait(context.Background())
	if err != nil {
		return &ExitError{Code: exitFilterFailed, Err: err}
	}

	return printRunResult(cmd, h, res)
}

// waitForJob blocks until job finishes. On SIGINT, SIGTERM or ctx expiry
// the job is cancelled; if it outlives grace, onSlow is called and the wait
// continues, since the worker may still be touching the layers.
func waitForJob(ctx context.Context, job *engine.Job, grace time.Duration, onSlow func()) {
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-job.Done():
		return
	case <-sigCtx.Done():
	}

	if err := job.AwaitCancel(grace); errors.Is(err, engine.ErrCancelTimeout) {
		onSlow()
		<-job.Done()
	}
}

func parseIOMode(input, output string) (command.IOMode, error) {
	in, err := layer.ParseInputMode(input)
	if err != nil {
		return command.IOMode{}, err
	}

	out, err := layer.ParseOutputMode(output)
	if err != nil {
		return command.IOMode{}, err
	}

	return command.IOMode{Input: in, Output: out}, nil
}

func printRunResult(cmd *cobra.Command, h host.Collaborator, res *engine.Result) error {
	w := cmd.OutOrStdout()

	if res.Message != "" {
		fmt.Fprintln(w, res.Message)
	}

	if fh, ok := h.(*host.File); ok {
		for _, p := range fh.Written() {
			fmt.Fprintf(w, "wrote %s\n", p)
		}
	}

	if !config.FromContext(cmd.Context()).Quiet {
		fmt.Fprintf(cmd.ErrOrStderr(), "done: %d layer(s) in %s\n", len(res.Layers), res.Duration.Round(time.Millisecond))
	}

	return nil
}
