package cli

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/gmicfx/internal/config"
	"github.com/hupe1980/gmicfx/internal/logging"
	"github.com/hupe1980/gmicfx/internal/update"
)

type watchOptions struct {
	debounce time.Duration
}

func newWatchCommand() *cobra.Command {
	opts := &watchOptions{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Update the catalog whenever a local source changes",
		Long: `Watch runs an update, then re-runs it each time a file-based source or
the config file changes. Rapid changes are debounced into one update.
Remote sources are fetched on every update as well.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().DurationVar(&opts.debounce, "debounce", 500*time.Millisecond, "debounce interval for file changes")

	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, opts *watchOptions) error {
	cfg := config.FromContext(ctx)

	sources := configuredSources(cfg)

	files := update.LocalFiles(sources)
	if cfg.ConfigFile != "" {
		files = append(files, cfg.ConfigFile)
	}

	if len(files) == 0 {
		return &ExitError{Code: exitUsage, Err: fmt.Errorf("nothing to watch: no file-based sources and no config file")}
	}

	store, err := loadStore(cfg)
	if err != nil {
		return &ExitError{Code: exitFailure, Err: err}
	}

	orch, err := newOrchestrator(cfg, store, orchestratorOptions{persist: true})
	if err != nil {
		return &ExitError{Code: exitUsage, Err: err}
	}

	wopts := update.DefaultWatchOptions()
	wopts.Files = files
	wopts.Debounce = opts.debounce
	wopts.Logger = logging.FromContext(ctx)
	wopts.Out = cmd.ErrOrStderr()

	// A changed config file may change the sources, so every run after the
	// first reloads it.
	var mu sync.Mutex

	first := true
	runFn := func(runCtx context.Context) (*update.Result, error) {
		mu.Lock()
		defer mu.Unlock()

		if !first && cfg.ConfigFile != "" {
			next, loadErr := config.Load(cmd, cfg.ConfigFile)
			if loadErr != nil {
				return nil, loadErr
			}

			reloaded, loadErr := newOrchestrator(next, store, orchestratorOptions{persist: true})
			if loadErr != nil {
				return nil, loadErr
			}

			orch = reloaded
		}

		first = false

		return orch.Update(runCtx)
	}

	if err := update.Watch(ctx, wopts, runFn); err != nil {
		return &ExitError{Code: exitFailure, Err: err}
	}

	return nil
}
