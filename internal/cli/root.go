// Package cli implements the cobra command tree for gmicfx.
package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/hupe1980/gmicfx/internal/config"
	"github.com/hupe1980/gmicfx/internal/logging"
)

// Process exit codes.
const (
	exitFailure       = 1
	exitUsage         = 2
	exitFilterFailed  = 3
	exitUpdateProblem = 4
)

// ExitError wraps an error with a specific process exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}

	return fmt.Sprintf("exit code %d", e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// Execute builds the command tree, runs it, and returns the exit code.
func Execute() int {
	cmd := NewRootCommand()

	if err := cmd.Execute(); err != nil {
		code := exitFailure

		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.Code
		}

		if exitErr == nil || exitErr.Err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}

		return code
	}

	return 0
}

// NewRootCommand constructs the top-level cobra.Command with all
// subcommands attached.
func NewRootCommand() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "gmicfx",
		Short: "Run image filters from a synchronized filter catalog",
		Long: `gmicfx runs image filters headlessly and keeps a local filter catalog
in sync with any number of filter definition sources.

Filters are selected by catalog path, by explicit command text, or both.
Sources are fetched concurrently, merged by priority and cached, so a
source that is temporarily unreachable keeps its previous filters.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd, cfgFile)
			if err != nil {
				return &ExitError{Code: exitUsage, Err: err}
			}

			logger := logging.Setup(cfg)

			ctx := cmd.Context()
			ctx = config.NewContext(ctx, cfg)
			ctx = logging.NewContext(ctx, logger)
			cmd.SetContext(ctx)

			logger.Debug("configuration loaded",
				slog.String("logLevel", cfg.LogLevel),
				slog.String("logFormat", cfg.LogFormat),
				slog.String("cacheDir", cfg.CacheDir),
				slog.Int("sources", len(cfg.Extensions.Sources)),
			)

			return nil
		},
	}

	// Global persistent flags.
	pf := cmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: .gmicfx.yaml)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "text", "log format: text, json")
	pf.Bool("no-color", false, "disable colored output")
	pf.BoolP("quiet", "q", false, "suppress non-essential output")
	pf.String("cache-dir", config.DefaultCacheDir(), "directory for the catalog cache and fetched sources")

	// Flag parsing errors return exit code 2.
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &ExitError{Code: exitUsage, Err: err}
	})

	cmd.AddCommand(
		newVersionCommand(),
		newRunCommand(),
		newUpdateCommand(),
		newListCommand(),
		newShowCommand(),
		newDiffCommand(),
		newWatchCommand(),
		newDocsCommand(),
		newCompletionCommand(),
	)

	return cmd
}
