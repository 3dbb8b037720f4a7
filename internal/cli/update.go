package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/gmicfx/internal/catalog"
	"github.com/hupe1980/gmicfx/internal/config"
	"github.com/hupe1980/gmicfx/internal/update"
)

type updateOptions struct {
	diff bool
}

func newUpdateCommand() *cobra.Command {
	opts := &updateOptions{}

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Fetch all sources and update the filter catalog",
		Long: `Update fetches every configured source concurrently, merges the results
by priority over the cached catalog and saves the new catalog.

Sources that fail keep the filters they contributed before. Every problem
is listed; the exit code is 4 when the catalog was updated with problems.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runUpdate(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.diff, "diff", false, "print a unified diff of the catalog changes")

	return cmd
}

func runUpdate(ctx context.Context, cmd *cobra.Command, opts *updateOptions) error {
	cfg := config.FromContext(ctx)

	if len(configuredSources(cfg)) == 0 {
		return &ExitError{Code: exitUsage, Err: fmt.Errorf("no sources configured (add a sources list to the config file)")}
	}

	store, err := loadStore(cfg)
	if err != nil {
		return &ExitError{Code: exitFailure, Err: err}
	}

	orch, err := newOrchestrator(cfg, store, orchestratorOptions{persist: true})
	if err != nil {
		return &ExitError{Code: exitUsage, Err: err}
	}

	res, err := orch.Update(ctx)
	if err != nil {
		return &ExitError{Code: exitFailure, Err: err}
	}

	w := cmd.OutOrStdout()

	if opts.diff {
		if err := writeResultDiff(w, res, useColor(cfg, w)); err != nil {
			return &ExitError{Code: exitFailure, Err: err}
		}
	}

	return reportUpdate(cmd.ErrOrStderr(), res, cfg.Quiet)
}

func writeResultDiff(w io.Writer, res *update.Result, color bool) error {
	diff, err := res.Diff(catalog.DefaultDiffOptions())
	if err != nil {
		return err
	}

	catalog.WriteDiff(w, diff, color)

	return nil
}

// reportUpdate prints the problem list and summary and maps problems to
// exit code 4.
func reportUpdate(w io.Writer, res *update.Result, quiet bool) error {
	for _, p := range res.Report {
		fmt.Fprintf(w, "problem: %v\n", p)
	}

	if !quiet {
		state := "unchanged"
		if res.Changed() {
			state = fmt.Sprintf("updated (generation %d)", res.Current.Generation())
		}

		fmt.Fprintf(w, "catalog %s: %d definitions from %d source(s) in %s\n",
			state, res.Current.Len(), len(res.Outcomes), res.Duration.Round(time.Millisecond))
	}

	if len(res.Report) == 0 {
		return nil
	}

	failed := len(res.Report.FailedSources())
	if failed == len(res.Outcomes) {
		return &ExitError{Code: exitUpdateProblem, Err: fmt.Errorf("update could not be achieved: all %d source(s) failed", failed)}
	}

	return &ExitError{Code: exitUpdateProblem, Err: fmt.Errorf("update completed with %d problem(s)", len(res.Report))}
}
