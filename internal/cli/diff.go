package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/gmicfx/internal/catalog"
	"github.com/hupe1980/gmicfx/internal/config"
)

func newDiffCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Show what an update would change",
		Long: `Diff fetches all sources and compares the merged result with the cached
catalog without saving anything.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDiff(cmd.Context(), cmd)
		},
	}

	return cmd
}

func runDiff(ctx context.Context, cmd *cobra.Command) error {
	cfg := config.FromContext(ctx)

	if len(configuredSources(cfg)) == 0 {
		return &ExitError{Code: exitUsage, Err: fmt.Errorf("no sources configured (add a sources list to the config file)")}
	}

	cached, err := catalog.LoadFile(catalogFile(cfg))
	if err != nil {
		return &ExitError{Code: exitFailure, Err: err}
	}

	// A private store keeps the published catalog untouched.
	orch, err := newOrchestrator(cfg, catalog.NewStore(cached), orchestratorOptions{})
	if err != nil {
		return &ExitError{Code: exitUsage, Err: err}
	}

	res, err := orch.Update(ctx)
	if err != nil {
		return &ExitError{Code: exitFailure, Err: err}
	}

	for _, p := range res.Report {
		fmt.Fprintf(cmd.ErrOrStderr(), "problem: %v\n", p)
	}

	w := cmd.OutOrStdout()

	diff, err := catalog.Diff(cached, res.Current, catalog.DefaultDiffOptions())
	if err != nil {
		return &ExitError{Code: exitFailure, Err: err}
	}

	catalog.WriteDiff(w, diff, useColor(cfg, w))

	if diff.HasDifferences && !cfg.Quiet {
		fmt.Fprintln(cmd.ErrOrStderr(), diff.Summary())
	}

	return nil
}
