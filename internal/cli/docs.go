package cli

import (
	"bytes"
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/gmicfx/internal/catalog"
	"github.com/hupe1980/gmicfx/internal/config"
	"github.com/hupe1980/gmicfx/internal/docs"
)

type docsOptions struct {
	format          string
	title           string
	prefix          string
	tag             string
	all             bool
	includeExamples bool
	outputFile      string
}

func newDocsCommand() *cobra.Command {
	opts := &docsOptions{}

	cmd := &cobra.Command{
		Use:   "docs",
		Short: "Generate a reference of the cached filter catalog",
		Long: `Generate human-readable reference documentation from the cached filter
catalog: one section per folder, each filter with its command, preview
command, source, tags and parameters, and optionally an example invocation.

Supports markdown, HTML, and ASCIIDoc output formats.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDocs(cmd.Context(), cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.format, "format", "f", "markdown", "output format (markdown, html, asciidoc)")
	f.StringVar(&opts.title, "title", "", "override document title")
	f.StringVar(&opts.prefix, "prefix", "", "only filters under this folder path")
	f.StringVar(&opts.tag, "tag", "", "only filters with this tag")
	f.BoolVar(&opts.all, "all", false, "include hidden filters")
	f.BoolVar(&opts.includeExamples, "include-examples", true, "include an example invocation per filter")
	f.StringVarP(&opts.outputFile, "output", "o", "", "write to file instead of stdout")

	return cmd
}

func runDocs(ctx context.Context, cmd *cobra.Command, opts *docsOptions) error {
	formatter, err := docs.NewFormatter(opts.format)
	if err != nil {
		return &ExitError{Code: exitUsage, Err: err}
	}

	store, err := loadStore(config.FromContext(ctx))
	if err != nil {
		return &ExitError{Code: exitFailure, Err: err}
	}

	model := docs.FromSnapshot(store.Load(), docs.Options{
		Prefix:        opts.prefix,
		Tag:           opts.tag,
		IncludeHidden: opts.all,
	})
	model.Title = opts.title
	model.IncludeExamples = opts.includeExamples

	if opts.outputFile == "" {
		if err := formatter.Format(cmd.OutOrStdout(), model); err != nil {
			return &ExitError{Code: exitFailure, Err: fmt.Errorf("formatting docs: %w", err)}
		}

		return nil
	}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, model); err != nil {
		return &ExitError{Code: exitFailure, Err: fmt.Errorf("formatting docs: %w", err)}
	}

	if err := catalog.WriteFileAtomic(opts.outputFile, buf.Bytes(), 0o644); err != nil {
		return &ExitError{Code: exitFailure, Err: fmt.Errorf("writing %s: %w", opts.outputFile, err)}
	}

	return nil
}
