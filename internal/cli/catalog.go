package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	sigsyaml "sigs.k8s.io/yaml"

	"github.com/hupe1980/gmicfx/internal/config"
	"github.com/hupe1980/gmicfx/internal/filter"
)

type listOptions struct {
	prefix string
	tag    string
	origin string
	all    bool
}

func newListCommand() *cobra.Command {
	opts := &listOptions{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List filters in the cached catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd.Context(), cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.prefix, "prefix", "", "only filters under this folder path")
	f.StringVar(&opts.tag, "tag", "", "only filters with this tag")
	f.StringVar(&opts.origin, "source", "", "only filters from this source")
	f.BoolVar(&opts.all, "all", false, "include hidden filters")

	_ = cmd.RegisterFlagCompletionFunc("prefix", completeFilterPaths)

	return cmd
}

func runList(ctx context.Context, cmd *cobra.Command, opts *listOptions) error {
	store, err := loadStore(config.FromContext(ctx))
	if err != nil {
		return &ExitError{Code: exitFailure, Err: err}
	}

	snap := store.Load()

	defs := snap.Definitions()
	if opts.prefix != "" {
		defs = snap.Under(opts.prefix)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tCOMMAND\tPARAMS\tSOURCE")

	for _, d := range defs {
		if d.Hidden && !opts.all {
			continue
		}

		if opts.tag != "" && !d.HasTag(opts.tag) {
			continue
		}

		if opts.origin != "" && d.Origin != opts.origin {
			continue
		}

		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", d.Path, d.Command, len(d.Params), d.Origin)
	}

	return tw.Flush()
}

type showOptions struct {
	output string
}

func newShowCommand() *cobra.Command {
	opts := &showOptions{}

	cmd := &cobra.Command{
		Use:               "show <path-or-command>",
		Short:             "Show one filter definition",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeFirstFilterPath,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd.Context(), cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "yaml", "output format: yaml, json, text")

	return cmd
}

func runShow(ctx context.Context, cmd *cobra.Command, ref string, opts *showOptions) error {
	store, err := loadStore(config.FromContext(ctx))
	if err != nil {
		return &ExitError{Code: exitFailure, Err: err}
	}

	snap := store.Load()

	def, ok := snap.Lookup(ref)
	if !ok {
		def, ok = snap.LookupCommand(ref)
	}

	if !ok {
		return &ExitError{Code: exitUsage, Err: fmt.Errorf("no filter %q in the catalog", ref)}
	}

	w := cmd.OutOrStdout()

	switch strings.ToLower(opts.output) {
	case "yaml":
		data, err := sigsyaml.Marshal(def)
		if err != nil {
			return &ExitError{Code: exitFailure, Err: fmt.Errorf("serializing YAML: %w", err)}
		}

		_, err = w.Write(data)

		return err
	case "json":
		data, err := json.MarshalIndent(def, "", "  ")
		if err != nil {
			return &ExitError{Code: exitFailure, Err: fmt.Errorf("serializing JSON: %w", err)}
		}

		_, err = fmt.Fprintln(w, string(data))

		return err
	case "text":
		_, err := fmt.Fprint(w, filter.Render([]*filter.Definition{def}))
		return err
	default:
		return &ExitError{Code: exitUsage, Err: fmt.Errorf("unsupported format %q (supported: yaml, json, text)", opts.output)}
	}
}
