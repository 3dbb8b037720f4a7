package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/mattn/go-isatty"

	"github.com/hupe1980/gmicfx/internal/catalog"
	"github.com/hupe1980/gmicfx/internal/config"
	"github.com/hupe1980/gmicfx/internal/interp"
	"github.com/hupe1980/gmicfx/internal/merge"
	"github.com/hupe1980/gmicfx/internal/source"
	"github.com/hupe1980/gmicfx/internal/update"
	"github.com/hupe1980/gmicfx/internal/version"
)

const catalogFileName = "catalog.yaml"

func catalogFile(cfg *config.Config) string {
	return filepath.Join(cfg.CacheDir, catalogFileName)
}

// loadStore publishes the cached catalog, or an empty one on first use.
func loadStore(cfg *config.Config) (*catalog.Store, error) {
	snap, err := catalog.LoadFile(catalogFile(cfg))
	if err != nil {
		return nil, err
	}

	return catalog.NewStore(snap), nil
}

// orchestratorOptions toggles side effects for commands that only preview
// an update.
type orchestratorOptions struct {
	persist bool
}

func newOrchestrator(cfg *config.Config, store *catalog.Store, opts orchestratorOptions) (*update.Orchestrator, error) {
	engineVersion, err := cfg.Engine()
	if err != nil {
		return nil, err
	}

	httpFetcher := source.NewHTTPFetcher(false)
	httpFetcher.UserAgent = "gmicfx/" + version.GetInfo().Version

	fetchOpts := []source.Option{
		source.WithTimeout(cfg.FetchTimeout),
		source.WithFetcher(source.TypeHTTP, httpFetcher),
	}

	updateOpts := []update.Option{
		update.WithMaxConcurrent(cfg.MaxConcurrentFetches),
		update.WithMerger(merge.New(
			merge.WithEngineVersion(engineVersion),
			merge.WithCacheDir(cfg.CacheDir),
		)),
	}

	if opts.persist {
		updateOpts = append(updateOpts,
			update.WithCacheFile(catalogFile(cfg)),
			update.WithSourceCacheDir(cfg.CacheDir),
		)
	}

	return update.New(store, source.NewMultiFetcher(fetchOpts...), configuredSources(cfg), updateOpts...), nil
}

func configuredSources(cfg *config.Config) []source.Descriptor {
	if cfg.Extensions == nil {
		return nil
	}

	return source.FromConfig(cfg.Extensions.Sources)
}

// newInterpreter returns the builtin interpreter with the configured
// macros defined in name order.
func newInterpreter(cfg *config.Config) (*interp.Builtin, error) {
	b := interp.NewBuiltin()

	if cfg.Extensions == nil {
		return b, nil
	}

	names := make([]string, 0, len(cfg.Extensions.Macros))
	for name := range cfg.Extensions.Macros {
		names = append(names, name)
	}

	slices.Sort(names)

	for _, name := range names {
		if err := b.Define(name, cfg.Extensions.Macros[name]); err != nil {
			return nil, fmt.Errorf("macro %q: %w", name, err)
		}
	}

	return b, nil
}

// isTerminal reports whether w is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// useColor reports whether ANSI colors should be written to w.
func useColor(cfg *config.Config, w io.Writer) bool {
	return !cfg.NoColor && isTerminal(w)
}
