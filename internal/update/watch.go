package update

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/hupe1980/gmicfx/internal/catalog"
	"github.com/hupe1980/gmicfx/internal/source"
)

// RunFunc runs one update cycle for the watcher.
type RunFunc func(ctx context.Context) (*Result, error)

// WatchOptions configures Watch.
type WatchOptions struct {
	// Files are the local files whose changes trigger an update, usually
	// the file-based sources and the config file.
	Files []string

	// Debounce is the quiet period before an update runs.
	Debounce time.Duration

	// Logger is used for structured logging.
	Logger *slog.Logger

	// Out receives one status line per update.
	Out io.Writer
}

// DefaultWatchOptions returns sensible default watch options.
func DefaultWatchOptions() WatchOptions {
	return WatchOptions{
		Debounce: 500 * time.Millisecond,
		Logger:   slog.Default(),
		Out:      os.Stderr,
	}
}

// LocalFiles returns the file paths of the file-based sources.
func LocalFiles(ds []source.Descriptor) []string {
	var out []string

	for _, d := range ds {
		if t, err := source.Detect(d.URL); err != nil || t != source.TypeFile {
			continue
		}

		out = append(out, strings.TrimPrefix(d.URL, "file://"))
	}

	return out
}

// Watch runs an update, then another one each time a watched file changes,
// until ctx is cancelled or SIGINT/SIGTERM is received.
func Watch(ctx context.Context, opts WatchOptions, runFn RunFunc) error {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if opts.Out == nil {
		opts.Out = io.Discard
	}

	if len(opts.Files) == 0 {
		return fmt.Errorf("no local files to watch")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	// Editors replace files by rename, so watch the directories and filter
	// events by name.
	targets, err := addParents(watcher, opts.Files)
	if err != nil {
		return err
	}

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(opts.Out, "watching %d file(s) (debounce=%s)\n", len(targets), opts.Debounce)

	runOnce(sigCtx, opts, runFn, "(initial)")

	debouncer := NewDebouncer(opts.Debounce, func(paths []string) {
		runOnce(sigCtx, opts, runFn, strings.Join(paths, ", "))
	})
	defer debouncer.Stop()

	for {
		select {
		case <-sigCtx.Done():
			fmt.Fprintln(opts.Out, "\nshutting down watcher")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if !isRelevant(event) || !targets[filepath.Clean(event.Name)] {
				continue
			}

			debouncer.Trigger(event.Name)

		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			opts.Logger.Error("watcher error", slog.String("error", watchErr.Error()))
		}
	}
}

func runOnce(ctx context.Context, opts WatchOptions, runFn RunFunc, trigger string) {
	now := time.Now().Format("15:04:05")

	res, err := runFn(ctx)
	if err != nil {
		fmt.Fprintf(opts.Out, "[%s] %s → ERROR: %v\n", now, trigger, err)
		return
	}

	status := "OK"
	if len(res.Report) > 0 {
		status = fmt.Sprintf("%d problem(s)", len(res.Report))
	}

	fmt.Fprintf(opts.Out, "[%s] %s → %s (%d definitions, generation %d)\n",
		now, trigger, status, res.Current.Len(), res.Current.Generation())

	for _, p := range res.Report {
		fmt.Fprintf(opts.Out, "  %v\n", p)
	}

	if res.Changed() {
		if diff, diffErr := res.Diff(catalog.DefaultDiffOptions()); diffErr == nil {
			fmt.Fprintf(opts.Out, "  catalog: %s\n", diff.Summary())
		}
	}
}

// addParents watches the directory of every file and returns the cleaned
// absolute file paths.
func addParents(watcher *fsnotify.Watcher, files []string) (map[string]bool, error) {
	targets := make(map[string]bool, len(files))
	dirs := make(map[string]bool)

	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return nil, fmt.Errorf("resolving %q: %w", f, err)
		}

		targets[abs] = true

		dir := filepath.Dir(abs)
		if dirs[dir] {
			continue
		}

		if err := watcher.Add(dir); err != nil {
			return nil, fmt.Errorf("watching %q: %w", dir, err)
		}

		dirs[dir] = true
	}

	return targets, nil
}

// isRelevant filters out events that cannot change file content and
// editor scratch files. Hidden names pass, since .gmicfx.yaml is watched.
func isRelevant(event fsnotify.Event) bool {
	if event.Op == 0 {
		return false
	}

	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}

	name := filepath.Base(event.Name)

	if strings.HasSuffix(name, "~") || strings.HasSuffix(name, ".swp") || strings.HasPrefix(name, "#") {
		return false
	}

	return true
}
