package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/gmicfx/internal/filter"
)

// cacheFormatVersion is bumped whenever the on-disk layout changes.
const cacheFormatVersion = 1

// cacheFile is the persisted form of a snapshot: one definition list per
// origin, in the same text format the sources use.
type cacheFile struct {
	Version int           `yaml:"version"`
	SavedAt time.Time     `yaml:"savedAt"`
	Sources []cacheSource `yaml:"sources"`
}

type cacheSource struct {
	Name        string `yaml:"name"`
	Definitions string `yaml:"definitions"`
}

// Save writes s to path atomically: the data goes to a temporary file in
// the same directory which is then renamed over path.
func Save(path string, s *Snapshot) error {
	cf := cacheFile{
		Version: cacheFormatVersion,
		SavedAt: time.Now().UTC(),
	}

	for _, origin := range s.Origins() {
		cf.Sources = append(cf.Sources, cacheSource{
			Name:        origin,
			Definitions: filter.Render(s.FromOrigin(origin)),
		})
	}

	data, err := yaml.Marshal(&cf)
	if err != nil {
		return fmt.Errorf("marshaling catalog cache: %w", err)
	}

	return WriteFileAtomic(path, data, 0o644)
}

// LoadFile reads a snapshot saved by Save. A missing file yields an empty
// snapshot and no error.
func LoadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path) //nolint:gosec // cache path comes from configuration
	if errors.Is(err, os.ErrNotExist) {
		return Empty(), nil
	}

	if err != nil {
		return nil, fmt.Errorf("reading catalog cache %q: %w", path, err)
	}

	var cf cacheFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("parsing catalog cache %q: %w", path, err)
	}

	if cf.Version != cacheFormatVersion {
		return nil, fmt.Errorf("catalog cache %q has format version %d, want %d", path, cf.Version, cacheFormatVersion)
	}

	var defs []*filter.Definition

	for _, src := range cf.Sources {
		res, err := filter.Parse(src.Name, []byte(src.Definitions), filter.ParseOptions{})
		if err != nil {
			return nil, fmt.Errorf("catalog cache %q: %w", path, err)
		}

		defs = append(defs, res.Definitions...)
	}

	return New(defs), nil
}

// WriteFileAtomic writes data to a temporary sibling of path and renames it
// into place, so readers see either the old or the new content.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temporary file in %s: %w", dir, err)
	}

	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing %s: %w", tmpName, err)
	}

	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("syncing %s: %w", tmpName, err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmpName, err)
	}

	if err := os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("setting permissions on %s: %w", tmpName, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("renaming %s to %s: %w", tmpName, path, err)
	}

	return nil
}
