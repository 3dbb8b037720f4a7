package config

import (
	"fmt"
	"regexp"

	sigsyaml "sigs.k8s.io/yaml"
)

// Supported source compression values. "auto" sniffs the content.
const (
	CompressionNone = "none"
	CompressionAuto = "auto"
	CompressionGzip = "gzip"
	CompressionZlib = "zlib"
	CompressionZstd = "zstd"
)

// Extensions holds the structured sections of the config file
// (.gmicfx.yaml) that are not flat viper keys.
type Extensions struct {
	// Sources are the filter definition sources, merged by priority.
	Sources []SourceConfig `json:"sources,omitempty"`

	// Macros map command names to command text run by the builtin
	// interpreter, e.g. fx_soft: "blur $1".
	Macros map[string]string `json:"macros,omitempty"`
}

// SourceConfig declares one filter definition source.
type SourceConfig struct {
	// Name identifies the source in reports and the cache.
	Name string `json:"name"`

	// URL is an http(s) URL, a file:// URL or a local path.
	URL string `json:"url"`

	// Priority orders the merge; higher wins for the same filter path.
	// Sources with equal priority keep their configured order.
	Priority int `json:"priority,omitempty"`

	// Compression is none, auto, gzip, zlib or zstd. Empty means auto.
	Compression string `json:"compression,omitempty"`
}

// ParseExtensions parses the sources and macros sections from raw config
// file bytes.
func ParseExtensions(data []byte) (*Extensions, error) {
	var raw struct {
		Sources []SourceConfig    `json:"sources,omitempty"`
		Macros  map[string]string `json:"macros,omitempty"`
	}

	if err := sigsyaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config extensions: %w", err)
	}

	ext := &Extensions{
		Sources: raw.Sources,
		Macros:  raw.Macros,
	}

	if err := ext.Validate(); err != nil {
		return nil, err
	}

	return ext, nil
}

// sourceNamePattern validates source names, which are also cache file names.
var sourceNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// macroNamePattern validates macro names.
var macroNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks the extensions for correctness.
func (e *Extensions) Validate() error {
	seen := make(map[string]bool, len(e.Sources))

	for i, s := range e.Sources {
		if s.Name == "" {
			return fmt.Errorf("sources[%d]: name is required", i)
		}

		if !sourceNamePattern.MatchString(s.Name) {
			return fmt.Errorf("sources[%d]: name %q is invalid (must match %s)", i, s.Name, sourceNamePattern.String())
		}

		if seen[s.Name] {
			return fmt.Errorf("sources[%d]: duplicate name %q", i, s.Name)
		}

		seen[s.Name] = true

		if s.URL == "" {
			return fmt.Errorf("sources[%d] (%s): url is required", i, s.Name)
		}

		switch s.Compression {
		case "", CompressionNone, CompressionAuto, CompressionGzip, CompressionZlib, CompressionZstd:
			// valid
		default:
			return fmt.Errorf("sources[%d] (%s): invalid compression %q (must be none, auto, gzip, zlib, or zstd)", i, s.Name, s.Compression)
		}
	}

	for name, body := range e.Macros {
		if !macroNamePattern.MatchString(name) {
			return fmt.Errorf("macros[%s]: invalid command name", name)
		}

		if body == "" {
			return fmt.Errorf("macros[%s]: body must not be empty", name)
		}
	}

	return nil
}

// IsEmpty returns true if no sources or macros are configured.
func (e *Extensions) IsEmpty() bool {
	return len(e.Sources) == 0 && len(e.Macros) == 0
}
