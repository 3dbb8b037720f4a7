// Package source retrieves filter definition lists from remote or local
// sources, with automatic source-type detection, decompression and a
// per-source cache copy.
package source

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/hupe1980/gmicfx/internal/config"
)

// Type identifies how a source URL is retrieved.
type Type int

const (
	// TypeUnknown indicates the source type could not be determined.
	TypeUnknown Type = iota
	// TypeHTTP is an http:// or https:// URL.
	TypeHTTP
	// TypeFile is a file:// URL or a local path.
	TypeFile
)

// String returns a human-readable name for the source type.
func (t Type) String() string {
	switch t {
	case TypeHTTP:
		return "http"
	case TypeFile:
		return "file"
	default:
		return "unknown"
	}
}

// Descriptor identifies one source.
type Descriptor struct {
	Name        string
	URL         string
	Priority    int
	Compression string
}

// FromConfig converts configured sources, keeping their order.
func FromConfig(cfgs []config.SourceConfig) []Descriptor {
	out := make([]Descriptor, len(cfgs))
	for i, c := range cfgs {
		out[i] = Descriptor{Name: c.Name, URL: c.URL, Priority: c.Priority, Compression: c.Compression}
	}

	return out
}

// ByPriority returns ds ordered from lowest to highest priority. Equal
// priorities keep their configured order, so later entries still win.
func ByPriority(ds []Descriptor) []Descriptor {
	out := slices.Clone(ds)
	slices.SortStableFunc(out, func(a, b Descriptor) int { return a.Priority - b.Priority })

	return out
}

// Detect classifies a source URL.
func Detect(ref string) (Type, error) {
	if ref == "" {
		return TypeUnknown, fmt.Errorf("empty source url")
	}

	if u, err := url.Parse(ref); err == nil {
		switch strings.ToLower(u.Scheme) {
		case "http", "https":
			return TypeHTTP, nil
		case "file":
			return TypeFile, nil
		}
	}

	if _, err := os.Stat(ref); err == nil || strings.ContainsAny(ref, `/\`) || strings.HasSuffix(ref, ".gmic") {
		return TypeFile, nil
	}

	return TypeUnknown, fmt.Errorf("cannot determine source type for %q", ref)
}

// FailureKind classifies why a fetch failed.
type FailureKind int

// Failure kinds.
const (
	FailureTimeout FailureKind = iota + 1
	FailureEmptyContent
	FailureDecompression
	FailureWrite
	FailureHTTP
	FailureUnreachable
)

// Sentinels matched by FetchError through errors.Is.
var (
	ErrTimeout              = errors.New("timeout")
	ErrEmptyContent         = errors.New("empty content")
	ErrDecompressionFailed  = errors.New("decompression failed")
	ErrWriteFailed          = errors.New("write failed")
	ErrHTTP                 = errors.New("http error")
	ErrUnreachable          = errors.New("source unreachable")
	errUnknownFailureReason = errors.New("fetch failed")
)

func (k FailureKind) sentinel() error {
	switch k {
	case FailureTimeout:
		return ErrTimeout
	case FailureEmptyContent:
		return ErrEmptyContent
	case FailureDecompression:
		return ErrDecompressionFailed
	case FailureWrite:
		return ErrWriteFailed
	case FailureHTTP:
		return ErrHTTP
	case FailureUnreachable:
		return ErrUnreachable
	default:
		return errUnknownFailureReason
	}
}

func (k FailureKind) String() string {
	switch k {
	case FailureTimeout:
		return "timeout"
	case FailureEmptyContent:
		return "empty-content"
	case FailureDecompression:
		return "decompression-failed"
	case FailureWrite:
		return "write-failed"
	case FailureHTTP:
		return "http-error"
	case FailureUnreachable:
		return "unreachable"
	default:
		return "unknown"
	}
}

// FetchError describes a failed fetch.
type FetchError struct {
	Source string
	Kind   FailureKind
	// Status is the HTTP status code for FailureHTTP.
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	var b strings.Builder

	fmt.Fprintf(&b, "source %q: %s", e.Source, e.Kind)

	if e.Kind == FailureHTTP {
		fmt.Fprintf(&b, "(%d)", e.Status)
	}

	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}

	return b.String()
}

func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind.sentinel()}
	}

	return []error{e.Kind.sentinel(), e.Err}
}

// Outcome is the result of fetching one source. Exactly one of Content and
// Err is set.
type Outcome struct {
	Source   Descriptor
	Content  []byte
	Err      *FetchError
	Duration time.Duration
	// CachePath is where Content was saved by WriteCache, if at all.
	CachePath string
}

// OK reports whether the fetch succeeded.
func (o Outcome) OK() bool { return o.Err == nil }

func failure(d Descriptor, kind FailureKind, err error) *FetchError {
	return &FetchError{Source: d.Name, Kind: kind, Err: err}
}
