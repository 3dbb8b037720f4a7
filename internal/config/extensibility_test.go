package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// ParseExtensions
// ---------------------------------------------------------------------------

func TestParseExtensions_Sources(t *testing.T) {
	data := []byte(`
sources:
  - name: stdlib
    url: https://example.com/filters.gmic.gz
    compression: gzip
  - name: local
    url: ./my-filters.gmic
    priority: 10
`)

	ext, err := ParseExtensions(data)
	require.NoError(t, err)
	require.Len(t, ext.Sources, 2)
	assert.Equal(t, "stdlib", ext.Sources[0].Name)
	assert.Equal(t, CompressionGzip, ext.Sources[0].Compression)
	assert.Equal(t, 10, ext.Sources[1].Priority)
	assert.Empty(t, ext.Sources[1].Compression)
}

func TestParseExtensions_Macros(t *testing.T) {
	data := []byte(`
macros:
  fx_soft: "blur $1; message soft"
`)

	ext, err := ParseExtensions(data)
	require.NoError(t, err)
	assert.Equal(t, "blur $1; message soft", ext.Macros["fx_soft"])
}

func TestParseExtensions_Empty(t *testing.T) {
	ext, err := ParseExtensions([]byte("log-level: info\n"))
	require.NoError(t, err)
	assert.True(t, ext.IsEmpty())
}

func TestParseExtensions_MalformedYAML(t *testing.T) {
	_, err := ParseExtensions([]byte(": bad yaml :"))
	require.Error(t, err)
}

func TestExtensions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		ext     Extensions
		wantErr string
	}{
		{
			name: "valid",
			ext:  Extensions{Sources: []SourceConfig{{Name: "a", URL: "x"}, {Name: "b.v2", URL: "y", Compression: "zstd"}}},
		},
		{
			name:    "missing name",
			ext:     Extensions{Sources: []SourceConfig{{URL: "x"}}},
			wantErr: "name is required",
		},
		{
			name:    "invalid name",
			ext:     Extensions{Sources: []SourceConfig{{Name: "../etc", URL: "x"}}},
			wantErr: "is invalid",
		},
		{
			name:    "duplicate name",
			ext:     Extensions{Sources: []SourceConfig{{Name: "a", URL: "x"}, {Name: "a", URL: "y"}}},
			wantErr: "duplicate name",
		},
		{
			name:    "missing url",
			ext:     Extensions{Sources: []SourceConfig{{Name: "a"}}},
			wantErr: "url is required",
		},
		{
			name:    "unknown compression",
			ext:     Extensions{Sources: []SourceConfig{{Name: "a", URL: "x", Compression: "brotli"}}},
			wantErr: "invalid compression",
		},
		{
			name:    "bad macro name",
			ext:     Extensions{Macros: map[string]string{"fx soft": "blur"}},
			wantErr: "invalid command name",
		},
		{
			name:    "empty macro",
			ext:     Extensions{Macros: map[string]string{"fx_soft": ""}},
			wantErr: "must not be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ext.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
