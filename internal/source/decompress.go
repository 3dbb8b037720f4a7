package source

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"

	"github.com/hupe1980/gmicfx/internal/config"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// sniff guesses the compression of data from its header.
func sniff(data []byte) string {
	switch {
	case bytes.HasPrefix(data, gzipMagic):
		return config.CompressionGzip
	case bytes.HasPrefix(data, zstdMagic):
		return config.CompressionZstd
	case len(data) >= 2 && data[0]&0x0f == 8 && (uint16(data[0])<<8|uint16(data[1]))%31 == 0:
		return config.CompressionZlib
	default:
		return config.CompressionNone
	}
}

// decompress inflates data according to method. Empty method and "auto"
// sniff the header. The output is capped at limit bytes.
func decompress(data []byte, method string, limit int64) ([]byte, error) {
	if method == "" || method == config.CompressionAuto {
		method = sniff(data)
	}

	var (
		r   io.Reader
		err error
	)

	switch method {
	case config.CompressionNone:
		return data, nil
	case config.CompressionGzip:
		var zr *gzip.Reader

		zr, err = gzip.NewReader(bytes.NewReader(data))
		if err == nil {
			defer zr.Close()
			r = zr
		}
	case config.CompressionZlib:
		var zr io.ReadCloser

		zr, err = zlib.NewReader(bytes.NewReader(data))
		if err == nil {
			defer zr.Close()
			r = zr
		}
	case config.CompressionZstd:
		var zr *zstd.Decoder

		zr, err = zstd.NewReader(bytes.NewReader(data), zstd.WithDecoderMaxMemory(uint64(limit)))
		if err == nil {
			defer zr.Close()
			r = zr
		}
	default:
		return nil, fmt.Errorf("unsupported compression %q", method)
	}

	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}

	out, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}

	if int64(len(out)) > limit {
		return nil, fmt.Errorf("%s: decompressed content exceeds maximum of %d bytes", method, limit)
	}

	return out, nil
}
