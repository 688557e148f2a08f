package proxy

import (
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
)

// acceptEncoding is advertised on every upstream request. Bodies are
// decoded here rather than by the transport so brotli is covered too.
const acceptEncoding = "br, gzip"

// DefaultMaxBodySize bounds how much of an upstream body is buffered.
const DefaultMaxBodySize int64 = 32 << 20

// readBody reads and decodes resp.Body up to limit decoded bytes and
// strips the encoding headers from resp.Header.
func readBody(resp *http.Response, limit int64) ([]byte, error) {
	var reader io.Reader = resp.Body

	encoding := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	switch encoding {
	case "", "identity":
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "gzip", "x-gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: gzip: %w", ErrBodyRead, err)
		}
		defer gz.Close()
		reader = gz
	default:
		return nil, fmt.Errorf("%w: unsupported content encoding %q", ErrBodyRead, encoding)
	}

	body, err := io.ReadAll(io.LimitReader(reader, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBodyRead, err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w: exceeds %d bytes", ErrBodyTooLarge, limit)
	}

	if encoding != "" {
		resp.Header.Del("Content-Encoding")
		resp.Header.Del("Content-Length")
	}
	return body, nil
}
