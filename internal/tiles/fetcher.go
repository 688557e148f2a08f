package tiles

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/vyrodovalexey/geoproxy/internal/observability"
	"github.com/vyrodovalexey/geoproxy/internal/proxy"
)

// Client-visible plain-text messages.
const (
	MsgTileNotFound = "Tile not found"
	MsgProxyError   = "Proxy error"
)

// Sentinel errors for tile fetches.
var (
	// ErrTileNotFound indicates a non-2xx upstream tile response.
	ErrTileNotFound = errors.New("tile not found")

	// ErrTileFetchFailed indicates a network, read or allow-list failure.
	ErrTileFetchFailed = errors.New("tile fetch failed")
)

// Upstream performs allow-list gated upstream GETs.
type Upstream interface {
	Fetch(ctx context.Context, req proxy.Request) (*proxy.Response, error)
}

// Tile is a fetched tile image.
type Tile struct {
	Data         []byte
	ContentType  string
	CacheControl string
}

// Fetcher retrieves tiles through an Upstream.
type Fetcher struct {
	upstream Upstream
	logger   observability.Logger
}

// FetcherOption is a functional option for configuring the fetcher.
type FetcherOption func(*Fetcher)

// WithFetcherLogger sets the logger for the fetcher.
func WithFetcherLogger(logger observability.Logger) FetcherOption {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// NewFetcher creates a new tile fetcher.
func NewFetcher(upstream Upstream, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		upstream: upstream,
		logger:   observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch retrieves tile c from p. The error wraps ErrTileNotFound for
// non-2xx upstream statuses and ErrTileFetchFailed for everything else.
func (f *Fetcher) Fetch(ctx context.Context, p Provider, c Coord) (*Tile, error) {
	logger := f.logger.WithContext(ctx).With(
		observability.String("provider", p.Name),
		observability.String("tile", c.String()),
	)

	resp, err := f.upstream.Fetch(ctx, proxy.Request{
		APIKey: p.APIKey,
		Path:   p.Path(c),
	})
	if err != nil {
		logger.Error("tile proxy error", observability.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrTileFetchFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Debug("upstream tile not available", observability.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("%w: upstream status %d", ErrTileNotFound, resp.StatusCode)
	}

	return &Tile{
		Data:         resp.Body,
		ContentType:  contentType(p.ContentType, resp.Body),
		CacheControl: resp.Entry.CacheControl(),
	}, nil
}

// contentType prefers the sniffed type when the body is recognizably an
// image of a different kind than the provider advertises.
func contentType(fallback string, data []byte) string {
	detected := mimetype.Detect(data).String()
	if strings.HasPrefix(detected, "image/") {
		return detected
	}
	return fallback
}
