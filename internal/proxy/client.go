// Package proxy forwards requests to allow-listed upstream APIs. Fetch
// performs a single gated upstream GET; Dispatch wraps a JSON upstream
// response in the client envelope.
package proxy

import (
	"context"
	"errors"
	"maps"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/geoproxy/internal/allowlist"
	"github.com/vyrodovalexey/geoproxy/internal/observability"
)

const tracerName = "github.com/vyrodovalexey/geoproxy/internal/proxy"

// unknownAPIKey is the metric label for rejected keys.
const unknownAPIKey = "unknown"

// Request describes one upstream call. It is built per inbound request.
type Request struct {
	// APIKey selects the allow-list entry.
	APIKey string
	// Path is resolved against the entry's base URL.
	Path string
	// Query is set on the outbound URL, replacing values of the same name
	// embedded in Path.
	Query map[string]string
	// Headers are applied after the entry's fixed headers.
	Headers map[string]string
}

// Response is a fully read upstream response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	URL        string
	Entry      allowlist.Entry
}

// Client performs allow-list gated upstream requests.
type Client struct {
	table           *allowlist.Table
	httpClient      *http.Client
	logger          observability.Logger
	tracer          trace.Tracer
	metrics         *upstreamMetrics
	registerer      prometheus.Registerer
	userAgent       string
	maxBodySize     int64
	propagateStatus bool
}

// Option is a functional option for configuring the client.
type Option func(*Client)

// WithLogger sets the logger for the client.
func WithLogger(logger observability.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets the HTTP client used for upstream requests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTracerProvider sets the provider used for upstream client spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		c.tracer = tp.Tracer(tracerName)
	}
}

// WithMetricsRegisterer registers the upstream metrics with registerer.
func WithMetricsRegisterer(registerer prometheus.Registerer) Option {
	return func(c *Client) {
		c.registerer = registerer
	}
}

// WithUserAgent sets the User-Agent sent when the allow-list entry does
// not provide one.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithMaxBodySize bounds the decoded upstream body size.
func WithMaxBodySize(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBodySize = n
		}
	}
}

// WithPropagateUpstreamStatus makes Dispatch forward non-2xx upstream
// status codes instead of answering 200.
func WithPropagateUpstreamStatus(enabled bool) Option {
	return func(c *Client) {
		c.propagateStatus = enabled
	}
}

// NewClient creates a new upstream client gated by table.
func NewClient(table *allowlist.Table, opts ...Option) *Client {
	c := &Client{
		table:       table,
		httpClient:  http.DefaultClient,
		logger:      observability.NopLogger(),
		tracer:      otel.GetTracerProvider().Tracer(tracerName),
		maxBodySize: DefaultMaxBodySize,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.metrics = newUpstreamMetrics(c.registerer)

	return c
}

// NewHTTPClient builds the shared outbound client. A zero timeout means
// requests are bounded only by their context.
func NewHTTPClient(timeout time.Duration, maxIdleConns, maxIdleConnsPerHost int, idleConnTimeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConns = maxIdleConns
	transport.MaxIdleConnsPerHost = maxIdleConnsPerHost
	transport.IdleConnTimeout = idleConnTimeout
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// Fetch issues one GET for req and reads the whole body. Keys missing from
// the allow-list fail before any network activity. A non-2xx status is not
// an error; callers decide how to treat it.
func (c *Client) Fetch(ctx context.Context, req Request) (*Response, error) {
	entry, err := c.table.Lookup(req.APIKey)
	if err != nil {
		c.metrics.record(unknownAPIKey, OutcomeForbidden, 0)
		return nil, newProxyError("lookup", req.APIKey, "", "api key rejected", err)
	}

	target, err := buildURL(entry.ResolveBase(), req.Path, req.Query)
	if err != nil {
		return nil, newProxyError("build_url", req.APIKey, "", "invalid target URL", err)
	}

	ctx, span := c.tracer.Start(ctx, "upstream "+req.APIKey,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("geoproxy.api_key", req.APIKey),
			attribute.String("http.method", http.MethodGet),
			attribute.String("http.url", target.String()),
			attribute.String("net.peer.name", target.Hostname()),
		),
	)
	defer span.End()

	start := time.Now()
	resp, err := c.do(ctx, target, entry, req.Headers)
	duration := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.metrics.record(req.APIKey, OutcomeError, duration)
		return nil, newProxyError("fetch", req.APIKey, target.String(), "upstream request failed", err)
	}

	span.SetAttributes(
		attribute.Int("http.status_code", resp.StatusCode),
		attribute.Int("http.response_content_length", len(resp.Body)),
	)

	outcome := OutcomeOK
	if !isSuccess(resp.StatusCode) {
		outcome = OutcomeNon2xx
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
	}
	c.metrics.record(req.APIKey, outcome, duration)

	resp.Entry = entry
	return resp, nil
}

func (c *Client) do(ctx context.Context, target *url.URL, entry allowlist.Entry, extra map[string]string) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), http.NoBody)
	if err != nil {
		return nil, errors.Join(ErrInvalidTarget, err)
	}

	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	for k, v := range entry.Headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range extra {
		httpReq.Header.Set(k, v)
	}
	httpReq.Header.Set("Accept-Encoding", acceptEncoding)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Join(ErrUpstreamFailed, err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	header := maps.Clone(httpResp.Header)
	if header == nil {
		header = make(http.Header)
	}
	httpResp.Header = header

	body, err := readBody(httpResp, c.maxBodySize)
	if err != nil {
		return nil, err
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     header,
		Body:       body,
		URL:        target.String(),
	}, nil
}

// buildURL resolves path against base and sets query on the result.
func buildURL(base, path string, query map[string]string) (*url.URL, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, errors.Join(ErrInvalidTarget, err)
	}
	ref, err := url.Parse(path)
	if err != nil {
		return nil, errors.Join(ErrInvalidTarget, err)
	}

	target := baseURL.ResolveReference(ref)
	if len(query) > 0 {
		values := target.Query()
		for k, v := range query {
			values.Set(k, v)
		}
		target.RawQuery = values.Encode()
	}
	return target, nil
}

func isSuccess(status int) bool {
	return status >= http.StatusOK && status < http.StatusMultipleChoices
}
