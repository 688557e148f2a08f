package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vyrodovalexey/geoproxy/internal/allowlist"
	"github.com/vyrodovalexey/geoproxy/internal/observability"
)

// Dispatch fetches req and wraps the JSON body in an envelope.
//
// An unknown key yields 403 without contacting any upstream. Transport
// failures, unreadable bodies and non-JSON bodies all yield a 500 with
// MsgProxyFailed; the cause is only logged. A non-2xx upstream status is
// forwarded as a 200 success unless status propagation is enabled.
func (c *Client) Dispatch(ctx context.Context, req Request) *Envelope {
	logger := c.logger.WithContext(ctx).With(observability.String("api_key", req.APIKey))

	resp, err := c.Fetch(ctx, req)
	if err != nil {
		var forbidden *allowlist.ForbiddenError
		if errors.As(err, &forbidden) {
			logger.Warn("rejected request for api key outside the allow-list")
			return Failure(http.StatusForbidden, forbidden.Error())
		}
		logger.Error("upstream request failed", observability.Error(err))
		return Failure(http.StatusInternalServerError, MsgProxyFailed)
	}

	if !json.Valid(resp.Body) {
		err := newProxyError("decode", req.APIKey, resp.URL, "upstream body rejected", ErrInvalidJSON)
		logger.Error("upstream returned a non-JSON body",
			observability.Error(err),
			observability.Int("status", resp.StatusCode),
			observability.String("content_type", resp.Header.Get("Content-Type")),
		)
		return Failure(http.StatusInternalServerError, MsgProxyFailed)
	}

	if !isSuccess(resp.StatusCode) {
		logger.Warn("upstream returned non-success status",
			observability.Int("status", resp.StatusCode),
			observability.String("target", resp.URL),
			observability.Bool("propagated", c.propagateStatus),
		)
		if c.propagateStatus {
			return &Envelope{Status: resp.StatusCode, Body: resp.Body}
		}
	}

	return Success(resp.Body, resp.Entry.CacheControl())
}
