package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/geoproxy/internal/observability"
	"github.com/vyrodovalexey/geoproxy/internal/proxy"
)

// MsgInternalError is returned to clients when a handler panics.
const MsgInternalError = "internal server error"

// Recovery returns a middleware that turns panics into a 500 JSON error.
func Recovery(logger observability.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = observability.NopLogger()
	}

	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler { //nolint:errorlint // sentinel comparison by identity
				panic(rec)
			}

			logger.WithContext(c.Request.Context()).Error("panic recovered",
				observability.Any("error", rec),
				observability.String("method", c.Request.Method),
				observability.String("path", c.Request.URL.Path),
				observability.String("client_ip", c.ClientIP()),
				observability.String("stack", string(debug.Stack())),
			)

			if span := trace.SpanFromContext(c.Request.Context()); span.IsRecording() {
				span.RecordError(fmt.Errorf("panic: %v", rec))
				span.SetStatus(codes.Error, "panic")
			}

			if c.Writer.Written() {
				c.Abort()
				return
			}
			proxy.Failure(http.StatusInternalServerError, MsgInternalError).Write(c.Writer)
			c.Abort()
		}()

		c.Next()
	}
}
