package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/geoproxy/internal/observability"
)

// Metrics returns a middleware that records request metrics. Requests are
// labelled by route pattern so label cardinality stays bounded.
func Metrics(m *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.IncActive()
		defer m.DecActive()

		c.Next()

		m.RecordRequest(
			c.Request.Method,
			routeLabel(c),
			c.Writer.Status(),
			time.Since(start),
			c.Writer.Size(),
		)
	}
}
