package middleware

import "github.com/gin-gonic/gin"

// Security header values.
const (
	XContentTypeOptions       = "nosniff"
	XFrameOptions             = "DENY"
	ReferrerPolicy            = "no-referrer"
	CrossOriginResourcePolicy = "cross-origin"
)

// SecurityHeaders returns a middleware that adds response hardening
// headers. Cross-Origin-Resource-Policy stays cross-origin so map clients
// on other origins can embed tiles.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", XContentTypeOptions)
		h.Set("X-Frame-Options", XFrameOptions)
		h.Set("Referrer-Policy", ReferrerPolicy)
		h.Set("Cross-Origin-Resource-Policy", CrossOriginResourcePolicy)
		c.Next()
	}
}
