package middleware

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSMaxAge is how long browsers may cache a preflight result.
const CORSMaxAge = 12 * time.Hour

// CORS returns a middleware that answers preflight requests from any
// origin for the read-only routes. Actual responses set
// Access-Control-Allow-Origin themselves.
func CORS() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins:           true,
		AllowMethods:              []string{http.MethodGet, http.MethodOptions},
		AllowHeaders:              []string{"Origin", "Accept", "Content-Type", RequestIDHeader},
		ExposeHeaders:             []string{RequestIDHeader},
		MaxAge:                    CORSMaxAge,
		OptionsResponseStatusCode: http.StatusNoContent,
	})
}
