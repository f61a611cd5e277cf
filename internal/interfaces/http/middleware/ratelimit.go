package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/erp/shopledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/go-chi/httprate"
)

// RateLimit limits each client IP to limit requests per window.
// Counting is done by httprate, which also sets the X-RateLimit-* headers.
func RateLimit(limit int, window time.Duration) gin.HandlerFunc {
	return RateLimitByKey(limit, window, httprate.KeyByIP)
}

// RateLimitByKey returns a rate limiting middleware with custom key extractor
func RateLimitByKey(limit int, window time.Duration, keyFunc httprate.KeyFunc) gin.HandlerFunc {
	limiter := httprate.Limit(limit, window,
		httprate.WithKeyFuncs(keyFunc),
		httprate.WithLimitHandler(writeRateLimited),
	)

	return func(c *gin.Context) {
		passed := false
		next := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			passed = true
			c.Request = r
			c.Next()
		})
		limiter(next).ServeHTTP(c.Writer, c.Request)
		if !passed {
			c.Abort()
		}
	}
}

func writeRateLimited(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(dto.NewErrorResponseWithRequestID(
		dto.ErrCodeRateLimited,
		"Too many requests. Please try again later.",
		w.Header().Get(RequestIDHeader),
	))
}
