package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"

	"github.com/apimgr/weather-probe/src/logging"
	"github.com/apimgr/weather-probe/src/metrics"
)

const (
	// Context key for storing request ID
	RequestIDKey = "request_id"

	HeaderXRequestID     = "X-Request-ID"
	HeaderXCorrelationID = "X-Correlation-ID"
)

// RequestID reuses an incoming X-Request-ID or X-Correlation-ID, or generates
// a UUID v4, and echoes it in the response
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderXRequestID)
		if requestID == "" {
			requestID = c.GetHeader(HeaderXCorrelationID)
		}
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set(RequestIDKey, requestID)
		c.Header(HeaderXRequestID, requestID)
		c.Next()
	}
}

// GetRequestID retrieves the request ID from the context
func GetRequestID(c *gin.Context) string {
	if id, exists := c.Get(RequestIDKey); exists {
		if requestID, ok := id.(string); ok {
			return requestID
		}
	}
	return ""
}

// AccessLogger logs every request in combined log format
func AccessLogger(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		logger.Access(
			c.ClientIP(),
			c.Request.Method,
			c.Request.URL.RequestURI(),
			c.Request.Proto,
			c.Writer.Status(),
			int64(c.Writer.Size()),
			c.Request.Referer(),
			c.Request.UserAgent(),
		)

		// Upstream calls are bounded by the client timeout, anything slower is worth a look
		if duration > 5*time.Second {
			logger.Warn("slow request %s: %s %s took %v", GetRequestID(c), c.Request.Method, c.Request.URL.Path, duration)
		}
	}
}

// Metrics records HTTP request counts and latency. Paths are labeled by route
// template so /api/v1/alerts/TX and /api/v1/alerts/CA share a series.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		metrics.HTTPActiveRequests.Inc()
		start := time.Now()

		c.Next()

		metrics.HTTPActiveRequests.Dec()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// RateLimit applies a per-IP limit of requests per window using httprate.
// httprate writes the X-RateLimit-* headers; a limited request is answered
// with 429 and never reaches the handler.
func RateLimit(requests int, window time.Duration) gin.HandlerFunc {
	limiter := httprate.NewRateLimiter(
		requests,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(gin.H{
				"error":       "Rate limit exceeded",
				"message":     "Too many requests. Please try again later.",
				"retry_after": int(window.Seconds()),
			})
		}),
	)

	return func(c *gin.Context) {
		allowed := false
		limiter.Handler(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			allowed = true
		})).ServeHTTP(c.Writer, c.Request)

		if !allowed {
			c.Abort()
			return
		}
		c.Next()
	}
}
