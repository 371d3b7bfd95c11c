package server

import (
	"context"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/apimgr/weather-probe/src/nws"
	"github.com/apimgr/weather-probe/src/weather"
)

// wantsText reports whether the client asked for the plain-text rendering
func wantsText(c *gin.Context) bool {
	return c.Query("format") == "text"
}

// handleForecast handles GET /api/v1/forecast?lat=&lon=
func (s *Server) handleForecast(c *gin.Context) {
	lat, latErr := strconv.ParseFloat(c.Query("lat"), 64)
	lon, lonErr := strconv.ParseFloat(c.Query("lon"), 64)
	if latErr != nil || lonErr != nil {
		s.respondError(c, http.StatusBadRequest, "lat and lon query parameters are required")
		return
	}

	if wantsText(c) {
		text, err := s.weather.GetForecast(c.Request.Context(), lat, lon)
		if err != nil {
			s.respondError(c, statusFor(err), err.Error())
			return
		}
		c.String(http.StatusOK, text+"\n")
		return
	}

	report, err := s.weather.Forecast(c.Request.Context(), lat, lon)
	if err != nil {
		s.respondError(c, statusFor(err), err.Error())
		return
	}
	c.JSON(http.StatusOK, report)
}

// handleAlerts handles GET /api/v1/alerts/:area
func (s *Server) handleAlerts(c *gin.Context) {
	area := c.Param("area")

	if wantsText(c) {
		text, err := s.weather.GetAlerts(c.Request.Context(), area)
		if err != nil {
			s.respondError(c, statusFor(err), err.Error())
			return
		}
		c.String(http.StatusOK, text+"\n")
		return
	}

	report, err := s.weather.Alerts(c.Request.Context(), area)
	if err != nil {
		s.respondError(c, statusFor(err), err.Error())
		return
	}
	if report.Alerts == nil {
		s.respondError(c, http.StatusBadGateway, "alerts response for "+report.Area+" has no features")
		return
	}
	c.JSON(http.StatusOK, report)
}

// handleVersion handles GET /api/v1/version
func (s *Server) handleVersion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version":    s.config.Version,
		"commit":     s.config.Commit,
		"build_date": s.config.BuildDate,
		"go_version": runtime.Version(),
		"upstream":   s.config.Upstream,
	})
}

// handleHealth handles GET /healthz. It does not call upstream.
func (s *Server) handleHealth(c *gin.Context) {
	if wantsText(c) {
		c.String(http.StatusOK, "ok\n")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}

// respondError writes an error in the requested format
func (s *Server) respondError(c *gin.Context, status int, message string) {
	if status >= http.StatusInternalServerError {
		s.logger.Warn("%s %s: %d %s", GetRequestID(c), c.Request.URL.Path, status, message)
	}
	if wantsText(c) {
		c.String(status, message+"\n")
		return
	}
	c.JSON(status, gin.H{
		"error":      http.StatusText(status),
		"message":    message,
		"request_id": GetRequestID(c),
	})
}

// statusFor maps weather and NWS errors to HTTP status codes
func statusFor(err error) int {
	var statusErr *nws.StatusError
	switch {
	case errors.Is(err, weather.ErrInvalidCoordinates), errors.Is(err, weather.ErrEmptyArea):
		return http.StatusBadRequest
	case nws.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusBadRequest:
		// NWS rejected the input, e.g. an unknown area code
		return http.StatusBadRequest
	case errors.Is(err, weather.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
