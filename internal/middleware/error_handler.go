package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/dyaogo/pos-superette-sub002/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// internalError is the only body a 500 ever carries. The request id lets
// support find the logged cause.
func internalError(c *gin.Context) *apierror.APIError {
	e := apierror.New("Error interno del servidor")
	e.RequestID = c.GetString(RequestIDKey)
	return e
}

// ErrorHandler answers 500 for errors handlers attached with c.Error instead
// of mapping them to a status. Every attached error is logged.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		for _, e := range c.Errors {
			log.Error().
				Err(e.Err).
				Str("request_id", c.GetString(RequestIDKey)).
				Str("operator", Operator(c)).
				Str("route", c.FullPath()).
				Str("method", c.Request.Method).
				Msg("unhandled error")
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, internalError(c))
	}
}

// Recovery turns a panic into a 500 and logs the stack.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Str("request_id", c.GetString(RequestIDKey)).
					Str("route", c.FullPath()).
					Interface("panic", r).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, internalError(c))
			}
		}()
		c.Next()
	}
}

// Logger writes one line per request: 5xx at error, 4xx at warn, the rest at
// info. Paths in skip (health checks, scrapes) are not logged when they succeed.
func Logger(skip ...string) gin.HandlerFunc {
	quiet := make(map[string]bool, len(skip))
	for _, p := range skip {
		quiet[p] = true
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		if quiet[c.Request.URL.Path] && status < http.StatusBadRequest {
			return
		}
		var ev *zerolog.Event
		switch {
		case status >= http.StatusInternalServerError:
			ev = log.Error()
		case status >= http.StatusBadRequest:
			ev = log.Warn()
		default:
			ev = log.Info()
		}
		ev.
			Str("request_id", c.GetString(RequestIDKey)).
			Str("operator", Operator(c)).
			Str("method", c.Request.Method).
			Str("route", c.FullPath()).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}
