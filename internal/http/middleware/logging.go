// Package middleware contains the Gin middleware of the complaint desk API:
// request correlation, access logging, panic recovery, security headers,
// idempotency, rate limiting and metrics.
//
// Recommended order: RequestID, Logger (or RedactingLogger), Recovery, then
// the rest.
package middleware

import (
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	requestIDKey    = "requestID"
	requestIDHeader = "X-Request-ID"

	// maxRequestIDLen bounds an inbound X-Request-ID; longer ids are replaced.
	maxRequestIDLen   = 128
	maxQueryLogLength = 2048
)

// RequestID reuses the caller's X-Request-ID when it is a sane token
// (printable ASCII without spaces, at most 128 bytes) and mints a UUID
// otherwise. The id is echoed in the response and stored on the context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if !validRequestID(rid) {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

func validRequestID(s string) bool {
	if s == "" || len(s) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] <= ' ' || s[i] > '~' {
			return false
		}
	}
	return true
}

// Logger writes one access log line per request and stores a request-scoped
// logger (request id, route, route parameters) for LoggerFrom. The line is
// logged at error for 5xx or when handlers recorded gin errors, warn for
// 4xx, info otherwise.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		route := routeOf(c)

		lc := log.With().
			Str("request_id", c.GetString(requestIDKey)).
			Str("method", c.Request.Method).
			Str("path", route).
			Str("remote_ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent()).
			Str("query", truncate(c.Request.URL.RawQuery, maxQueryLogLength)).
			Int64("bytes_in", c.Request.ContentLength) // -1 when chunked
		for _, p := range c.Params {
			lc = lc.Str(routeParamField(route, p.Key), p.Value)
		}
		l := lc.Logger()
		c.Set("logger", &l)

		c.Next()

		status := c.Writer.Status()
		ev := l.WithLevel(accessLevel(status, len(c.Errors) > 0)).
			Str("user_id", UserID(c)). // auth runs later in the chain
			Int("status", status).
			Dur("latency", time.Since(start)).
			Int("bytes_out", c.Writer.Size())
		if IsReplay(c) {
			ev = ev.Bool("idempotent_replay", true)
		}
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", c.Errors.String())
		}
		ev.Msg("request")
	}
}

func accessLevel(status int, handlerErrors bool) zerolog.Level {
	switch {
	case handlerErrors || status >= http.StatusInternalServerError:
		return zerolog.ErrorLevel
	case status >= http.StatusBadRequest:
		return zerolog.WarnLevel
	}
	return zerolog.InfoLevel
}

// routeOf is the matched route template, or the raw path for 404s.
func routeOf(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return c.Request.URL.Path
}

// Recovery turns a panic into a logged stack trace and a 500 envelope. When
// the handler already wrote a response only the status is forced.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			LoggerFrom(c).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("panic recovered")
			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			abortJSON(c, http.StatusInternalServerError, "internal_error", "internal server error")
		}()
		c.Next()
	}
}

// abortJSON writes the API error envelope {request_id, code, message}.
func abortJSON(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       code,
		"message":    msg,
	})
}

// LoggerFrom returns the request-scoped logger with the caller attached, or
// the global logger when Logger is not installed. Never nil.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	l := log.Logger
	if v, ok := c.Get("logger"); ok {
		if lg, ok := v.(*zerolog.Logger); ok && lg != nil {
			l = lg.With().Str("user_id", UserID(c)).Logger()
		}
	}
	return &l
}

// routeParamField names the log field for a route parameter: ":id" becomes
// complaint_id or conversation_id depending on the route, camelCase
// parameters become snake_case ("attachmentId" -> attachment_id).
func routeParamField(route, key string) string {
	if key == "id" {
		switch {
		case strings.Contains(route, "/complaints"):
			return "complaint_id"
		case strings.Contains(route, "/conversation"):
			return "conversation_id"
		}
		return "param_id"
	}
	var b strings.Builder
	for i, r := range key {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// truncate cuts s to max bytes plus an ellipsis; max <= 0 disables it.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
