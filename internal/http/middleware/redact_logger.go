package middleware

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// RedactOptions configures RedactingLogger.
type RedactOptions struct {
	// MaskHeaders lists extra headers (case-insensitive) replaced by "[REDACTED]".
	MaskHeaders []string
	// SkipRoutes lists route templates that are not logged at all.
	SkipRoutes []string
}

// UUIDs go first so the phone pattern cannot eat their digit groups.
var piiPatterns = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-5][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`), "[REDACTED:id]"},
	{regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`), "[REDACTED:email]"},
	{regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`), "[REDACTED:phone]"},
}

func redactPII(s string) string {
	for _, p := range piiPatterns {
		if s == "" {
			break
		}
		s = p.re.ReplaceAllString(s, p.repl)
	}
	return s
}

var defaultMaskedHeaders = []string{"authorization", "proxy-authorization", "cookie", "set-cookie"}

// RedactingLogger is the access logger complaintd installs outside debug
// mode. Complaint traffic carries personal data (emails and phone numbers in
// search queries, locations, free text), so it never logs bodies, scrubs
// emails, phone numbers and UUIDs from the query, unmatched paths and header
// values, and masks credential headers. Route parameters are not logged.
//
// Like Logger it stores a request-scoped logger for LoggerFrom, carrying only
// the request id, method and route template.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	masked := make(map[string]struct{}, len(defaultMaskedHeaders)+len(opts.MaskHeaders))
	for _, h := range append(defaultMaskedHeaders, opts.MaskHeaders...) {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			masked[h] = struct{}{}
		}
	}
	skip := make(map[string]struct{}, len(opts.SkipRoutes))
	for _, r := range opts.SkipRoutes {
		skip[r] = struct{}{}
	}

	return func(c *gin.Context) {
		route := c.FullPath()
		if _, ok := skip[route]; ok && route != "" {
			c.Next()
			return
		}
		if route == "" {
			route = redactPII(c.Request.URL.Path)
		}
		start := time.Now()
		headers := scrubHeaders(c, masked)

		reqID := c.Writer.Header().Get(requestIDHeader)
		if reqID == "" {
			reqID = redactPII(c.GetHeader(requestIDHeader))
		}
		l := log.With().
			Str("request_id", reqID).
			Str("method", c.Request.Method).
			Str("path", route).
			Logger()
		c.Set("logger", &l)

		c.Next()

		status := c.Writer.Status()
		l.WithLevel(accessLevel(status, false)).
			Str("query", redactPII(c.Request.URL.RawQuery)).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Bool("idempotent_replay", IsReplay(c)).
			Dur("latency", time.Since(start)).
			Interface("headers", headers).
			Msg("http_request")
	}
}

func scrubHeaders(c *gin.Context, masked map[string]struct{}) map[string]string {
	out := make(map[string]string, len(c.Request.Header))
	for k, vv := range c.Request.Header {
		if _, ok := masked[strings.ToLower(k)]; ok {
			out[k] = "[REDACTED]"
			continue
		}
		out[k] = redactPII(strings.Join(vv, ", "))
	}
	return out
}
