// Attachments are user uploaded bytes, so their routes get a sandboxing
// Content-Security-Policy on top of the usual hardening headers.

package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// exposedHeaders are readable by browser clients across origins.
var exposedHeaders = []string{"X-Request-ID", "ETag", "Idempotency-Replayed", "Retry-After"}

// attachmentCSP blocks scripts, plugins and framing for downloaded files.
const attachmentCSP = "default-src 'none'; sandbox"

// SecurityOptions configures HTTP security headers emitted by SecurityHeaders.
type SecurityOptions struct {
	EnableHSTS   bool          // set true only when traffic is HTTPS end-to-end
	HSTSMaxAge   time.Duration // <= 0 means 180 days
	NoStore      bool          // add Cache-Control: no-store
	EnablePolicy bool          // include Permissions-Policy, etc.

	// SandboxRoutes are route templates that serve untrusted content
	// (attachment downloads) and get a sandboxing CSP.
	SandboxRoutes []string
}

// SecurityHeaders returns a Gin middleware that adds conservative HTTP
// security headers to each response.
//
//   - Always: X-Content-Type-Options: nosniff, X-Frame-Options: DENY,
//     Referrer-Policy: no-referrer, Cross-Origin-Resource-Policy: same-site,
//     and Access-Control-Expose-Headers listing the API's response headers.
//   - EnablePolicy: Permissions-Policy and X-Permitted-Cross-Domain-Policies.
//   - NoStore: Cache-Control: no-store, Pragma, Expires. Routes relying on
//     ETag revalidation should leave this off.
//   - EnableHSTS: Strict-Transport-Security, only on HTTPS requests.
//   - SandboxRoutes: Content-Security-Policy: default-src 'none'; sandbox.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := int(opt.HSTSMaxAge.Seconds())
	if maxAge <= 0 {
		maxAge = int((180 * 24 * time.Hour).Seconds())
	}
	hsts := "max-age=" + strconv.Itoa(maxAge) + "; includeSubDomains; preload"
	sandbox := make(map[string]struct{}, len(opt.SandboxRoutes))
	for _, r := range opt.SandboxRoutes {
		sandbox[r] = struct{}{}
	}

	return func(c *gin.Context) {
		h := c.Writer.Header()

		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cross-Origin-Resource-Policy", "same-site")

		if opt.EnablePolicy {
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
		}
		if opt.NoStore {
			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")
			h.Set("Expires", "0")
		}
		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}
		if _, ok := sandbox[c.FullPath()]; ok {
			h.Set("Content-Security-Policy", attachmentCSP)
		}

		h.Set("Access-Control-Expose-Headers", mergeHeaderList(h.Get("Access-Control-Expose-Headers"), exposedHeaders))

		c.Next()
	}
}

// mergeHeaderList appends each of add to the comma-separated list cur unless
// it is already present (case-insensitive).
func mergeHeaderList(cur string, add []string) string {
	have := map[string]struct{}{}
	var out []string
	for _, p := range strings.Split(cur, ",") {
		if p = strings.TrimSpace(p); p != "" {
			have[strings.ToLower(p)] = struct{}{}
			out = append(out, p)
		}
	}
	for _, a := range add {
		if _, ok := have[strings.ToLower(a)]; !ok {
			out = append(out, a)
		}
	}
	return strings.Join(out, ", ")
}

// isHTTPS reports whether the incoming request used HTTPS either directly
// (r.TLS != nil) or via a reverse proxy that set X-Forwarded-Proto: https.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
