// Idempotency support for complaint submission and other unsafe requests:
// the validator checks the Idempotency-Key header, asks a pluggable lookup
// whether the same (user, route, key) already produced a resource, and marks
// the request so handlers can serve a replay. Persistence stays outside this
// package; the router adapts repo functions to IdempotencyLookup.

package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey is the request header that carries the client's key.
const HeaderIdempotencyKey = "Idempotency-Key"

// HeaderUserID identifies the caller when bearer authentication is disabled.
const HeaderUserID = "X-User-ID"

// DefaultUserID is used when neither a token nor X-User-ID identify the caller.
const DefaultUserID = "demo-user"

const (
	ctxKeyIdemKey      = "idem.key"
	ctxKeyIdemReplay   = "idem.replay"   // bool
	ctxKeyIdemResource = "idem.resource" // string: id stored for the key
	ctxKeyRateBypass   = "rate.bypass"   // bool
)

// UserID resolves the caller identity: the "userID" context value set by the
// auth middleware, then the X-User-ID header, then DefaultUserID.
func UserID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if h := c.GetHeader(HeaderUserID); h != "" && len(h) <= 128 {
		return h
	}
	return DefaultUserID
}

// IdempotencyScope names the operation a key is bound to, e.g.
// "POST /api/v1/complaints". Keys never collide across routes.
func IdempotencyScope(c *gin.Context) string {
	return c.Request.Method + " " + routeOf(c)
}

// GetIdempotencyKey returns the validated key stored by IdempotencyValidator.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether the key was already used successfully for this
// user and route.
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// ReplayResource returns the resource id remembered for a replayed key.
func ReplayResource(c *gin.Context) (string, bool) {
	if !IsReplay(c) {
		return "", false
	}
	v, _ := c.Get(ctxKeyIdemResource)
	s, _ := v.(string)
	return s, s != ""
}

// IdempotencyOptions configures header validation for IdempotencyValidator.
type IdempotencyOptions struct {
	// MaxLen caps the accepted key length. Values <= 0 default to 200.
	MaxLen int
	// Pattern restricts allowed characters. Nil means ^[A-Za-z0-9._~\-:]+$.
	Pattern *regexp.Regexp
	// Now overrides the clock passed to the lookup (tests).
	Now func() time.Time
}

// IdempotencyLookup reports whether (userID, scope, key) already produced a
// resource that is still within its TTL, and which one. Errors are treated as
// "not found" so a broken store never blocks writes.
type IdempotencyLookup func(ctx context.Context, userID, scope, key string, now time.Time) (resourceID string, exists bool, err error)

// IdempotencyValidator validates the Idempotency-Key header, stashes it, and
// consults lookup for a previous result.
//
//   - No header: no-op.
//   - Invalid header: 400 {code: "bad_idempotency_key"}.
//   - Known key: marks the request as a replay, records the resource id and
//     flags it for rate-limit bypass.
//
// Handlers decide how to answer a replay; the validator never writes a body
// for valid keys.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			abortJSON(c, http.StatusBadRequest, "bad_idempotency_key", "invalid Idempotency-Key")
			return
		}
		c.Set(ctxKeyIdemKey, key)

		if lookup != nil {
			rid, exists, err := lookup(c.Request.Context(), UserID(c), IdempotencyScope(c), key, now().UTC())
			if err != nil {
				LoggerFrom(c).Warn().Err(err).Msg("idempotency lookup failed")
			} else if exists {
				c.Set(ctxKeyIdemReplay, true)
				c.Set(ctxKeyIdemResource, rid)
				c.Set(ctxKeyRateBypass, true)
			}
		}

		c.Next()
	}
}
