package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ContextKeyUserID is the gin context key holding the caller's user id.
// Handlers, the rate limiter and the idempotency middleware all read it.
const ContextKeyUserID = "userID"

// Middleware validates bearer tokens and stores the subject under
// ContextKeyUserID. With a nil manager it is a no-op, and callers fall back
// to the X-User-ID header.
func Middleware(tm *TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tm == nil {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		if header == "" {
			unauthorized(c, "missing authorization header")
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			unauthorized(c, "invalid authorization header")
			return
		}

		claims, err := tm.Parse(strings.TrimSpace(parts[1]))
		if err != nil {
			unauthorized(c, "invalid token")
			return
		}

		c.Set(ContextKeyUserID, claims.UserID())
		c.Next()
	}
}

func unauthorized(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", `Bearer realm="complaint-desk"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"request_id": c.Writer.Header().Get("X-Request-ID"),
		"code":       "unauthorized",
		"message":    msg,
	})
}
