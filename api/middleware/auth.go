package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/prodrank/models"
)

// IdentityKey is the gin context key the authenticated API key is stored
// under.
const IdentityKey = "api_key"

// Auth returns API-key authentication middleware.
//
// Supports two header styles:
//
//	X-API-Key: <key>
//	Authorization: Bearer <key>
//
// If apiKeys is empty, the middleware is a no-op (open access).
func Auth(apiKeys []string) gin.HandlerFunc {
	keys := make([][]byte, 0, len(apiKeys))
	for _, k := range apiKeys {
		if k != "" {
			keys = append(keys, []byte(k))
		}
	}
	if len(keys) == 0 {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		key := extractAPIKey(c)
		if key == "" {
			abort(c, http.StatusUnauthorized, models.ErrCodeUnauthorized,
				"missing API key: provide X-API-Key header or Authorization: Bearer <key>")
			return
		}
		if !knownKey(keys, []byte(key)) {
			abort(c, http.StatusUnauthorized, models.ErrCodeUnauthorized, "invalid API key")
			return
		}
		c.Set(IdentityKey, key)
		c.Next()
	}
}

// knownKey compares against every key so the time taken does not depend
// on which key matched.
func knownKey(keys [][]byte, key []byte) bool {
	found := 0
	for _, k := range keys {
		found |= subtle.ConstantTimeCompare(k, key)
	}
	return found == 1
}

// extractAPIKey tries X-API-Key first, then Authorization: Bearer.
func extractAPIKey(c *gin.Context) string {
	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, models.ExtractResponse{
		Success: false,
		Error:   &models.ErrorDetail{Code: code, Message: message},
	})
}
