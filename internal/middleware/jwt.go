package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/studyhub/internal/pkg/errcode"
	"github.com/xxxsen/studyhub/internal/pkg/jwt"
	"github.com/xxxsen/studyhub/internal/pkg/response"
)

const (
	ContextUserIDKey      = "user_id"
	ContextEmailKey       = "user_email"
	ContextAccountTypeKey = "account_type"

	// TokenCookie is the session cookie set on login and cleared on logout.
	TokenCookie = "token"
)

type TokenParser interface {
	Parse(token string) (*jwt.Claims, error)
}

// JWTAuth accepts the session cookie first and falls back to a bearer
// Authorization header.
func JWTAuth(parser TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := extractToken(c)
		if !ok {
			response.Error(c, http.StatusUnauthorized, errcode.ErrUnauthorized, "Token is missing")
			c.Abort()
			return
		}
		claims, err := parser.Parse(token)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, errcode.ErrUnauthorized, "Token is invalid")
			c.Abort()
			return
		}
		c.Set(ContextUserIDKey, claims.UserID)
		c.Set(ContextEmailKey, claims.Email)
		c.Set(ContextAccountTypeKey, claims.AccountType)
		c.Next()
	}
}

func extractToken(c *gin.Context) (string, bool) {
	if cookie, err := c.Cookie(TokenCookie); err == nil && cookie != "" {
		return cookie, true
	}
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}
