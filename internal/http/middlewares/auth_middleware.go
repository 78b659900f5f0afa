package middlewares

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rfsouza01/contacthub/internal/config"
	"github.com/rfsouza01/contacthub/internal/domain/user"

	"github.com/gin-gonic/gin"
)

// Keep these interfaces small so tests can fake them easily.

type TokenHasher interface {
	HashToken(raw string) string
}

type UserResolver interface {
	FindUserByTokenHash(ctx context.Context, tokenHash string) (user.User, error)
}

type AuthMiddleware struct {
	hasher TokenHasher
	users  UserResolver
}

func NewAuthMiddleware(hasher TokenHasher, users UserResolver) *AuthMiddleware {
	return &AuthMiddleware{hasher: hasher, users: users}
}

// RequireAuth resolves the presented opaque bearer token to its user via the
// token store. Revoked or unknown tokens fail identically.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			abortUnauthorized(c, "Missing or invalid Authorization header")
			return
		}

		raw := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
		if raw == "" {
			abortUnauthorized(c, "Missing or invalid access token")
			return
		}

		cctx, cancel := config.WithTimeout(2 * time.Second)
		defer cancel()

		u, err := m.users.FindUserByTokenHash(cctx, m.hasher.HashToken(raw))
		if err != nil {
			abortUnauthorized(c, "Invalid or revoked access token")
			return
		}

		// Stash the resolved identity on the context
		c.Set(CtxUserID, u.ID)
		c.Set(CtxUser, u)

		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": gin.H{
			"code":    "unauthorized",
			"message": message,
		},
	})
}

// Helpers so handlers don't need to know the magic keys.

func UserIDFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(CtxUserID)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

func UserFromContext(c *gin.Context) (user.User, bool) {
	v, ok := c.Get(CtxUser)
	if !ok {
		return user.User{}, false
	}
	u, ok := v.(user.User)
	return u, ok
}
