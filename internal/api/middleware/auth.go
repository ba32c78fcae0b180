package middleware

import (
	"net/http"
	"slices"

	"cra-notify/internal/auth"
	"cra-notify/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	ContextUserID = "user_id"
	ContextRole   = "role"
)

type AuthMiddleware struct {
	tokens     *auth.TokenManager
	cookieName string
}

func NewAuthMiddleware(tokens *auth.TokenManager, cookieName string) *AuthMiddleware {
	return &AuthMiddleware{
		tokens:     tokens,
		cookieName: cookieName,
	}
}

// RequireAuth accepts the same token locations as the socket handshake and
// sets user_id and role on the context.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, _ := auth.ExtractToken(c.Request, am.cookieName)
		if tokenString == "" {
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, auth.ErrMissingToken.Error())
			return
		}

		claims, err := am.tokens.Verify(tokenString)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, auth.ErrInvalidToken.Error())
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextRole, claims.Role)
		c.Next()
	}
}

// RequireRole must run after RequireAuth.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !slices.Contains(roles, Role(c)) {
			response.Error(c, http.StatusForbidden, response.CodeForbidden, "insufficient role")
			return
		}
		c.Next()
	}
}

// UserID returns the authenticated user id set by RequireAuth.
func UserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}

// Role returns the role claim set by RequireAuth.
func Role(c *gin.Context) string {
	return c.GetString(ContextRole)
}
