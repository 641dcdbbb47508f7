package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edt-api/internal/models"
	appErrors "github.com/noah-isme/edt-api/pkg/errors"
	"github.com/noah-isme/edt-api/pkg/response"
)

// RequireRoles admits callers whose token carries one of roles. It must run
// after JWT.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(c *gin.Context) {
		claims := Claims(c)
		switch {
		case claims == nil:
			response.Error(c, appErrors.ErrUnauthorized)
		case !allowed[claims.Role]:
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("role %s cannot access this resource", claims.Role)))
		default:
			c.Next()
			return
		}
		c.Abort()
	}
}
