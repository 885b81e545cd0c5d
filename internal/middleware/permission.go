package middleware

import (
	"github.com/gin-gonic/gin"

	apierrors "github.com/yukikurage/rollout-ready-api/internal/errors"
	"github.com/yukikurage/rollout-ready-api/internal/policy"
)

// RequirePermission guards a route group with an action that does not depend
// on the resource, such as managing users. It must run after RequireAuth.
// Resource-level checks stay in the services.
func RequirePermission(action policy.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := GetPrincipal(c)
		if !ok {
			apierrors.Unauthorized(c, "")
			c.Abort()
			return
		}

		if !policy.Can(principal, action, policy.Resource{}) {
			apierrors.Forbidden(c, "Insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}
