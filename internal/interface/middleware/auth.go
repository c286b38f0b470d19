package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/go-account-identity/internal/application"
)

type principalKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p application.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the caller stored by Auth.
func PrincipalFrom(ctx context.Context) (application.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(application.Principal)
	return p, ok
}

// Auth runs the access guard against the Authorization header. On success
// the principal is attached to the request context; otherwise the chain is
// aborted with 401 or 403.
func Auth(guard *application.AccessGuard) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := guard.Authorize(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.Request = c.Request.WithContext(WithPrincipal(c.Request.Context(), p))
		c.Next()
	}
}
