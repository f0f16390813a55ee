package middleware

import (
	"github.com/gin-gonic/gin"

	appctx "batchledger/internal/core/context"
	"batchledger/internal/core/security"
)

// HeaderUserID carries the caller identity set by the upstream gateway.
// Authentication itself happens outside this service.
const HeaderUserID = "X-User-ID"

// UserContext propagates the caller identity into the request context so
// the domain layer can stamp created_by/updated_by via security.GetUserID.
func UserContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		if uid := c.GetHeader(HeaderUserID); uid != "" {
			ctx := security.WithUserID(c.Request.Context(), uid)
			ctx = appctx.WithUser(ctx, &appctx.UserContext{UserID: uid})
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}
