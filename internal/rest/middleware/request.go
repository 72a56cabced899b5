package middleware

import (
	"net/http"

	"github.com/flexprice/billing-engine/internal/config"
	"github.com/flexprice/billing-engine/internal/types"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func RequestIDMiddleware(c *gin.Context) {
	requestID := c.GetHeader(types.HeaderRequestID)
	if requestID == "" {
		requestID = uuid.New().String()
	}

	ctx := types.SetRequestID(c.Request.Context(), requestID)
	c.Request = c.Request.WithContext(ctx)
	c.Header(types.HeaderRequestID, requestID)

	c.Next()
}

// TenantMiddleware scopes the request to the tenant named in X-Tenant-ID.
// Identity is asserted by the gateway in front of the service. In local mode
// a missing header falls back to the default tenant.
func TenantMiddleware(cfg *config.Configuration) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.GetHeader(types.HeaderTenantID)
		if tenantID == "" {
			if cfg.Deployment.Mode != types.ModeLocal {
				c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
					Error: ErrorDetail{Display: "Missing " + types.HeaderTenantID + " header"},
				})
				return
			}
			tenantID = types.DefaultTenantID
		}

		userID := c.GetHeader(types.HeaderUserID)
		if userID == "" {
			userID = types.DefaultUserID
		}

		ctx := types.SetTenantID(c.Request.Context(), tenantID)
		ctx = types.SetUserID(ctx, userID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
