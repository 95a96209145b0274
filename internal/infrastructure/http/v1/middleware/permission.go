package middleware

import (
	"github.com/gin-gonic/gin"

	"stradapos/internal/core/security"
)

// RequirePermission middleware checks the flat permission policy.
// Admins automatically pass every policy.
func RequirePermission(engine *security.PolicyEngine, permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := engine.Allow(c.Request.Context(), security.PolicyPermission, permission, "")
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireWarehousePermission checks the warehouse-scoped policy against the
// warehouse the request targets. The warehouse is taken from the warehouseId
// query key; an empty value falls back to the flat permission rule. Requests
// that carry the warehouse in the JSON body are re-checked in the handler
// after binding.
func RequireWarehousePermission(engine *security.PolicyEngine, permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		warehouseID := c.Query("warehouseId")

		err := engine.Allow(c.Request.Context(), security.PolicyWarehouseScope, permission, warehouseID)
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}
		c.Next()
	}
}
