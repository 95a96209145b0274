package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stradapos/internal/core/appctx"
	"stradapos/internal/core/id"
	"stradapos/internal/core/security"
	"stradapos/internal/domain/stock"
	"stradapos/internal/infrastructure/http/v1/middleware"
)

func newStockRouter(t *testing.T, user *appctx.UserContext) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	engine, err := security.NewPolicyEngine()
	require.NoError(t, err)
	require.NoError(t, engine.RegisterDefaults())

	handler := NewStockHandler(NewBaseHandler(), stock.NewService(nil, nil, nil), engine)

	router := gin.New()
	router.Use(middleware.ErrorHandler())
	router.Use(func(c *gin.Context) {
		c.Request = c.Request.WithContext(appctx.WithUser(c.Request.Context(), user))
		c.Next()
	})
	router.POST("/stock/adjust", handler.Adjust)
	router.POST("/stock/transfer", handler.Transfer)
	return router
}

// Mutation requests carry the warehouse in the JSON body, out of sight of the
// route middleware; the handler itself must enforce the warehouse scope.
func TestAdjust_DeniesBodyWarehouseOutOfScope(t *testing.T) {
	scopedWh := id.New().String()
	otherWh := id.New().String()

	router := newStockRouter(t, &appctx.UserContext{
		UserID:       id.New().String(),
		Roles:        []string{security.RoleManager},
		Permissions:  security.PermissionsForRoles([]string{security.RoleManager}),
		WarehouseIDs: []string{scopedWh},
	})

	body := fmt.Sprintf(`{"productId":%q,"warehouseId":%q,"change":1,"reason":"recount"}`,
		id.New().String(), otherWh)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/stock/adjust", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestTransfer_DeniesOutOfScopeDestination(t *testing.T) {
	scopedWh := id.New().String()
	otherWh := id.New().String()

	router := newStockRouter(t, &appctx.UserContext{
		UserID:       id.New().String(),
		Roles:        []string{security.RoleManager},
		Permissions:  security.PermissionsForRoles([]string{security.RoleManager}),
		WarehouseIDs: []string{scopedWh},
	})

	body := fmt.Sprintf(`{"productId":%q,"fromWarehouseId":%q,"toWarehouseId":%q,"quantity":1,"reason":"rebalance"}`,
		id.New().String(), scopedWh, otherWh)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/stock/transfer", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
