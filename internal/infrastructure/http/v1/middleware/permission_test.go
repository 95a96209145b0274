package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stradapos/internal/core/appctx"
	"stradapos/internal/core/security"
)

func newScopedRouter(t *testing.T, user *appctx.UserContext) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	engine, err := security.NewPolicyEngine()
	require.NoError(t, err)
	require.NoError(t, engine.RegisterDefaults())

	router := gin.New()
	router.Use(ErrorHandler())
	router.Use(func(c *gin.Context) {
		c.Request = c.Request.WithContext(appctx.WithUser(c.Request.Context(), user))
		c.Next()
	})
	router.GET("/stock/levels",
		RequireWarehousePermission(engine, security.PermStockRead),
		func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) },
	)
	return router
}

func TestRequireWarehousePermission_DeniesOutOfScopeWarehouse(t *testing.T) {
	router := newScopedRouter(t, &appctx.UserContext{
		Roles:        []string{security.RoleManager},
		Permissions:  security.PermissionsForRoles([]string{security.RoleManager}),
		WarehouseIDs: []string{"wh-a"},
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/stock/levels?warehouseId=wh-b", nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireWarehousePermission_AllowsScopedWarehouse(t *testing.T) {
	router := newScopedRouter(t, &appctx.UserContext{
		Roles:        []string{security.RoleManager},
		Permissions:  security.PermissionsForRoles([]string{security.RoleManager}),
		WarehouseIDs: []string{"wh-a"},
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/stock/levels?warehouseId=wh-a", nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireWarehousePermission_EmptyWarehouseFallsBackToPermission(t *testing.T) {
	router := newScopedRouter(t, &appctx.UserContext{
		Roles:        []string{security.RoleManager},
		Permissions:  security.PermissionsForRoles([]string{security.RoleManager}),
		WarehouseIDs: []string{"wh-a"},
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/stock/levels", nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
