package security

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stradapos/internal/core/apperror"
	"stradapos/internal/core/appctx"
)

func newEngine(t *testing.T) *PolicyEngine {
	t.Helper()
	engine, err := NewPolicyEngine()
	require.NoError(t, err)
	require.NoError(t, engine.RegisterDefaults())
	return engine
}

func userCtx(user *appctx.UserContext) context.Context {
	return appctx.WithUser(context.Background(), user)
}

func TestPermissionPolicy(t *testing.T) {
	engine := newEngine(t)

	cashier := userCtx(&appctx.UserContext{
		Roles:       []string{RoleCashier},
		Permissions: PermissionsForRoles([]string{RoleCashier}),
	})

	assert.NoError(t, engine.Allow(cashier, PolicyPermission, PermSalesCreate, ""))

	err := engine.Allow(cashier, PolicyPermission, PermReconcileResolve, "")
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeForbidden, appErr.Code)
}

func TestPermissionPolicy_AdminBypassesPermissionList(t *testing.T) {
	engine := newEngine(t)

	admin := userCtx(&appctx.UserContext{IsAdmin: true, Roles: []string{RoleAdmin}})

	assert.NoError(t, engine.Allow(admin, PolicyPermission, PermReconcileResolve, ""))
	assert.NoError(t, engine.Allow(admin, PolicyWarehouseScope, PermStockWrite, "any-warehouse"))
}

func TestWarehouseScopePolicy(t *testing.T) {
	engine := newEngine(t)

	scoped := userCtx(&appctx.UserContext{
		Roles:        []string{RoleManager},
		Permissions:  PermissionsForRoles([]string{RoleManager}),
		WarehouseIDs: []string{"wh-1"},
	})

	assert.NoError(t, engine.Allow(scoped, PolicyWarehouseScope, PermStockWrite, "wh-1"))
	assert.Error(t, engine.Allow(scoped, PolicyWarehouseScope, PermStockWrite, "wh-2"))
	// No target warehouse means no scope restriction applies.
	assert.NoError(t, engine.Allow(scoped, PolicyWarehouseScope, PermStockWrite, ""))

	unscoped := userCtx(&appctx.UserContext{
		Roles:       []string{RoleManager},
		Permissions: PermissionsForRoles([]string{RoleManager}),
	})
	assert.NoError(t, engine.Allow(unscoped, PolicyWarehouseScope, PermStockWrite, "wh-2"))
}

func TestAllow_Denials(t *testing.T) {
	engine := newEngine(t)

	// No authenticated user.
	err := engine.Allow(context.Background(), PolicyPermission, PermSalesCreate, "")
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeUnauthorized, appErr.Code)

	// Unknown policy name.
	admin := userCtx(&appctx.UserContext{IsAdmin: true})
	err = engine.Allow(admin, "no-such-policy", PermSalesCreate, "")
	require.Error(t, err)
	appErr, ok = apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeForbidden, appErr.Code)
}

func TestRegister_RejectsInvalidExpressions(t *testing.T) {
	engine, err := NewPolicyEngine()
	require.NoError(t, err)

	assert.Error(t, engine.Register("broken", `user.is_admin ||`), "syntax error")
	assert.Error(t, engine.Register("not-bool", `permission`), "non-bool output")
	assert.NoError(t, engine.Register("ok", `permission == "x"`))
}

func TestPermissionsForRoles_Deduplicates(t *testing.T) {
	perms := PermissionsForRoles([]string{RoleManager, RoleCashier})

	seen := make(map[string]int)
	for _, p := range perms {
		seen[p]++
	}
	for p, n := range seen {
		assert.Equal(t, 1, n, "permission %s appears %d times", p, n)
	}
	assert.Contains(t, perms, PermSalesCreate)
	assert.Contains(t, perms, PermReportsRead)
}
