// Package security provides authorization and access control.
package security

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"stradapos/internal/core/appctx"
	"stradapos/internal/core/apperror"
)

// PolicyEngine evaluates CEL access policies against the request context.
// Policies are compiled once at registration and cached.
//
// Available variables:
//   - user: map with is_admin, roles, permissions, warehouse_ids
//   - warehouse_id: warehouse the request targets ("" if none)
//   - permission: permission the route requires
type PolicyEngine struct {
	env *cel.Env

	mu       sync.RWMutex
	programs map[string]cel.Program
}

// NewPolicyEngine creates a policy engine with the standard variable declarations.
func NewPolicyEngine() (*PolicyEngine, error) {
	env, err := cel.NewEnv(
		cel.Variable("user", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("warehouse_id", cel.StringType),
		cel.Variable("permission", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}
	return &PolicyEngine{
		env:      env,
		programs: make(map[string]cel.Program),
	}, nil
}

// Register compiles and stores a named policy expression.
// The expression must evaluate to bool.
func (e *PolicyEngine) Register(name, expr string) error {
	ast, iss := e.env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return fmt.Errorf("compile policy %q: %w", name, iss.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return fmt.Errorf("policy %q must evaluate to bool, got %s", name, ast.OutputType())
	}

	prg, err := e.env.Program(ast)
	if err != nil {
		return fmt.Errorf("build policy program %q: %w", name, err)
	}

	e.mu.Lock()
	e.programs[name] = prg
	e.mu.Unlock()
	return nil
}

// Allow evaluates a named policy for the authenticated user against a warehouse.
// Missing policy or missing user denies access.
func (e *PolicyEngine) Allow(ctx context.Context, name, permission, warehouseID string) error {
	e.mu.RLock()
	prg, ok := e.programs[name]
	e.mu.RUnlock()
	if !ok {
		return apperror.NewForbidden("unknown access policy").WithDetail("policy", name)
	}

	user := appctx.GetUser(ctx)
	if user == nil {
		return apperror.NewUnauthorized("authentication required")
	}

	out, _, err := prg.Eval(map[string]any{
		"user": map[string]any{
			"is_admin":      user.IsAdmin,
			"roles":         user.Roles,
			"permissions":   user.Permissions,
			"warehouse_ids": user.WarehouseIDs,
		},
		"warehouse_id": warehouseID,
		"permission":   permission,
	})
	if err != nil {
		return apperror.NewInternal(err).WithDetail("policy", name)
	}

	allowed, ok := out.Value().(bool)
	if !ok || !allowed {
		return apperror.NewForbidden("access denied").
			WithDetail("policy", name).
			WithDetail("permission", permission)
	}
	return nil
}

// Default policy names.
const (
	PolicyPermission     = "permission"
	PolicyWarehouseScope = "warehouse_scope"
)

// RegisterDefaults installs the built-in policies: flat permission check and
// warehouse-scoped permission check (empty warehouse list = unrestricted).
func (e *PolicyEngine) RegisterDefaults() error {
	if err := e.Register(PolicyPermission,
		`user.is_admin || permission in user.permissions`); err != nil {
		return err
	}
	return e.Register(PolicyWarehouseScope,
		`user.is_admin || (permission in user.permissions && `+
			`(size(user.warehouse_ids) == 0 || warehouse_id == "" || warehouse_id in user.warehouse_ids))`)
}
