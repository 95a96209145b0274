package security

// Permission strings carried in JWT claims and checked by route policies.
const (
	PermCatalogRead  = "catalog:read"
	PermCatalogWrite = "catalog:write"

	PermStockRead  = "stock:read"
	PermStockWrite = "stock:write"

	PermSalesCreate = "sales:create"
	PermSalesRefund = "sales:refund"

	PermSyncProcess      = "sync:process"
	PermReconcileResolve = "reconcile:resolve"

	PermReportsRead = "reports:read"
)

// Role names.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleCashier = "cashier"
	RoleViewer  = "viewer"
)

// RolePermissions maps each role to the permissions it grants. Admin bypasses
// permission checks entirely and needs no entry.
var RolePermissions = map[string][]string{
	RoleManager: {
		PermCatalogRead, PermCatalogWrite,
		PermStockRead, PermStockWrite,
		PermSalesCreate, PermSalesRefund,
		PermSyncProcess, PermReconcileResolve,
		PermReportsRead,
	},
	RoleCashier: {
		PermCatalogRead,
		PermStockRead,
		PermSalesCreate,
		PermSyncProcess,
	},
	RoleViewer: {
		PermCatalogRead,
		PermStockRead,
		PermReportsRead,
	},
}

// PermissionsForRoles flattens and deduplicates permissions for a role set.
func PermissionsForRoles(roles []string) []string {
	seen := make(map[string]struct{})
	var perms []string
	for _, role := range roles {
		for _, p := range RolePermissions[role] {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			perms = append(perms, p)
		}
	}
	return perms
}
