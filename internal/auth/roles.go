package auth

// Role is the coarse job function assigned to an account. Roles are fixed at
// build time; matching is exact and case-sensitive everywhere.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleStaff   Role = "staff"
)

// Permission keys follow the resource:action form (lowercase, single colon).
const (
	PermProductRead     = "product:read"
	PermProductWrite    = "product:write"
	PermProductDelete   = "product:delete"
	PermCategoryRead    = "category:read"
	PermCategoryWrite   = "category:write"
	PermSupplierRead    = "supplier:read"
	PermSupplierWrite   = "supplier:write"
	PermInventoryRead   = "inventory:read"
	PermInventoryAdjust = "inventory:adjust"
	PermSaleCreate      = "sale:create"
	PermSaleRead        = "sale:read"
	PermSaleVoid        = "sale:void"
	PermReportRead      = "report:read"
	PermReportExport    = "report:export"
	PermAccountRead     = "account:read"
	PermAccountApprove  = "account:approve"
	PermAccountSuspend  = "account:suspend"
	PermAuditRead       = "audit:read"
)

var staffPermissions = []string{
	PermProductRead,
	PermCategoryRead,
	PermSupplierRead,
	PermInventoryRead,
	PermSaleCreate,
	PermSaleRead,
}

var managerPermissions = append(append([]string{}, staffPermissions...),
	PermProductWrite,
	PermCategoryWrite,
	PermSupplierWrite,
	PermInventoryAdjust,
	PermSaleVoid,
	PermReportRead,
	PermReportExport,
)

var adminPermissions = append(append([]string{}, managerPermissions...),
	PermProductDelete,
	PermAccountRead,
	PermAccountApprove,
	PermAccountSuspend,
	PermAuditRead,
)

// rolePermissions is the static role → permission-set matrix. Each role's set
// is a strict superset of the next role down.
var rolePermissions = map[Role]map[string]struct{}{
	RoleAdmin:   toSet(adminPermissions),
	RoleManager: toSet(managerPermissions),
	RoleStaff:   toSet(staffPermissions),
}

func toSet(keys []string) map[string]struct{} {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}

// PermissionsOf returns the permission set for a role. Unknown roles,
// including empty strings and case mismatches, yield an empty set.
func PermissionsOf(role Role) map[string]struct{} {
	set, ok := rolePermissions[role]
	if !ok {
		return map[string]struct{}{}
	}
	out := make(map[string]struct{}, len(set))
	for k := range set {
		out[k] = struct{}{}
	}
	return out
}

// HasPermission reports whether the role grants the permission. Unknown roles
// and unknown permissions are simply false.
func HasPermission(role Role, permission string) bool {
	set, ok := rolePermissions[role]
	if !ok {
		return false
	}
	_, ok = set[permission]
	return ok
}

// HasAny reports whether the role grants at least one of the permissions.
// An empty list is false.
func HasAny(role Role, permissions []string) bool {
	set, ok := rolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range permissions {
		if _, ok := set[p]; ok {
			return true
		}
	}
	return false
}

// HasAll reports whether the role grants every permission in the list.
// An empty list is vacuously true for any role, known or not.
func HasAll(role Role, permissions []string) bool {
	if len(permissions) == 0 {
		return true
	}
	set, ok := rolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range permissions {
		if _, ok := set[p]; !ok {
			return false
		}
	}
	return true
}

// AllRoles returns the known roles in stable order.
func AllRoles() []Role {
	return []Role{RoleAdmin, RoleManager, RoleStaff}
}

// AllPermissions lists every grant per role, duplicates included. Intended
// for reporting and introspection only.
func AllPermissions() []string {
	var out []string
	for _, role := range AllRoles() {
		switch role {
		case RoleAdmin:
			out = append(out, adminPermissions...)
		case RoleManager:
			out = append(out, managerPermissions...)
		case RoleStaff:
			out = append(out, staffPermissions...)
		}
	}
	return out
}

// ValidRole reports whether the role is one of the three known roles.
func ValidRole(role Role) bool {
	_, ok := rolePermissions[role]
	return ok
}
