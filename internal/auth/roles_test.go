package auth

import "testing"

func TestPermissionsOfUnknownRole(t *testing.T) {
	for _, role := range []Role{"", "ADMIN", "Admin", "cashier"} {
		if got := PermissionsOf(role); len(got) != 0 {
			t.Fatalf("PermissionsOf(%q) = %d permissions, want empty set", role, len(got))
		}
	}
}

func TestPermissionsOfMatchesHasPermission(t *testing.T) {
	for _, role := range AllRoles() {
		set := PermissionsOf(role)
		for _, perm := range AllPermissions() {
			_, inSet := set[perm]
			if HasPermission(role, perm) != inSet {
				t.Fatalf("HasPermission(%s, %s) disagrees with PermissionsOf", role, perm)
			}
		}
	}
}

func TestRoleOrderingInvariant(t *testing.T) {
	admin := len(PermissionsOf(RoleAdmin))
	manager := len(PermissionsOf(RoleManager))
	staff := len(PermissionsOf(RoleStaff))
	if !(admin > manager && manager > staff) {
		t.Fatalf("expected |admin| > |manager| > |staff|, got %d, %d, %d", admin, manager, staff)
	}
	// Strict superset, not just larger.
	for perm := range PermissionsOf(RoleStaff) {
		if !HasPermission(RoleManager, perm) || !HasPermission(RoleAdmin, perm) {
			t.Fatalf("staff permission %s missing from a superior role", perm)
		}
	}
	for perm := range PermissionsOf(RoleManager) {
		if !HasPermission(RoleAdmin, perm) {
			t.Fatalf("manager permission %s missing from admin", perm)
		}
	}
}

func TestHasAnyHasAllEdgeCases(t *testing.T) {
	for _, role := range []Role{RoleAdmin, RoleManager, RoleStaff, "", "unknown"} {
		if HasAny(role, nil) {
			t.Fatalf("HasAny(%q, empty) should be false", role)
		}
		if !HasAll(role, nil) {
			t.Fatalf("HasAll(%q, empty) should be vacuously true", role)
		}
	}
	if HasAll("unknown", []string{PermProductRead}) {
		t.Fatal("HasAll for unknown role with non-empty list should be false")
	}
	if !HasAny(RoleStaff, []string{PermProductDelete, PermSaleCreate}) {
		t.Fatal("expected staff to match sale:create")
	}
	if HasAny(RoleStaff, []string{PermProductDelete, PermAuditRead}) {
		t.Fatal("staff should not match admin-only permissions")
	}
	if !HasAll(RoleManager, []string{PermReportRead, PermSaleVoid}) {
		t.Fatal("expected manager to hold both report:read and sale:void")
	}
	if HasAll(RoleManager, []string{PermReportRead, PermAuditRead}) {
		t.Fatal("manager should not hold audit:read")
	}
}

func TestPermissionKeyShape(t *testing.T) {
	for _, perm := range AllPermissions() {
		colons := 0
		for _, r := range perm {
			switch {
			case r == ':':
				colons++
			case r < 'a' || r > 'z':
				t.Fatalf("permission %q contains character %q outside [a-z]", perm, r)
			}
		}
		if colons != 1 {
			t.Fatalf("permission %q must contain exactly one colon", perm)
		}
	}
}

func TestAllRolesStableOrder(t *testing.T) {
	roles := AllRoles()
	if len(roles) != 3 {
		t.Fatalf("expected exactly 3 roles, got %d", len(roles))
	}
	expected := []Role{RoleAdmin, RoleManager, RoleStaff}
	for i, role := range expected {
		if roles[i] != role {
			t.Fatalf("AllRoles()[%d] = %s, want %s", i, roles[i], role)
		}
	}
}
