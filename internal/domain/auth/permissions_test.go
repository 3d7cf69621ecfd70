package auth

import (
	"testing"
	"time"
)

func TestRolePermissionsSubset(t *testing.T) {
	allowed := map[string]struct{}{}
	for _, perm := range DefaultPermissions {
		allowed[perm] = struct{}{}
	}

	for role, perms := range RolePermissions {
		if len(perms) == 0 {
			t.Fatalf("role %s has no permissions", role)
		}
		for _, perm := range perms {
			if _, ok := allowed[perm]; !ok {
				t.Fatalf("role %s has unknown permission %s", role, perm)
			}
		}
	}
}

func TestSeparationOfDuties(t *testing.T) {
	hasPerm := func(role, perm string) bool {
		for _, p := range RolePermissions[role] {
			if p == perm {
				return true
			}
		}
		return false
	}

	if hasPerm(RolePayrollClerk, PermRunsApprove) {
		t.Fatal("clerk must not approve runs")
	}
	if hasPerm(RolePayrollClerk, PermRunsPost) {
		t.Fatal("clerk must not post runs")
	}
	if hasPerm(RolePayrollManager, PermRunsPost) {
		t.Fatal("manager must not post runs")
	}
	if !hasPerm(RoleFinanceController, PermRunsPost) {
		t.Fatal("controller must post runs")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	secret := "test-secret"
	claims := Claims{UserID: "u1", TenantID: "t1", RoleID: "r1", RoleName: RolePayrollManager}

	token, err := GenerateToken(secret, claims, time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	parsed, err := ParseToken(secret, token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.UserID != "u1" || parsed.TenantID != "t1" || parsed.RoleName != RolePayrollManager {
		t.Fatalf("claims mismatch: %+v", parsed)
	}

	if _, err := ParseToken("wrong-secret", token); err == nil {
		t.Fatal("expected parse failure with wrong secret")
	}
}
