package repository

import (
	"strings"
	"testing"
)

func TestIncrementIsSingleStatement(t *testing.T) {
	if !strings.Contains(incrementUsersQuery, "usage_users = usage_users + 1") {
		t.Fatalf("expected in-place increment")
	}
	if !strings.Contains(incrementUsersQuery, "RETURNING usage_users") {
		t.Fatalf("expected new counter to be returned")
	}
}

func TestGetOrganizationQueryScopesByID(t *testing.T) {
	if !strings.HasSuffix(strings.TrimSpace(getOrganizationQuery), "WHERE id = $1") {
		t.Fatalf("expected lookup by id, got %q", getOrganizationQuery)
	}
	for _, col := range []string{"allowed_domains", "require_invitation", "subscription_tier", "max_users", "usage_users", "settings"} {
		if !strings.Contains(selectOrganizationColumns, col) {
			t.Fatalf("expected select to include %s", col)
		}
	}
}
