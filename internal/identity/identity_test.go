package identity

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestParseMembershipStatus(t *testing.T) {
	for _, raw := range []string{"active", "inactive", "pending", "removed", " Active "} {
		if _, err := ParseMembershipStatus(raw); err != nil {
			t.Fatalf("expected %q to parse, got %v", raw, err)
		}
	}
	if _, err := ParseMembershipStatus("deleted"); err == nil {
		t.Fatal("expected unknown status to be rejected")
	}
}

func TestMembershipTransitions(t *testing.T) {
	if !MembershipActive.CanTransitionTo(MembershipRemoved) {
		t.Fatal("expected active -> removed")
	}
	if MembershipRemoved.CanTransitionTo(MembershipActive) {
		t.Fatal("removed memberships must be re-invited, not reactivated")
	}
	if MembershipActive.CanTransitionTo(MembershipActive) {
		t.Fatal("self transition should not be allowed")
	}
}

func TestNewMembershipDefaults(t *testing.T) {
	org := uuid.New()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	m := NewMembership(org, []string{"member"}, true, nil, now)

	if !m.IsActive() || !m.IsPrimary || m.JoinedAt != now {
		t.Fatalf("unexpected membership %#v", m)
	}
	if got := m.RoleNames(); len(got) != 1 || got[0] != "member" {
		t.Fatalf("expected [member], got %v", got)
	}
}

func TestPublicOmitsCredentialMaterial(t *testing.T) {
	u := User{
		ID:              uuid.New(),
		Email:           "alice@acme.com",
		PasswordHash:    "$2a$10$hash",
		PasswordHistory: []string{"$2a$10$old"},
		Security:        Security{FailedLoginAttempts: 2, LastLoginIP: "10.0.0.1"},
		Verification:    Verification{EmailVerified: true},
		MFA: MFA{Enabled: true, Methods: []MFAMethod{
			{ID: "m1", Type: MFAMethodTOTP, Secret: "JBSWY3DPEHPK3PXP", Verified: true},
		}},
		Status: UserActive,
	}

	raw, err := json.Marshal(u.Public())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	body := string(raw)
	for _, forbidden := range []string{"$2a$10$", "JBSWY3DPEHPK3PXP", "passwordHash", "passwordHistory", "failedLoginAttempts", "lastLoginIp", "secret"} {
		if strings.Contains(body, forbidden) {
			t.Fatalf("public user leaked %q: %s", forbidden, body)
		}
	}
	if !strings.Contains(body, `"emailVerified":true`) {
		t.Fatalf("expected verification flag to survive: %s", body)
	}
}

func TestCloneDoesNotAlias(t *testing.T) {
	u := User{
		Metadata:      map[string]any{"a": 1},
		Organizations: []Membership{NewMembership(uuid.New(), []string{"member"}, true, nil, time.Now())},
	}
	c := u.Clone()
	c.Metadata["a"] = 2
	c.Organizations[0].Status = MembershipRemoved
	c.Organizations[0].Roles[0].RoleName = "admin"

	if u.Metadata["a"] != 1 || u.Organizations[0].Status != MembershipActive || u.Organizations[0].Roles[0].RoleName != "member" {
		t.Fatal("clone aliased the original")
	}
}
