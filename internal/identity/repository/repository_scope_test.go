package repository

import (
	"errors"
	"strings"
	"testing"

	"tenant_auth_backend/internal/identity"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestMembershipQueryIsUserScoped(t *testing.T) {
	query := strings.ToLower(listMembershipsQuery)

	requiredFragments := []string{
		"from organization_memberships m",
		"where m.user_id = $1",
		"from membership_roles r",
		"where r.membership_id = m.id",
	}
	for _, fragment := range requiredFragments {
		if !strings.Contains(query, fragment) {
			t.Fatalf("expected membership query fragment %q", fragment)
		}
	}
}

func TestEmailLookupIsCaseInsensitive(t *testing.T) {
	if !strings.Contains(strings.ToLower(getUserByEmailQuery), "where email = lower($1)") {
		t.Fatal("email lookup must lower-case its argument")
	}
}

func TestStatusUpdateNeverDeletes(t *testing.T) {
	query := strings.ToLower(updateMembershipStatusQuery)
	if strings.Contains(query, "delete") {
		t.Fatal("membership status change must be a soft transition")
	}
	if !strings.Contains(query, "returning prev.status") {
		t.Fatal("expected previous status to be returned")
	}
}

func TestTranslateUnique(t *testing.T) {
	emailErr := &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: "users_email_key"}
	if !errors.Is(translateUnique(emailErr), identity.ErrEmailTaken) {
		t.Fatal("expected email violation to map to ErrEmailTaken")
	}

	memberErr := &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: "organization_memberships_user_id_organization_id_key"}
	if !errors.Is(translateUnique(memberErr), identity.ErrMembershipExists) {
		t.Fatal("expected membership violation to map to ErrMembershipExists")
	}

	other := &pgconn.PgError{Code: "23503"}
	if translateUnique(other) != error(other) {
		t.Fatal("expected non-unique errors to pass through")
	}
}
