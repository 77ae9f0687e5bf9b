package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"tenant_auth_backend/internal/identity"

	"github.com/google/uuid"
)

func TestCreateUserRejectsDuplicateEmail(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	if err := store.CreateUser(ctx, &identity.User{Email: "Alice@Acme.com"}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	err := store.CreateUser(ctx, &identity.User{Email: "alice@acme.com"})
	if !errors.Is(err, identity.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	if store.UserCount() != 1 {
		t.Fatalf("expected one user, got %d", store.UserCount())
	}
}

func TestReturnedUsersAreCopies(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	org := uuid.New()
	user := &identity.User{
		Email:         "bob@acme.com",
		Organizations: []identity.Membership{identity.NewMembership(org, []string{"member"}, true, nil, time.Now())},
	}
	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, _ := store.GetUserByEmail(ctx, "BOB@acme.com")
	got.Organizations[0].Status = identity.MembershipRemoved

	again, _ := store.GetUserByID(ctx, user.ID)
	if again.Organizations[0].Status != identity.MembershipActive {
		t.Fatal("mutating a returned user must not change the store")
	}
}

func TestUpdateMembershipStatusReturnsPrevious(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	org := uuid.New()
	user := &identity.User{
		Email:         "carol@acme.com",
		Organizations: []identity.Membership{identity.NewMembership(org, []string{"member"}, true, nil, time.Now())},
	}
	_ = store.CreateUser(ctx, user)

	prev, err := store.UpdateMembershipStatus(ctx, user.ID, org, identity.MembershipInactive)
	if err != nil || prev != identity.MembershipActive {
		t.Fatalf("expected previous active, got %q err=%v", prev, err)
	}
	if _, err := store.UpdateMembershipStatus(ctx, user.ID, uuid.New(), identity.MembershipInactive); !errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("expected not found for unknown org, got %v", err)
	}
}

func TestTokensAreSingleUse(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	userID := uuid.New()

	_ = store.CreateUserToken(ctx, userID, "hash", identity.TokenTypePasswordReset, time.Now().Add(time.Hour))
	if _, _, err := store.GetUserToken(ctx, "hash", identity.TokenTypeEmailVerify); !errors.Is(err, identity.ErrNotFound) {
		t.Fatal("token type must match")
	}
	if err := store.UseUserToken(ctx, "hash", identity.TokenTypePasswordReset); err != nil {
		t.Fatalf("use: %v", err)
	}
	if err := store.UseUserToken(ctx, "hash", identity.TokenTypePasswordReset); !errors.Is(err, identity.ErrTokenUsed) {
		t.Fatalf("expected second use to fail, got %v", err)
	}
}
