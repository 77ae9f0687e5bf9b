// Package memory is an in-process identity store used for tests and local
// runs without PostgreSQL.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"tenant_auth_backend/internal/identity"

	"github.com/google/uuid"
)

type tokenRecord struct {
	userID    uuid.UUID
	tokenType string
	expiresAt time.Time
	used      bool
}

type Store struct {
	mu sync.RWMutex

	users       map[uuid.UUID]identity.User
	userByEmail map[string]uuid.UUID
	tokens      map[string]tokenRecord

	creates int
}

func NewStore() *Store {
	return &Store{
		users:       make(map[uuid.UUID]identity.User),
		userByEmail: make(map[string]uuid.UUID),
		tokens:      make(map[string]tokenRecord),
	}
}

func (s *Store) CreateUser(_ context.Context, user *identity.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(user.Email))
	if _, exists := s.userByEmail[email]; exists {
		return identity.ErrEmailTaken
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now().UTC()
	user.Email = email
	user.CreatedAt = now
	user.UpdatedAt = now

	s.users[user.ID] = user.Clone()
	s.userByEmail[email] = user.ID
	s.creates++
	return nil
}

// UserCount reports how many users were ever created.
func (s *Store) UserCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creates
}

func (s *Store) GetUserByID(_ context.Context, id uuid.UUID) (identity.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return identity.User{}, identity.ErrNotFound
	}
	return user.Clone(), nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (identity.User, error) {
	s.mu.RLock()
	id, ok := s.userByEmail[strings.ToLower(strings.TrimSpace(email))]
	s.mu.RUnlock()
	if !ok {
		return identity.User{}, identity.ErrNotFound
	}
	return s.GetUserByID(ctx, id)
}

func (s *Store) UpdateSecurity(_ context.Context, userID uuid.UUID, security identity.Security) error {
	return s.mutate(userID, func(u *identity.User) error {
		u.Security = security
		return nil
	})
}

func (s *Store) UpdateLastLogin(_ context.Context, userID uuid.UUID, at time.Time, ip string) error {
	return s.mutate(userID, func(u *identity.User) error {
		stamp := at.UTC()
		u.Security.LastLoginAt = &stamp
		u.Security.LastLoginIP = ip
		u.Security.FailedLoginAttempts = 0
		return nil
	})
}

func (s *Store) MarkEmailVerified(_ context.Context, userID uuid.UUID, at time.Time) error {
	return s.mutate(userID, func(u *identity.User) error {
		stamp := at.UTC()
		u.Verification = identity.Verification{EmailVerified: true, EmailVerifiedAt: &stamp}
		return nil
	})
}

func (s *Store) UpdatePassword(_ context.Context, userID uuid.UUID, hash string, history []string) error {
	return s.mutate(userID, func(u *identity.User) error {
		now := time.Now().UTC()
		u.PasswordHash = hash
		u.PasswordHistory = append([]string(nil), history...)
		u.Security.PasswordChangedAt = &now
		return nil
	})
}

func (s *Store) SaveMFA(_ context.Context, userID uuid.UUID, mfa identity.MFA) error {
	return s.mutate(userID, func(u *identity.User) error {
		u.MFA = identity.MFA{Enabled: mfa.Enabled, Methods: append([]identity.MFAMethod(nil), mfa.Methods...)}
		return nil
	})
}

func (s *Store) AddMembership(_ context.Context, userID uuid.UUID, membership identity.Membership) error {
	return s.mutate(userID, func(u *identity.User) error {
		if _, exists := u.MembershipFor(membership.OrganizationID); exists {
			return identity.ErrMembershipExists
		}
		u.Organizations = append(u.Organizations, membership)
		return nil
	})
}

func (s *Store) UpdateMembershipStatus(_ context.Context, userID, organizationID uuid.UUID, status identity.MembershipStatus) (identity.MembershipStatus, error) {
	var previous identity.MembershipStatus
	err := s.mutate(userID, func(u *identity.User) error {
		for i := range u.Organizations {
			if u.Organizations[i].OrganizationID == organizationID {
				previous = u.Organizations[i].Status
				u.Organizations[i].Status = status
				return nil
			}
		}
		return identity.ErrNotFound
	})
	return previous, err
}

func (s *Store) CreateUserToken(_ context.Context, userID uuid.UUID, tokenHash, tokenType string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[tokenHash] = tokenRecord{userID: userID, tokenType: tokenType, expiresAt: expiresAt}
	return nil
}

func (s *Store) GetUserToken(_ context.Context, tokenHash, tokenType string) (uuid.UUID, time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.tokens[tokenHash]
	if !ok || rec.used || rec.tokenType != tokenType {
		return uuid.Nil, time.Time{}, identity.ErrNotFound
	}
	return rec.userID, rec.expiresAt, nil
}

func (s *Store) UseUserToken(_ context.Context, tokenHash, tokenType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.tokens[tokenHash]
	if !ok || rec.tokenType != tokenType || rec.used {
		return identity.ErrTokenUsed
	}
	rec.used = true
	s.tokens[tokenHash] = rec
	return nil
}

func (s *Store) mutate(userID uuid.UUID, fn func(*identity.User) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return identity.ErrNotFound
	}
	user = user.Clone()
	if err := fn(&user); err != nil {
		return err
	}
	user.UpdatedAt = time.Now().UTC()
	s.users[userID] = user
	return nil
}

var _ identity.Store = (*Store)(nil)
