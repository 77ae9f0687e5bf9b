package service

import (
	"context"
	"errors"
	"slices"
	"time"

	"tenant_auth_backend/internal/onboarding/repository"
	"tenant_auth_backend/platform/apperr"

	"github.com/google/uuid"
)

const (
	StepWelcome         = "welcome"
	StepCompleteProfile = "complete_profile"
	StepInviteTeam      = "invite_team"
	StepExploreFeatures = "explore_features"
)

// Roles that see the invite_team step.
var adminRoles = []string{"admin", "owner"}

type Repository interface {
	Create(ctx context.Context, rec repository.Record) error
	Get(ctx context.Context, userID, organizationID uuid.UUID) (repository.Record, error)
	Save(ctx context.Context, rec repository.Record) error
}

type Service struct {
	repo Repository
	now  func() time.Time
}

func New(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Initialize creates the onboarding record for a new member. Calling it
// twice returns the existing record.
func (s *Service) Initialize(ctx context.Context, userID, organizationID uuid.UUID, roles []string) (repository.Record, error) {
	rec := repository.Record{
		UserID:         userID,
		OrganizationID: organizationID,
		Status:         repository.StatusInProgress,
		Steps:          StepsFor(roles),
		StartedAt:      s.now().UTC(),
	}
	err := s.repo.Create(ctx, rec)
	if errors.Is(err, repository.ErrExists) {
		return s.repo.Get(ctx, userID, organizationID)
	}
	if err != nil {
		return repository.Record{}, err
	}
	return rec, nil
}

// StepsFor returns the onboarding checklist for a member with roles.
func StepsFor(roles []string) []repository.Step {
	steps := []repository.Step{
		{ID: StepWelcome, Title: "Welcome"},
		{ID: StepCompleteProfile, Title: "Complete your profile"},
	}
	if slices.ContainsFunc(roles, func(r string) bool { return slices.Contains(adminRoles, r) }) {
		steps = append(steps, repository.Step{ID: StepInviteTeam, Title: "Invite your team"})
	}
	return append(steps, repository.Step{ID: StepExploreFeatures, Title: "Explore features"})
}

func (s *Service) Get(ctx context.Context, userID, organizationID uuid.UUID) (repository.Record, error) {
	rec, err := s.repo.Get(ctx, userID, organizationID)
	if errors.Is(err, repository.ErrNotFound) {
		return repository.Record{}, apperr.NotFound("onboarding not started")
	}
	return rec, err
}

// CompleteStep marks stepID done; the record completes with its last step.
func (s *Service) CompleteStep(ctx context.Context, userID, organizationID uuid.UUID, stepID string) (repository.Record, error) {
	rec, err := s.Get(ctx, userID, organizationID)
	if err != nil {
		return repository.Record{}, err
	}

	idx := slices.IndexFunc(rec.Steps, func(st repository.Step) bool { return st.ID == stepID })
	if idx < 0 {
		return repository.Record{}, apperr.Validation("unknown onboarding step").WithDetail("step", stepID)
	}
	if rec.Steps[idx].Completed {
		return rec, nil
	}

	now := s.now().UTC()
	rec.Steps[idx].Completed = true
	rec.Steps[idx].CompletedAt = &now
	if rec.CompletedSteps() == rec.TotalSteps() {
		rec.Status = repository.StatusCompleted
		rec.CompletedAt = &now
	}
	if err := s.repo.Save(ctx, rec); err != nil {
		return repository.Record{}, err
	}
	return rec, nil
}
