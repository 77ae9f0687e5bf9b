package service

import (
	"context"
	"slices"
	"testing"

	"tenant_auth_backend/internal/onboarding/repository"
	"tenant_auth_backend/platform/apperr"

	"github.com/google/uuid"
)

type fakeRepo struct {
	rows map[[2]uuid.UUID]repository.Record
}

func (r *fakeRepo) Create(_ context.Context, rec repository.Record) error {
	k := [2]uuid.UUID{rec.UserID, rec.OrganizationID}
	if _, ok := r.rows[k]; ok {
		return repository.ErrExists
	}
	r.rows[k] = rec
	return nil
}

func (r *fakeRepo) Get(_ context.Context, userID, orgID uuid.UUID) (repository.Record, error) {
	rec, ok := r.rows[[2]uuid.UUID{userID, orgID}]
	if !ok {
		return repository.Record{}, repository.ErrNotFound
	}
	rec.Steps = slices.Clone(rec.Steps)
	return rec, nil
}

func (r *fakeRepo) Save(_ context.Context, rec repository.Record) error {
	r.rows[[2]uuid.UUID{rec.UserID, rec.OrganizationID}] = rec
	return nil
}

func stepIDs(steps []repository.Step) []string {
	out := make([]string, 0, len(steps))
	for _, s := range steps {
		out = append(out, s.ID)
	}
	return out
}

func TestStepsForRoles(t *testing.T) {
	member := stepIDs(StepsFor([]string{"member"}))
	if !slices.Equal(member, []string{StepWelcome, StepCompleteProfile, StepExploreFeatures}) {
		t.Fatalf("unexpected member steps %v", member)
	}
	admin := stepIDs(StepsFor([]string{"member", "admin"}))
	if !slices.Equal(admin, []string{StepWelcome, StepCompleteProfile, StepInviteTeam, StepExploreFeatures}) {
		t.Fatalf("unexpected admin steps %v", admin)
	}
}

func TestInitializeIsIdempotent(t *testing.T) {
	svc := New(&fakeRepo{rows: map[[2]uuid.UUID]repository.Record{}})
	userID, orgID := uuid.New(), uuid.New()

	rec, err := svc.Initialize(context.Background(), userID, orgID, []string{"admin"})
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if rec.Status != repository.StatusInProgress || rec.TotalSteps() != 4 || rec.CompletedSteps() != 0 {
		t.Fatalf("unexpected record %+v", rec)
	}

	again, err := svc.Initialize(context.Background(), userID, orgID, nil)
	if err != nil || again.TotalSteps() != 4 {
		t.Fatalf("expected existing record, got %+v %v", again, err)
	}
}

func TestCompleteStepFinishesRecord(t *testing.T) {
	svc := New(&fakeRepo{rows: map[[2]uuid.UUID]repository.Record{}})
	userID, orgID := uuid.New(), uuid.New()
	ctx := context.Background()
	if _, err := svc.Initialize(ctx, userID, orgID, []string{"member"}); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	if _, err := svc.CompleteStep(ctx, userID, orgID, "bogus"); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected unknown step to fail, got %v", err)
	}

	var rec repository.Record
	for _, step := range []string{StepWelcome, StepCompleteProfile, StepExploreFeatures} {
		var err error
		if rec, err = svc.CompleteStep(ctx, userID, orgID, step); err != nil {
			t.Fatalf("complete %s: %v", step, err)
		}
	}
	if rec.Status != repository.StatusCompleted || rec.CompletedAt == nil {
		t.Fatalf("expected completed record, got %+v", rec)
	}
}

func TestGetWithoutRecord(t *testing.T) {
	svc := New(&fakeRepo{rows: map[[2]uuid.UUID]repository.Record{}})
	if _, err := svc.Get(context.Background(), uuid.New(), uuid.New()); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
