package service

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"tenant_auth_backend/internal/adapters/storage"
	"tenant_auth_backend/internal/profile/repository"
	"tenant_auth_backend/platform/apperr"

	"github.com/google/uuid"
)

type key struct{ user, org uuid.UUID }

type fakeRepo struct {
	rows map[key]repository.Profile
	err  error
}

func newFakeRepo() *fakeRepo { return &fakeRepo{rows: map[key]repository.Profile{}} }

func (r *fakeRepo) Upsert(_ context.Context, p repository.Profile) (repository.Profile, error) {
	k := key{p.UserID, p.OrganizationID}
	if existing, ok := r.rows[k]; ok {
		if existing.FirstName == "" {
			existing.FirstName = p.FirstName
		}
		r.rows[k] = existing
		return existing, nil
	}
	r.rows[k] = p
	return p, nil
}

func (r *fakeRepo) Get(_ context.Context, userID, orgID uuid.UUID) (repository.Profile, error) {
	if r.err != nil {
		return repository.Profile{}, r.err
	}
	p, ok := r.rows[key{userID, orgID}]
	if !ok {
		return repository.Profile{}, repository.ErrNotFound
	}
	return p, nil
}

func (r *fakeRepo) Update(_ context.Context, userID, orgID uuid.UUID, first, last, phone, job *string) (repository.Profile, error) {
	k := key{userID, orgID}
	p, ok := r.rows[k]
	if !ok {
		return repository.Profile{}, repository.ErrNotFound
	}
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&p.FirstName, first)
	set(&p.LastName, last)
	set(&p.Phone, phone)
	set(&p.JobTitle, job)
	r.rows[k] = p
	return p, nil
}

func (r *fakeRepo) UpdatePreferences(_ context.Context, userID, orgID uuid.UUID, doc repository.PreferenceDoc) error {
	k := key{userID, orgID}
	p, ok := r.rows[k]
	if !ok {
		return repository.ErrNotFound
	}
	if doc.Language != nil {
		p.Preferences.Language = doc.Language
	}
	if doc.EmailNotifications != nil {
		p.Preferences.EmailNotifications = doc.EmailNotifications
	}
	r.rows[k] = p
	return nil
}

func (r *fakeRepo) SetAvatarKey(_ context.Context, userID, orgID uuid.UUID, fileKey *string) error {
	k := key{userID, orgID}
	p, ok := r.rows[k]
	if !ok {
		return repository.ErrNotFound
	}
	p.AvatarKey = fileKey
	r.rows[k] = p
	return nil
}

type fakeStore struct {
	deleted []string
}

func (f *fakeStore) GenerateUploadURL(_ context.Context, folder, fileName, contentType string, size int64) (*storage.PresignedURL, error) {
	if err := storage.ValidateImageUpload(contentType, size); err != nil {
		return nil, err
	}
	k := storage.ObjectKey(folder, fileName)
	return &storage.PresignedURL{URL: "https://minio.local/" + k, FileKey: k, ExpiresAt: time.Now().Add(time.Minute)}, nil
}

func (f *fakeStore) GenerateDownloadURL(_ context.Context, fileKey string) (*storage.PresignedURL, error) {
	return &storage.PresignedURL{URL: "https://minio.local/" + fileKey, FileKey: fileKey}, nil
}

func (f *fakeStore) DeleteObject(_ context.Context, fileKey string) error {
	f.deleted = append(f.deleted, fileKey)
	return nil
}

func TestCreateTenantProfileSanitizesAndNormalizes(t *testing.T) {
	repo := newFakeRepo()
	svc := New(repo, nil, "US")
	userID, orgID := uuid.New(), uuid.New()

	p, err := svc.CreateTenantProfile(context.Background(), userID, orgID, Seed{
		FirstName: "<b>Ada</b>",
		LastName:  "  Lovelace ",
		Phone:     "(415) 555-2671",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.FirstName != "Ada" || p.LastName != "Lovelace" {
		t.Fatalf("expected sanitized names, got %q %q", p.FirstName, p.LastName)
	}
	if p.Phone != "+14155552671" {
		t.Fatalf("expected E.164 phone, got %q", p.Phone)
	}

	if _, err := svc.CreateTenantProfile(context.Background(), userID, orgID, Seed{FirstName: "Other"}); err != nil {
		t.Fatalf("second create: %v", err)
	}
	if repo.rows[key{userID, orgID}].FirstName != "Ada" {
		t.Fatalf("expected upsert to keep existing values")
	}
}

func TestCompletionStatus(t *testing.T) {
	repo := newFakeRepo()
	svc := New(repo, nil, "US")
	userID, orgID := uuid.New(), uuid.New()
	ctx := context.Background()

	status, err := svc.CompletionStatus(ctx, userID, orgID)
	if err != nil || status.IsComplete || len(status.MissingFields) != 4 {
		t.Fatalf("expected all fields missing without a profile, got %+v %v", status, err)
	}

	repo.rows[key{userID, orgID}] = repository.Profile{FirstName: "Ada", LastName: "Lovelace", Phone: "12345", JobTitle: "Engineer"}
	status, _ = svc.CompletionStatus(ctx, userID, orgID)
	if status.IsComplete || !slices.Equal(status.MissingFields, []string{FieldPhone}) {
		t.Fatalf("expected only phone missing, got %+v", status)
	}

	repo.rows[key{userID, orgID}] = repository.Profile{FirstName: "Ada", LastName: "Lovelace", Phone: "+14155552671", JobTitle: "Engineer"}
	status, _ = svc.CompletionStatus(ctx, userID, orgID)
	if !status.IsComplete || len(status.MissingFields) != 0 {
		t.Fatalf("expected complete profile, got %+v", status)
	}

	repo.err = errors.New("db down")
	if _, err := svc.CompletionStatus(ctx, userID, orgID); err == nil {
		t.Fatalf("expected repository error to surface")
	}
}

func TestPreferencesDefaultsAndOverrides(t *testing.T) {
	repo := newFakeRepo()
	svc := New(repo, nil, "")
	userID, orgID := uuid.New(), uuid.New()
	ctx := context.Background()

	prefs, err := svc.Preferences(ctx, userID, orgID)
	if err != nil || prefs != DefaultPreferences() {
		t.Fatalf("expected defaults, got %+v %v", prefs, err)
	}

	repo.rows[key{userID, orgID}] = repository.Profile{}
	lang, off := "nl", false
	prefs, err = svc.UpdatePreferences(ctx, userID, orgID, repository.PreferenceDoc{Language: &lang, EmailNotifications: &off})
	if err != nil {
		t.Fatalf("update preferences: %v", err)
	}
	if prefs.Language != "nl" || prefs.EmailNotifications || prefs.Timezone != "UTC" {
		t.Fatalf("unexpected merged preferences %+v", prefs)
	}
}

func TestUpdateProfileRejectsInvalidPhone(t *testing.T) {
	repo := newFakeRepo()
	svc := New(repo, nil, "US")
	userID, orgID := uuid.New(), uuid.New()
	repo.rows[key{userID, orgID}] = repository.Profile{}

	bad := "not a phone"
	if _, err := svc.UpdateProfile(context.Background(), userID, orgID, Update{Phone: &bad}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	title := "  CTO  "
	p, err := svc.UpdateProfile(context.Background(), userID, orgID, Update{JobTitle: &title})
	if err != nil || p.JobTitle != "CTO" {
		t.Fatalf("expected trimmed job title, got %+v %v", p, err)
	}
}

func TestAvatarLifecycle(t *testing.T) {
	repo := newFakeRepo()
	store := &fakeStore{}
	svc := New(repo, store, "US")
	userID, orgID := uuid.New(), uuid.New()
	repo.rows[key{userID, orgID}] = repository.Profile{}
	ctx := context.Background()

	if _, err := svc.PresignAvatarUpload(ctx, userID, orgID, "me.pdf", "application/pdf", 10); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected pdf to be rejected, got %v", err)
	}
	presigned, err := svc.PresignAvatarUpload(ctx, userID, orgID, "me.png", "image/png", 2048)
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	if !strings.HasPrefix(presigned.FileKey, orgID.String()+"/"+userID.String()+"/") {
		t.Fatalf("expected key under the profile folder, got %q", presigned.FileKey)
	}

	if err := svc.ConfirmAvatar(ctx, userID, orgID, "someone-else/avatar.png"); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected foreign key to be rejected, got %v", err)
	}
	if err := svc.ConfirmAvatar(ctx, userID, orgID, presigned.FileKey); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, err := svc.AvatarDownloadURL(ctx, userID, orgID); err != nil {
		t.Fatalf("download url: %v", err)
	}
	if err := svc.DeleteAvatar(ctx, userID, orgID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(store.deleted) != 1 || repo.rows[key{userID, orgID}].AvatarKey != nil {
		t.Fatalf("expected object removed and key cleared")
	}
}

func TestPresignWithoutStorage(t *testing.T) {
	svc := New(newFakeRepo(), nil, "US")
	if _, err := svc.PresignAvatarUpload(context.Background(), uuid.New(), uuid.New(), "a.png", "image/png", 1); !apperr.Is(err, apperr.KindBadRequest) {
		t.Fatalf("expected bad request, got %v", err)
	}
}
