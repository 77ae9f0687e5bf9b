package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tenant_auth_backend/internal/adapters/storage"
	"tenant_auth_backend/internal/profile/repository"
	"tenant_auth_backend/platform/apperr"
	"tenant_auth_backend/platform/phone"
	"tenant_auth_backend/platform/sanitize"

	"github.com/google/uuid"
)

const (
	maxNameLength     = 100
	maxJobTitleLength = 120

	FieldFirstName = "firstName"
	FieldLastName  = "lastName"
	FieldPhone     = "phone"
	FieldJobTitle  = "jobTitle"

	profileNotFound = "profile not found"
)

// Repository is the persistence the service needs.
type Repository interface {
	Upsert(ctx context.Context, p repository.Profile) (repository.Profile, error)
	Get(ctx context.Context, userID, organizationID uuid.UUID) (repository.Profile, error)
	Update(ctx context.Context, userID, organizationID uuid.UUID, firstName, lastName, phone, jobTitle *string) (repository.Profile, error)
	UpdatePreferences(ctx context.Context, userID, organizationID uuid.UUID, prefs repository.PreferenceDoc) error
	SetAvatarKey(ctx context.Context, userID, organizationID uuid.UUID, key *string) error
}

type Seed struct {
	FirstName string
	LastName  string
	Phone     string
	JobTitle  string
}

type CompletionStatus struct {
	IsComplete    bool     `json:"isComplete"`
	MissingFields []string `json:"missingFields"`
}

type Preferences struct {
	Language           string `json:"language"`
	Timezone           string `json:"timezone"`
	EmailNotifications bool   `json:"emailNotifications"`
	InAppNotifications bool   `json:"inAppNotifications"`
}

// DefaultPreferences apply to users who never changed a setting.
func DefaultPreferences() Preferences {
	return Preferences{Language: "en", Timezone: "UTC", EmailNotifications: true, InAppNotifications: true}
}

type Service struct {
	repo   Repository
	store  storage.ObjectStore
	region string
}

// New builds the service. store may be nil when object storage is disabled.
func New(repo Repository, store storage.ObjectStore, phoneRegion string) *Service {
	if phoneRegion == "" {
		phoneRegion = phone.DefaultRegion
	}
	return &Service{repo: repo, store: store, region: phoneRegion}
}

// CreateTenantProfile creates the profile or fills blanks on an existing one.
func (s *Service) CreateTenantProfile(ctx context.Context, userID, organizationID uuid.UUID, seed Seed) (repository.Profile, error) {
	return s.repo.Upsert(ctx, repository.Profile{
		UserID:         userID,
		OrganizationID: organizationID,
		FirstName:      sanitize.Name(seed.FirstName, maxNameLength),
		LastName:       sanitize.Name(seed.LastName, maxNameLength),
		Phone:          phone.NormalizeE164(sanitize.Text(seed.Phone), s.region),
		JobTitle:       sanitize.Name(seed.JobTitle, maxJobTitleLength),
	})
}

func (s *Service) GetProfile(ctx context.Context, userID, organizationID uuid.UUID) (repository.Profile, error) {
	p, err := s.repo.Get(ctx, userID, organizationID)
	if errors.Is(err, repository.ErrNotFound) {
		return repository.Profile{}, apperr.NotFound(profileNotFound)
	}
	return p, err
}

// CompletionStatus lists required fields still missing. A user without a
// profile row is missing all of them.
func (s *Service) CompletionStatus(ctx context.Context, userID, organizationID uuid.UUID) (CompletionStatus, error) {
	p, err := s.repo.Get(ctx, userID, organizationID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return CompletionStatus{}, err
	}
	return s.completion(p), nil
}

func (s *Service) completion(p repository.Profile) CompletionStatus {
	missing := make([]string, 0, 4)
	if strings.TrimSpace(p.FirstName) == "" {
		missing = append(missing, FieldFirstName)
	}
	if strings.TrimSpace(p.LastName) == "" {
		missing = append(missing, FieldLastName)
	}
	if !phone.IsValid(p.Phone, s.region) {
		missing = append(missing, FieldPhone)
	}
	if strings.TrimSpace(p.JobTitle) == "" {
		missing = append(missing, FieldJobTitle)
	}
	return CompletionStatus{IsComplete: len(missing) == 0, MissingFields: missing}
}

// Preferences resolves stored preferences over the defaults.
func (s *Service) Preferences(ctx context.Context, userID, organizationID uuid.UUID) (Preferences, error) {
	prefs := DefaultPreferences()
	p, err := s.repo.Get(ctx, userID, organizationID)
	if errors.Is(err, repository.ErrNotFound) {
		return prefs, nil
	}
	if err != nil {
		return Preferences{}, err
	}
	doc := p.Preferences
	if doc.Language != nil {
		prefs.Language = *doc.Language
	}
	if doc.Timezone != nil {
		prefs.Timezone = *doc.Timezone
	}
	if doc.EmailNotifications != nil {
		prefs.EmailNotifications = *doc.EmailNotifications
	}
	if doc.InAppNotifications != nil {
		prefs.InAppNotifications = *doc.InAppNotifications
	}
	return prefs, nil
}

type Update struct {
	FirstName *string
	LastName  *string
	Phone     *string
	JobTitle  *string
}

func (s *Service) UpdateProfile(ctx context.Context, userID, organizationID uuid.UUID, in Update) (repository.Profile, error) {
	clean := func(v *string, max int) *string {
		if v == nil {
			return nil
		}
		out := sanitize.Name(*v, max)
		return &out
	}
	var phoneValue *string
	if in.Phone != nil {
		normalized, ok := phone.Parse(*in.Phone, s.region)
		if !ok && strings.TrimSpace(*in.Phone) != "" {
			return repository.Profile{}, apperr.Validation("invalid phone number").WithDetail(FieldPhone, "invalid")
		}
		phoneValue = &normalized
	}

	p, err := s.repo.Update(ctx, userID, organizationID,
		clean(in.FirstName, maxNameLength), clean(in.LastName, maxNameLength), phoneValue, clean(in.JobTitle, maxJobTitleLength))
	if errors.Is(err, repository.ErrNotFound) {
		return repository.Profile{}, apperr.NotFound(profileNotFound)
	}
	return p, err
}

func (s *Service) UpdatePreferences(ctx context.Context, userID, organizationID uuid.UUID, doc repository.PreferenceDoc) (Preferences, error) {
	if err := s.repo.UpdatePreferences(ctx, userID, organizationID, doc); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Preferences{}, apperr.NotFound(profileNotFound)
		}
		return Preferences{}, err
	}
	return s.Preferences(ctx, userID, organizationID)
}

// PresignAvatarUpload returns a URL the client PUTs the image to. The key is
// attached to the profile by ConfirmAvatar after the upload.
func (s *Service) PresignAvatarUpload(ctx context.Context, userID, organizationID uuid.UUID, fileName, contentType string, sizeBytes int64) (*storage.PresignedURL, error) {
	if s.store == nil {
		return nil, apperr.BadRequest("avatar storage is not configured")
	}
	presigned, err := s.store.GenerateUploadURL(ctx, avatarFolder(userID, organizationID), fileName, contentType, sizeBytes)
	if err != nil {
		return nil, apperr.Validation(err.Error())
	}
	return presigned, nil
}

func (s *Service) ConfirmAvatar(ctx context.Context, userID, organizationID uuid.UUID, fileKey string) error {
	if !strings.HasPrefix(fileKey, avatarFolder(userID, organizationID)+"/") {
		return apperr.Validation("file key does not belong to this profile")
	}
	if err := s.repo.SetAvatarKey(ctx, userID, organizationID, &fileKey); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound(profileNotFound)
		}
		return err
	}
	return nil
}

func (s *Service) AvatarDownloadURL(ctx context.Context, userID, organizationID uuid.UUID) (*storage.PresignedURL, error) {
	if s.store == nil {
		return nil, apperr.BadRequest("avatar storage is not configured")
	}
	p, err := s.GetProfile(ctx, userID, organizationID)
	if err != nil {
		return nil, err
	}
	if p.AvatarKey == nil {
		return nil, apperr.NotFound("avatar not set")
	}
	return s.store.GenerateDownloadURL(ctx, *p.AvatarKey)
}

func (s *Service) DeleteAvatar(ctx context.Context, userID, organizationID uuid.UUID) error {
	p, err := s.GetProfile(ctx, userID, organizationID)
	if err != nil {
		return err
	}
	if p.AvatarKey == nil {
		return nil
	}
	if s.store != nil {
		if err := s.store.DeleteObject(ctx, *p.AvatarKey); err != nil {
			return fmt.Errorf("delete avatar object: %w", err)
		}
	}
	return s.repo.SetAvatarKey(ctx, userID, organizationID, nil)
}

func avatarFolder(userID, organizationID uuid.UUID) string {
	return organizationID.String() + "/" + userID.String()
}
