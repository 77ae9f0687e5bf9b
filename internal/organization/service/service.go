package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"tenant_auth_backend/internal/organization/domain"
	"tenant_auth_backend/internal/organization/repository"
	"tenant_auth_backend/platform/apperr"

	"github.com/google/uuid"
)

const organizationNotFound = "organization not found"

// Repository is the persistence the service needs.
type Repository interface {
	Get(ctx context.Context, id uuid.UUID) (domain.Organization, error)
	List(ctx context.Context, limit, offset int) ([]domain.Organization, error)
	Create(ctx context.Context, org *domain.Organization) error
	IncrementUsers(ctx context.Context, id uuid.UUID) (int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.Status) error
}

type Service struct {
	repo  Repository
	tiers domain.TierMatrix
}

func New(repo Repository, tiers domain.TierMatrix) *Service {
	return &Service{repo: repo, tiers: tiers}
}

func (s *Service) GetOrganization(ctx context.Context, id uuid.UUID) (domain.Organization, error) {
	org, err := s.repo.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Organization{}, apperr.NotFound(organizationNotFound).WithCode(domain.CodeNotFound)
	}
	return org, err
}

func (s *Service) ListOrganizations(ctx context.Context, limit, offset int) ([]domain.Organization, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, limit, offset)
}

// CanAcceptNewUsers loads the organization and evaluates its admission rules.
func (s *Service) CanAcceptNewUsers(ctx context.Context, id uuid.UUID) (domain.Acceptance, error) {
	org, err := s.GetOrganization(ctx, id)
	if err != nil {
		return domain.Acceptance{}, err
	}
	return org.CanAcceptNewUsers(), nil
}

// ValidateOrganization reports whether members of id may sign in.
func (s *Service) ValidateOrganization(ctx context.Context, id uuid.UUID) (domain.Acceptance, error) {
	org, err := s.GetOrganization(ctx, id)
	if err != nil {
		return domain.Acceptance{}, err
	}
	return org.UsableForLogin(), nil
}

func (s *Service) IncrementUsage(ctx context.Context, id uuid.UUID, metric string) error {
	if metric != domain.MetricUsers {
		return apperr.Validation("unsupported usage metric").
			WithCode(domain.CodeUnsupportedMetric).
			WithDetail("metric", metric)
	}
	_, err := s.repo.IncrementUsers(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound(organizationNotFound).WithCode(domain.CodeNotFound)
	}
	return err
}

func (s *Service) Features(org domain.Organization) domain.FeatureSet {
	return s.tiers.Features(org)
}

type CreateInput struct {
	Name              string
	Slug              string
	AllowedDomains    []string
	RequireInvitation bool
	Tier              domain.Tier
	MaxUsers          *int
	Features          map[string]bool
	Settings          domain.Settings
}

func (s *Service) CreateOrganization(ctx context.Context, in CreateInput) (domain.Organization, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Organization{}, apperr.Validation("organization name is required")
	}
	tier := in.Tier
	if tier == "" {
		tier = domain.TierFree
	}
	if _, ok := s.tiers.Tiers[tier]; !ok {
		return domain.Organization{}, apperr.Validation("unknown subscription tier").WithDetail("tier", string(tier))
	}
	maxUsers := s.tiers.Plan(tier).MaxUsers
	if in.MaxUsers != nil {
		maxUsers = *in.MaxUsers
	}

	domains := make([]string, 0, len(in.AllowedDomains))
	for _, d := range in.AllowedDomains {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			domains = append(domains, d)
		}
	}

	org := domain.Organization{
		ID:                uuid.New(),
		Name:              name,
		Slug:              strings.ToLower(strings.TrimSpace(in.Slug)),
		Status:            domain.StatusActive,
		AllowedDomains:    domains,
		RequireInvitation: in.RequireInvitation,
		SubscriptionTier:  tier,
		Features:          in.Features,
		Limits:            domain.Limits{MaxUsers: maxUsers},
		Settings:          in.Settings,
		CreatedAt:         time.Now().UTC(),
	}
	if org.Slug == "" {
		org.Slug = org.ID.String()
	}

	if err := s.repo.Create(ctx, &org); err != nil {
		if errors.Is(err, repository.ErrSlugTaken) {
			return domain.Organization{}, apperr.Conflict("organization slug already in use").WithCode("SLUG_TAKEN")
		}
		return domain.Organization{}, err
	}
	return org, nil
}

func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.Status) error {
	if !status.Valid() {
		return apperr.Validation("invalid organization status").WithDetail("status", string(status))
	}
	err := s.repo.UpdateStatus(ctx, id, status)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound(organizationNotFound).WithCode(domain.CodeNotFound)
	}
	return err
}
