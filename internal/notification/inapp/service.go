package inapp

import (
	"context"
	"strings"

	"tenant_auth_backend/platform/apperr"
	"tenant_auth_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	DefaultPendingLimit = 10
	maxPendingLimit     = 50
)

type Store interface {
	Create(ctx context.Context, p CreateParams) (Notification, error)
	Pending(ctx context.Context, userID, orgID uuid.UUID, limit int) ([]Notification, error)
	CountUnread(ctx context.Context, userID, orgID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, userID, orgID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID, orgID uuid.UUID) error
}

var _ Store = (*Repository)(nil)

type Service struct {
	repo Store
	log  *logger.Logger
}

func NewService(repo Store, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Discard()
	}
	return &Service{repo: repo, log: log}
}

type SendParams struct {
	OrgID    uuid.UUID
	UserID   uuid.UUID
	Title    string
	Content  string
	Category string // "info", "success", "warning", "error"
}

func (s *Service) Send(ctx context.Context, p SendParams) (Notification, error) {
	if s == nil || s.repo == nil {
		return Notification{}, apperr.Internal("in-app notification service not configured")
	}
	if p.OrgID == uuid.Nil || p.UserID == uuid.Nil {
		return Notification{}, apperr.Validation("organizationId and userId are required")
	}
	p.Title = strings.TrimSpace(p.Title)
	p.Content = strings.TrimSpace(p.Content)
	if p.Title == "" || p.Content == "" {
		return Notification{}, apperr.Validation("title and content are required")
	}
	if p.Category == "" {
		p.Category = "info"
	}

	n, err := s.repo.Create(ctx, CreateParams{
		OrganizationID: p.OrgID,
		UserID:         p.UserID,
		Title:          p.Title,
		Content:        p.Content,
		Category:       p.Category,
	})
	if err != nil {
		s.log.Error("failed to persist in-app notification", "error", err, "userId", p.UserID)
		return Notification{}, err
	}
	return n, nil
}

// Pending returns the newest unread notifications, at most limit of them.
func (s *Service) Pending(ctx context.Context, userID, orgID uuid.UUID, limit int) ([]Notification, error) {
	if limit < 1 {
		limit = DefaultPendingLimit
	}
	if limit > maxPendingLimit {
		limit = maxPendingLimit
	}
	return s.repo.Pending(ctx, userID, orgID, limit)
}

func (s *Service) CountUnread(ctx context.Context, userID, orgID uuid.UUID) (int, error) {
	return s.repo.CountUnread(ctx, userID, orgID)
}

func (s *Service) MarkRead(ctx context.Context, userID, orgID, id uuid.UUID) error {
	return s.repo.MarkRead(ctx, userID, orgID, id)
}

func (s *Service) MarkAllRead(ctx context.Context, userID, orgID uuid.UUID) error {
	return s.repo.MarkAllRead(ctx, userID, orgID)
}
