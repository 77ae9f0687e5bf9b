// Package notification provides event handlers for sending notifications
// (emails and in-app messages) in response to domain events.
// Domain modules publish events and never talk to email providers directly.
package notification

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"tenant_auth_backend/internal/email"
	"tenant_auth_backend/internal/events"
	apphttp "tenant_auth_backend/internal/http"
	notifhandler "tenant_auth_backend/internal/notification/handler"
	"tenant_auth_backend/internal/notification/inapp"
	"tenant_auth_backend/internal/scheduler"
	"tenant_auth_backend/platform/config"
	"tenant_auth_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// WelcomeQueue defers welcome email delivery to the background worker.
type WelcomeQueue interface {
	EnqueueWelcomeEmail(ctx context.Context, payload scheduler.WelcomeEmailPayload) error
}

// WelcomeRequest describes the welcome email for a freshly registered member.
type WelcomeRequest struct {
	UserID           uuid.UUID
	OrganizationID   uuid.UUID
	Email            string
	FirstName        string
	OrganizationName string
	PortalURL        string
}

type Module struct {
	sender       email.Sender
	cfg          config.NotificationConfig
	log          *logger.Logger
	queue        WelcomeQueue
	inAppService *inapp.Service
	inAppHandler *notifhandler.HTTPHandler
}

// New creates a new notification module.
func New(pool *pgxpool.Pool, sender email.Sender, cfg config.NotificationConfig, log *logger.Logger) *Module {
	return newModule(inapp.NewRepository(pool), sender, cfg, log)
}

func newModule(store inapp.Store, sender email.Sender, cfg config.NotificationConfig, log *logger.Logger) *Module {
	if sender == nil {
		sender = email.NoopSender{}
	}
	if log == nil {
		log = logger.Discard()
	}
	inAppSvc := inapp.NewService(store, log)
	return &Module{
		sender:       sender,
		cfg:          cfg,
		log:          log,
		inAppService: inAppSvc,
		inAppHandler: notifhandler.NewHTTPHandler(inAppSvc),
	}
}

func (m *Module) Name() string { return "notification" }

// RegisterRoutes mounts the in-app notification endpoints.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.inAppHandler.RegisterRoutes(ctx.Protected.Group("/notifications"))
}

// InAppService exposes the in-app service for login enrichment.
func (m *Module) InAppService() *inapp.Service { return m.inAppService }

// SetWelcomeQueue routes welcome emails through the background queue.
func (m *Module) SetWelcomeQueue(q WelcomeQueue) { m.queue = q }

// RegisterHandlers subscribes the module to the events it reacts to.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.EmailVerificationRequested{}.EventName(), m)
	bus.Subscribe(events.PasswordResetRequested{}.EventName(), m)
	bus.Subscribe(events.TenantUserRegistered{}.EventName(), m)
	bus.Subscribe(events.MembershipStatusChanged{}.EventName(), m)
}

func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.EmailVerificationRequested:
		return m.handleEmailVerificationRequested(ctx, e)
	case events.PasswordResetRequested:
		return m.handlePasswordResetRequested(ctx, e)
	case events.TenantUserRegistered:
		return m.handleTenantUserRegistered(ctx, e)
	case events.MembershipStatusChanged:
		return m.handleMembershipStatusChanged(ctx, e)
	default:
		m.log.Warn("unhandled event type", "event", event.EventName())
		return nil
	}
}

// SendWelcome queues the welcome email when a queue is configured and sends
// it inline otherwise.
func (m *Module) SendWelcome(ctx context.Context, req WelcomeRequest) error {
	if strings.TrimSpace(req.Email) == "" {
		return fmt.Errorf("welcome email: recipient required")
	}
	payload := scheduler.WelcomeEmailPayload{
		UserID:           req.UserID.String(),
		OrganizationID:   req.OrganizationID.String(),
		Email:            req.Email,
		FirstName:        req.FirstName,
		OrganizationName: req.OrganizationName,
		PortalURL:        req.PortalURL,
	}
	if m.queue != nil {
		return m.queue.EnqueueWelcomeEmail(ctx, payload)
	}
	return m.DeliverWelcome(ctx, payload)
}

// DeliverWelcome sends a welcome email. The background worker calls it for
// queued tasks.
func (m *Module) DeliverWelcome(ctx context.Context, p scheduler.WelcomeEmailPayload) error {
	err := m.sender.SendWelcomeEmail(ctx, p.Email, email.WelcomeData{
		FirstName:        p.FirstName,
		OrganizationName: p.OrganizationName,
		PortalURL:        p.PortalURL,
	})
	if err != nil {
		m.log.Error("failed to send welcome email",
			"userId", p.UserID,
			"organizationId", p.OrganizationID,
			"error", err,
		)
		return err
	}
	m.log.Info("welcome email sent", "userId", p.UserID, "organizationId", p.OrganizationID)
	return nil
}

func (m *Module) handleEmailVerificationRequested(ctx context.Context, e events.EmailVerificationRequested) error {
	verifyURL := m.buildURL("/verify-email", e.VerifyToken)
	if err := m.sender.SendVerificationEmail(ctx, e.Email, verifyURL); err != nil {
		m.log.Error("failed to send verification email", "userId", e.UserID, "error", err)
		return err
	}
	m.log.Info("verification email sent", "userId", e.UserID)
	return nil
}

func (m *Module) handlePasswordResetRequested(ctx context.Context, e events.PasswordResetRequested) error {
	resetURL := m.buildURL("/reset-password", e.ResetToken)
	if err := m.sender.SendPasswordResetEmail(ctx, e.Email, resetURL); err != nil {
		m.log.Error("failed to send password reset email", "userId", e.UserID, "error", err)
		return err
	}
	m.log.Info("password reset email sent", "userId", e.UserID)
	return nil
}

func (m *Module) handleTenantUserRegistered(ctx context.Context, e events.TenantUserRegistered) error {
	name := e.OrganizationName
	if name == "" {
		name = "your organization"
	}
	_, err := m.inAppService.Send(ctx, inapp.SendParams{
		OrgID:    e.OrganizationID,
		UserID:   e.UserID,
		Title:    "Welcome to " + name,
		Content:  "Complete your profile to get the most out of the portal.",
		Category: "success",
	})
	return err
}

func (m *Module) handleMembershipStatusChanged(ctx context.Context, e events.MembershipStatusChanged) error {
	category := "info"
	if e.Status != "active" {
		category = "warning"
	}
	_, err := m.inAppService.Send(ctx, inapp.SendParams{
		OrgID:    e.OrganizationID,
		UserID:   e.UserID,
		Title:    "Membership updated",
		Content:  fmt.Sprintf("Your membership changed from %s to %s.", e.PreviousStatus, e.Status),
		Category: category,
	})
	return err
}

func (m *Module) buildURL(path, token string) string {
	base := ""
	if m.cfg != nil {
		base = strings.TrimRight(m.cfg.GetPortalBaseURL(), "/")
	}
	return base + path + "?token=" + url.QueryEscape(token)
}

var (
	_ apphttp.Module                = (*Module)(nil)
	_ events.Handler                = (*Module)(nil)
	_ scheduler.WelcomeEmailHandler = (*Module)(nil)
)
