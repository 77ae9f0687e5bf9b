package email

import "context"

// Sender delivers transactional email.
type Sender interface {
	SendVerificationEmail(ctx context.Context, toEmail, verifyURL string) error
	SendPasswordResetEmail(ctx context.Context, toEmail, resetURL string) error
	SendWelcomeEmail(ctx context.Context, toEmail string, data WelcomeData) error
}

// WelcomeData fills the welcome template.
type WelcomeData struct {
	FirstName        string
	OrganizationName string
	PortalURL        string
}

// NoopSender drops every message. Used when email is disabled.
type NoopSender struct{}

func (NoopSender) SendVerificationEmail(context.Context, string, string) error { return nil }

func (NoopSender) SendPasswordResetEmail(context.Context, string, string) error { return nil }

func (NoopSender) SendWelcomeEmail(context.Context, string, WelcomeData) error { return nil }

var (
	_ Sender = NoopSender{}
	_ Sender = (*SMTPSender)(nil)
)
