package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

type baseEmailData struct {
	Title      string
	Heading    string
	Subheading string
	CTALabel   string
	CTAURL     string
}

type welcomeEmailData struct {
	baseEmailData
	FirstName        string
	OrganizationName string
}

func renderEmailTemplate(name string, data any) (string, error) {
	templates := []string{"templates/base.html", "templates/" + name}
	tmpl, err := template.New("base.html").ParseFS(templateFS, templates...)
	if err != nil {
		return "", fmt.Errorf("parse email template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "email", data); err != nil {
		return "", fmt.Errorf("execute email template %s: %w", name, err)
	}
	return buf.String(), nil
}

func renderVerification(verifyURL string) (string, error) {
	return renderEmailTemplate("verification.html", baseEmailData{
		Title:    "Verify your email address",
		Heading:  "Verify your email address",
		CTALabel: "Verify email",
		CTAURL:   verifyURL,
	})
}

func renderPasswordReset(resetURL string) (string, error) {
	return renderEmailTemplate("password_reset.html", baseEmailData{
		Title:    "Reset your password",
		Heading:  "Reset your password",
		CTALabel: "Choose a new password",
		CTAURL:   resetURL,
	})
}

func renderWelcome(data WelcomeData) (string, error) {
	return renderEmailTemplate("welcome.html", welcomeEmailData{
		baseEmailData: baseEmailData{
			Title:    fmt.Sprintf(subjectWelcomeFmt, data.OrganizationName),
			Heading:  fmt.Sprintf(subjectWelcomeFmt, data.OrganizationName),
			CTALabel: "Open the portal",
			CTAURL:   data.PortalURL,
		},
		FirstName:        data.FirstName,
		OrganizationName: data.OrganizationName,
	})
}
