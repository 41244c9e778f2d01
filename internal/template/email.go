// Package template renders the transactional email bodies.
//
// Supported variables:
//
//	{{link.url}}, {{link.expires_at}}
package template

import (
	"html"
	"strings"
	"time"

	"github.com/kube-rca/authd/internal/client"
)

// LinkData is the variable set shared by all account emails.
type LinkData struct {
	URL       string
	ExpiresAt time.Time
}

type emailTemplate struct {
	subject string
	text    string
	html    string
}

var verifyEmail = emailTemplate{
	subject: "Verify Email Address",
	text:    "Click on the link below to verify your email address.\n\n{{link.url}}\n\nThe link expires at {{link.expires_at}}.",
	html: `<!doctype html><html><body>` +
		`<h1>Verify your email address</h1>` +
		`<p>Click on the link below to verify your email address.</p>` +
		`<p><a href="{{link.url}}">Verify email</a></p>` +
		`<p>The link expires at {{link.expires_at}}.</p>` +
		`</body></html>`,
}

var passwordReset = emailTemplate{
	subject: "Password Reset Request",
	text:    "You requested a password reset. Click on the link below to choose a new password.\n\n{{link.url}}\n\nThe link expires at {{link.expires_at}}. If you did not request this, ignore this email.",
	html: `<!doctype html><html><body>` +
		`<h1>Password reset</h1>` +
		`<p>You requested a password reset. Click on the link below to choose a new password.</p>` +
		`<p><a href="{{link.url}}">Reset password</a></p>` +
		`<p>The link expires at {{link.expires_at}}. If you did not request this, ignore this email.</p>` +
		`</body></html>`,
}

// VerifyEmail renders the account verification email addressed to to.
func VerifyEmail(to string, link LinkData) client.Email {
	return verifyEmail.render(to, link)
}

// PasswordReset renders the password reset email addressed to to.
func PasswordReset(to string, link LinkData) client.Email {
	return passwordReset.render(to, link)
}

func (t emailTemplate) render(to string, link LinkData) client.Email {
	expiresAt := ""
	if !link.ExpiresAt.IsZero() {
		expiresAt = link.ExpiresAt.UTC().Format(time.RFC1123)
	}

	text := strings.NewReplacer(
		"{{link.url}}", link.URL,
		"{{link.expires_at}}", expiresAt,
	)
	// HTML bodies get escaped values.
	markup := strings.NewReplacer(
		"{{link.url}}", html.EscapeString(link.URL),
		"{{link.expires_at}}", html.EscapeString(expiresAt),
	)

	return client.Email{
		To:      to,
		Subject: t.subject,
		Text:    text.Replace(t.text),
		HTML:    markup.Replace(t.html),
	}
}
