package template

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPasswordReset(t *testing.T) {
	exp := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)
	url := "https://app.example.com/password/reset?code=abc&exp=1772370000000"

	msg := PasswordReset("alice@example.com", LinkData{URL: url, ExpiresAt: exp})

	assert.Equal(t, "alice@example.com", msg.To)
	assert.Equal(t, "Password Reset Request", msg.Subject)
	assert.Contains(t, msg.Text, url)
	assert.Contains(t, msg.Text, "Sun, 01 Mar 2026 13:00:00 UTC")
	assert.Contains(t, msg.HTML, "code=abc&amp;exp=1772370000000")
}

func TestVerifyEmail(t *testing.T) {
	msg := VerifyEmail("bob@example.com", LinkData{URL: "https://app.example.com/email/verify/xyz"})

	assert.Equal(t, "Verify Email Address", msg.Subject)
	assert.Contains(t, msg.HTML, `href="https://app.example.com/email/verify/xyz"`)
	assert.NotContains(t, msg.Text, "{{")
	assert.NotContains(t, msg.HTML, "{{")
}
