// Resend HTTP API client for transactional email.
//
// Environment:
//   - RESEND_API_KEY: API key (re_...)
//   - RESEND_BASE_URL (default: https://api.resend.com)
//   - MAIL_FROM: sender, e.g. "Auth <noreply@example.com>"

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type ResendClient struct {
	apiKey     string
	baseURL    string
	from       string
	httpClient *http.Client
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text,omitempty"`
	HTML    string   `json:"html,omitempty"`
}

type resendResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	Message string `json:"message,omitempty"`
}

func NewResendClient(apiKey, baseURL, from string) *ResendClient {
	return &ResendClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		from:    from,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *ResendClient) IsConfigured() bool {
	return c.apiKey != "" && c.baseURL != "" && c.from != ""
}

// Send delivers msg and returns the provider's email ID.
func (c *ResendClient) Send(ctx context.Context, msg Email) (string, error) {
	if !c.IsConfigured() {
		return "", fmt.Errorf("resend api key, base url or sender not configured")
	}

	payload, err := json.Marshal(resendRequest{
		From:    c.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Text:    msg.Text,
		HTML:    msg.HTML,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/emails", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send email: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var out resendResponse
	if len(body) > 0 {
		if err := json.Unmarshal(body, &out); err != nil && resp.StatusCode < 300 {
			return "", fmt.Errorf("failed to parse response: %w", err)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if out.Message != "" {
			return "", fmt.Errorf("resend API error (%d): %s", resp.StatusCode, out.Message)
		}
		return "", fmt.Errorf("resend API error: status %d", resp.StatusCode)
	}
	if out.ID == "" {
		return "", fmt.Errorf("resend API returned no email id")
	}

	return out.ID, nil
}
