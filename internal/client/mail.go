package client

import (
	"context"

	"github.com/kube-rca/authd/internal/logging"
	"github.com/oklog/ulid/v2"
)

// Email is one outbound message. Text and HTML are alternative bodies.
type Email struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// LogMailer writes messages to the logger instead of delivering them.
// Intended for local development with MAIL_PROVIDER=log.
type LogMailer struct {
	logger logging.Logger
}

func NewLogMailer(logger logging.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(ctx context.Context, msg Email) (string, error) {
	id := ulid.Make().String()
	m.logger.Info(ctx, "email not delivered (log provider)",
		"id", id,
		"to", msg.To,
		"subject", msg.Subject,
		"text", msg.Text,
	)
	return id, nil
}
