package client

import (
	"context"
	"net"
	"net/smtp"

	"github.com/jordan-wright/email"
	"github.com/oklog/ulid/v2"
)

type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// SMTPMailer sends mail through an SMTP relay. The returned ID is generated
// locally and carried in the X-Delivery-ID header.
type SMTPMailer struct {
	cfg  SMTPConfig
	send func(e *email.Email, addr string, auth smtp.Auth) error
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	return &SMTPMailer{
		cfg: cfg,
		send: func(e *email.Email, addr string, auth smtp.Auth) error {
			return e.Send(addr, auth)
		},
	}
}

func (m *SMTPMailer) Send(ctx context.Context, msg Email) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id := ulid.Make().String()

	e := email.NewEmail()
	e.From = m.cfg.From
	e.To = []string{msg.To}
	e.Subject = msg.Subject
	e.Text = []byte(msg.Text)
	e.HTML = []byte(msg.HTML)
	e.Headers.Set("X-Delivery-ID", id)

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	if err := m.send(e, net.JoinHostPort(m.cfg.Host, m.cfg.Port), auth); err != nil {
		return "", err
	}
	return id, nil
}
