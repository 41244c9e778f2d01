package mock

import (
	"context"

	"github.com/kube-rca/authd/internal/client"
	"github.com/stretchr/testify/mock"
)

type MailerMock struct {
	mock.Mock
}

func (m *MailerMock) Send(ctx context.Context, msg client.Email) (string, error) {
	args := m.Called(ctx, msg)
	return args.String(0), args.Error(1)
}
