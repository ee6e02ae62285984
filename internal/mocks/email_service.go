package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"rentcore/internal/service/email"
)

type EmailService struct {
	mock.Mock
}

func (m *EmailService) SendDecisionEmail(ctx context.Context, d email.Decision) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}
