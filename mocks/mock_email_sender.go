package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockEmailSender is a mock implementation of port.EmailSender.
type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) SendAnalysisReadyEmail(ctx context.Context, toEmail, toName, contractName, contractID string) error {
	args := m.Called(ctx, toEmail, toName, contractName, contractID)
	return args.Error(0)
}
