package mocks

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"clausewise/internal/domain"
	"clausewise/internal/service"
)

// MockContractService is a mock implementation of service.ContractService.
type MockContractService struct {
	mock.Mock
}

func (m *MockContractService) Prepare(ctx context.Context, input service.AnalyzeInput) (*domain.Document, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockContractService) Analyze(ctx context.Context, userID uuid.UUID, doc domain.Document) <-chan domain.ProgressEvent {
	args := m.Called(ctx, userID, doc)
	return args.Get(0).(<-chan domain.ProgressEvent)
}

func (m *MockContractService) List(ctx context.Context, userID uuid.UUID, offset, limit int) ([]domain.Contract, int, error) {
	args := m.Called(ctx, userID, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Contract), args.Int(1), args.Error(2)
}

func (m *MockContractService) Get(ctx context.Context, userID, contractID uuid.UUID) (*domain.Contract, error) {
	args := m.Called(ctx, userID, contractID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Contract), args.Error(1)
}

func (m *MockContractService) Delete(ctx context.Context, userID, contractID uuid.UUID) error {
	args := m.Called(ctx, userID, contractID)
	return args.Error(0)
}

func (m *MockContractService) Export(ctx context.Context, userID uuid.UUID, format domain.ExportFormat, w io.Writer) error {
	args := m.Called(ctx, userID, format, w)
	return args.Error(0)
}

func (m *MockContractService) Wait(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
