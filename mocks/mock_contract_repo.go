package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"clausewise/internal/domain"
)

// MockContractRepo is a mock implementation of port.ContractRepository.
type MockContractRepo struct {
	mock.Mock
}

func (m *MockContractRepo) Create(ctx context.Context, contract *domain.Contract) error {
	args := m.Called(ctx, contract)
	return args.Error(0)
}

func (m *MockContractRepo) GetByID(ctx context.Context, userID, contractID uuid.UUID) (*domain.Contract, error) {
	args := m.Called(ctx, userID, contractID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Contract), args.Error(1)
}

func (m *MockContractRepo) ListByUser(ctx context.Context, userID uuid.UUID, offset, limit int) ([]domain.Contract, int, error) {
	args := m.Called(ctx, userID, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Contract), args.Int(1), args.Error(2)
}

func (m *MockContractRepo) ListAllByUser(ctx context.Context, userID uuid.UUID) ([]domain.Contract, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Contract), args.Error(1)
}

func (m *MockContractRepo) Delete(ctx context.Context, userID, contractID uuid.UUID) error {
	args := m.Called(ctx, userID, contractID)
	return args.Error(0)
}
