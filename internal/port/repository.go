package port

import (
	"context"

	"github.com/google/uuid"

	"clausewise/internal/domain"
)

// UserRepository defines the contract for user persistence.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// ContractRepository defines the contract for analyzed-contract persistence.
// Query methods take the owning userID so one user never sees another's records.
type ContractRepository interface {
	Create(ctx context.Context, contract *domain.Contract) error
	GetByID(ctx context.Context, userID, contractID uuid.UUID) (*domain.Contract, error)
	ListByUser(ctx context.Context, userID uuid.UUID, offset, limit int) ([]domain.Contract, int, error)
	ListAllByUser(ctx context.Context, userID uuid.UUID) ([]domain.Contract, error)
	Delete(ctx context.Context, userID, contractID uuid.UUID) error
}
