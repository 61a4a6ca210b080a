package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"clausewise/internal/domain"
	"clausewise/internal/port"
)

type contractRepo struct {
	db *sqlx.DB
}

// NewContractRepo creates a new PostgreSQL-backed ContractRepository.
func NewContractRepo(db *sqlx.DB) port.ContractRepository {
	return &contractRepo{db: db}
}

func (r *contractRepo) Create(ctx context.Context, c *domain.Contract) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := r.db.NamedExecContext(ctx,
		`INSERT INTO contracts (id, user_id, name, document_type, summary, analysis, chunk_count,
			model_used, storage_key, content_size, created_at, updated_at)
		 VALUES (:id, :user_id, :name, :document_type, :summary, :analysis, :chunk_count,
			:model_used, :storage_key, :content_size, :created_at, :updated_at)`, c)
	if err != nil {
		return fmt.Errorf("contractRepo.Create: %w", err)
	}
	return nil
}

func (r *contractRepo) GetByID(ctx context.Context, userID, contractID uuid.UUID) (*domain.Contract, error) {
	var c domain.Contract
	err := r.db.GetContext(ctx, &c,
		"SELECT * FROM contracts WHERE id = $1 AND user_id = $2", contractID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrContractNotFound
		}
		return nil, fmt.Errorf("contractRepo.GetByID: %w", err)
	}
	return &c, nil
}

func (r *contractRepo) ListByUser(ctx context.Context, userID uuid.UUID, offset, limit int) ([]domain.Contract, int, error) {
	var total int
	err := r.db.GetContext(ctx, &total,
		"SELECT COUNT(*) FROM contracts WHERE user_id = $1", userID)
	if err != nil {
		return nil, 0, fmt.Errorf("contractRepo.ListByUser count: %w", err)
	}

	var contracts []domain.Contract
	err = r.db.SelectContext(ctx, &contracts,
		`SELECT * FROM contracts WHERE user_id = $1
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("contractRepo.ListByUser: %w", err)
	}
	return contracts, total, nil
}

func (r *contractRepo) ListAllByUser(ctx context.Context, userID uuid.UUID) ([]domain.Contract, error) {
	var contracts []domain.Contract
	err := r.db.SelectContext(ctx, &contracts,
		"SELECT * FROM contracts WHERE user_id = $1 ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("contractRepo.ListAllByUser: %w", err)
	}
	return contracts, nil
}

func (r *contractRepo) Delete(ctx context.Context, userID, contractID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM contracts WHERE id = $1 AND user_id = $2", contractID, userID)
	if err != nil {
		return fmt.Errorf("contractRepo.Delete: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrContractNotFound
	}
	return nil
}
