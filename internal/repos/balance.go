package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/offerhub/offerhub-backend/internal/platform/logger"
	"github.com/offerhub/offerhub-backend/internal/types"
)

type BalanceRepo interface {
	Get(ctx context.Context, tx *gorm.DB, userID uuid.UUID, currency string) (*types.Balance, error)
	// GetForUpdate takes a row lock; must run inside a transaction.
	GetForUpdate(ctx context.Context, tx *gorm.DB, userID uuid.UUID, currency string) (*types.Balance, error)
	Create(ctx context.Context, tx *gorm.DB, bal *types.Balance) error
	Save(ctx context.Context, tx *gorm.DB, bal *types.Balance) error
}

type balanceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBalanceRepo(db *gorm.DB, baseLog *logger.Logger) BalanceRepo {
	return &balanceRepo{db: db, log: baseLog.With("repo", "BalanceRepo")}
}

func (r *balanceRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *balanceRepo) Get(ctx context.Context, tx *gorm.DB, userID uuid.UUID, currency string) (*types.Balance, error) {
	var bal types.Balance
	if err := r.conn(tx).WithContext(ctx).
		Where("user_id = ? AND currency = ?", userID, currency).
		First(&bal).Error; err != nil {
		return nil, err
	}
	return &bal, nil
}

func (r *balanceRepo) GetForUpdate(ctx context.Context, tx *gorm.DB, userID uuid.UUID, currency string) (*types.Balance, error) {
	conn := r.conn(tx).WithContext(ctx)
	// sqlite (tests) has no row locks; its single-writer lock covers us there.
	if conn.Dialector.Name() != "sqlite" {
		conn = conn.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var bal types.Balance
	if err := conn.
		Where("user_id = ? AND currency = ?", userID, currency).
		First(&bal).Error; err != nil {
		return nil, err
	}
	return &bal, nil
}

func (r *balanceRepo) Create(ctx context.Context, tx *gorm.DB, bal *types.Balance) error {
	return r.conn(tx).WithContext(ctx).Create(bal).Error
}

func (r *balanceRepo) Save(ctx context.Context, tx *gorm.DB, bal *types.Balance) error {
	return r.conn(tx).WithContext(ctx).Save(bal).Error
}
