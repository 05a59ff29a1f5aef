package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/offerhub/offerhub-backend/internal/platform/logger"
	"github.com/offerhub/offerhub-backend/internal/types"
)

type WithdrawalRepo interface {
	Create(ctx context.Context, tx *gorm.DB, withdrawal *types.Withdrawal) error
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Withdrawal, error)
	GetByProviderRef(ctx context.Context, tx *gorm.DB, providerRef string) (*types.Withdrawal, error)
	Save(ctx context.Context, tx *gorm.DB, withdrawal *types.Withdrawal) error
}

type withdrawalRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewWithdrawalRepo(db *gorm.DB, baseLog *logger.Logger) WithdrawalRepo {
	return &withdrawalRepo{db: db, log: baseLog.With("repo", "WithdrawalRepo")}
}

func (r *withdrawalRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *withdrawalRepo) Create(ctx context.Context, tx *gorm.DB, withdrawal *types.Withdrawal) error {
	return r.conn(tx).WithContext(ctx).Create(withdrawal).Error
}

func (r *withdrawalRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Withdrawal, error) {
	var withdrawal types.Withdrawal
	if err := r.conn(tx).WithContext(ctx).Where("id = ?", id).First(&withdrawal).Error; err != nil {
		return nil, err
	}
	return &withdrawal, nil
}

func (r *withdrawalRepo) GetByProviderRef(ctx context.Context, tx *gorm.DB, providerRef string) (*types.Withdrawal, error) {
	var withdrawal types.Withdrawal
	if err := r.conn(tx).WithContext(ctx).Where("provider_ref = ?", providerRef).First(&withdrawal).Error; err != nil {
		return nil, err
	}
	return &withdrawal, nil
}

func (r *withdrawalRepo) Save(ctx context.Context, tx *gorm.DB, withdrawal *types.Withdrawal) error {
	return r.conn(tx).WithContext(ctx).Save(withdrawal).Error
}
