package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/offerhub/offerhub-backend/internal/platform/logger"
	"github.com/offerhub/offerhub-backend/internal/types"
)

type TopUpRepo interface {
	Create(ctx context.Context, tx *gorm.DB, topup *types.TopUp) error
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.TopUp, error)
	GetByProviderRef(ctx context.Context, tx *gorm.DB, providerRef string) (*types.TopUp, error)
	Save(ctx context.Context, tx *gorm.DB, topup *types.TopUp) error
}

type topUpRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTopUpRepo(db *gorm.DB, baseLog *logger.Logger) TopUpRepo {
	return &topUpRepo{db: db, log: baseLog.With("repo", "TopUpRepo")}
}

func (r *topUpRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *topUpRepo) Create(ctx context.Context, tx *gorm.DB, topup *types.TopUp) error {
	return r.conn(tx).WithContext(ctx).Create(topup).Error
}

func (r *topUpRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.TopUp, error) {
	var topup types.TopUp
	if err := r.conn(tx).WithContext(ctx).Where("id = ?", id).First(&topup).Error; err != nil {
		return nil, err
	}
	return &topup, nil
}

func (r *topUpRepo) GetByProviderRef(ctx context.Context, tx *gorm.DB, providerRef string) (*types.TopUp, error) {
	var topup types.TopUp
	if err := r.conn(tx).WithContext(ctx).Where("provider_ref = ?", providerRef).First(&topup).Error; err != nil {
		return nil, err
	}
	return &topup, nil
}

func (r *topUpRepo) Save(ctx context.Context, tx *gorm.DB, topup *types.TopUp) error {
	return r.conn(tx).WithContext(ctx).Save(topup).Error
}
