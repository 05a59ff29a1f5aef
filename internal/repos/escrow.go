package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/offerhub/offerhub-backend/internal/platform/logger"
	"github.com/offerhub/offerhub-backend/internal/types"
)

type EscrowRepo interface {
	Create(ctx context.Context, tx *gorm.DB, escrow *types.Escrow) error
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Escrow, error)
	GetByOrderID(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*types.Escrow, error)
	GetByProviderRef(ctx context.Context, tx *gorm.DB, providerRef string) (*types.Escrow, error)
	Save(ctx context.Context, tx *gorm.DB, escrow *types.Escrow) error
}

type escrowRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEscrowRepo(db *gorm.DB, baseLog *logger.Logger) EscrowRepo {
	return &escrowRepo{db: db, log: baseLog.With("repo", "EscrowRepo")}
}

func (r *escrowRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *escrowRepo) Create(ctx context.Context, tx *gorm.DB, escrow *types.Escrow) error {
	return r.conn(tx).WithContext(ctx).Create(escrow).Error
}

func (r *escrowRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Escrow, error) {
	var escrow types.Escrow
	if err := r.conn(tx).WithContext(ctx).Where("id = ?", id).First(&escrow).Error; err != nil {
		return nil, err
	}
	return &escrow, nil
}

func (r *escrowRepo) GetByOrderID(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*types.Escrow, error) {
	var escrow types.Escrow
	if err := r.conn(tx).WithContext(ctx).Where("order_id = ?", orderID).First(&escrow).Error; err != nil {
		return nil, err
	}
	return &escrow, nil
}

func (r *escrowRepo) GetByProviderRef(ctx context.Context, tx *gorm.DB, providerRef string) (*types.Escrow, error) {
	var escrow types.Escrow
	if err := r.conn(tx).WithContext(ctx).Where("provider_ref = ?", providerRef).First(&escrow).Error; err != nil {
		return nil, err
	}
	return &escrow, nil
}

func (r *escrowRepo) Save(ctx context.Context, tx *gorm.DB, escrow *types.Escrow) error {
	return r.conn(tx).WithContext(ctx).Save(escrow).Error
}
