package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/offerhub/offerhub-backend/internal/platform/logger"
	"github.com/offerhub/offerhub-backend/internal/types"
)

type DisputeRepo interface {
	Create(ctx context.Context, tx *gorm.DB, dispute *types.Dispute) error
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Dispute, error)
	GetOpenByOrderID(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*types.Dispute, error)
	Save(ctx context.Context, tx *gorm.DB, dispute *types.Dispute) error
}

type disputeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDisputeRepo(db *gorm.DB, baseLog *logger.Logger) DisputeRepo {
	return &disputeRepo{db: db, log: baseLog.With("repo", "DisputeRepo")}
}

func (r *disputeRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *disputeRepo) Create(ctx context.Context, tx *gorm.DB, dispute *types.Dispute) error {
	return r.conn(tx).WithContext(ctx).Create(dispute).Error
}

func (r *disputeRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Dispute, error) {
	var dispute types.Dispute
	if err := r.conn(tx).WithContext(ctx).Where("id = ?", id).First(&dispute).Error; err != nil {
		return nil, err
	}
	return &dispute, nil
}

func (r *disputeRepo) GetOpenByOrderID(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*types.Dispute, error) {
	var dispute types.Dispute
	if err := r.conn(tx).WithContext(ctx).
		Where("order_id = ? AND status IN ?", orderID, []string{types.DisputeStatusOpen, types.DisputeStatusUnderReview}).
		First(&dispute).Error; err != nil {
		return nil, err
	}
	return &dispute, nil
}

func (r *disputeRepo) Save(ctx context.Context, tx *gorm.DB, dispute *types.Dispute) error {
	return r.conn(tx).WithContext(ctx).Save(dispute).Error
}
