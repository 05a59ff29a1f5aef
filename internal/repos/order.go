package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/offerhub/offerhub-backend/internal/platform/logger"
	"github.com/offerhub/offerhub-backend/internal/types"
)

type OrderRepo interface {
	Create(ctx context.Context, tx *gorm.DB, order *types.Order) error
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Order, error)
	Save(ctx context.Context, tx *gorm.DB, order *types.Order) error
	ListByClient(ctx context.Context, tx *gorm.DB, clientID uuid.UUID) ([]*types.Order, error)
}

type orderRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewOrderRepo(db *gorm.DB, baseLog *logger.Logger) OrderRepo {
	return &orderRepo{db: db, log: baseLog.With("repo", "OrderRepo")}
}

func (r *orderRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *orderRepo) Create(ctx context.Context, tx *gorm.DB, order *types.Order) error {
	return r.conn(tx).WithContext(ctx).Create(order).Error
}

func (r *orderRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Order, error) {
	var order types.Order
	if err := r.conn(tx).WithContext(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepo) Save(ctx context.Context, tx *gorm.DB, order *types.Order) error {
	return r.conn(tx).WithContext(ctx).Save(order).Error
}

func (r *orderRepo) ListByClient(ctx context.Context, tx *gorm.DB, clientID uuid.UUID) ([]*types.Order, error) {
	var out []*types.Order
	if clientID == uuid.Nil {
		return out, nil
	}
	if err := r.conn(tx).WithContext(ctx).
		Where("client_id = ?", clientID).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
