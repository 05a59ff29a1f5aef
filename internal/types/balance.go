package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Balance holds a user's funds for a single currency, split into the
// spendable bucket and the bucket held against open orders/withdrawals.
// Mutated only through the ledger; callers receive snapshots.
type Balance struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_balance_user_currency" json:"user_id"`
	Currency  string          `gorm:"size:8;not null;uniqueIndex:idx_balance_user_currency" json:"currency"`
	Available decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"-"`
	Reserved  decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"-"`
	CreatedAt time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time       `gorm:"not null" json:"updated_at"`
}

func (Balance) TableName() string { return "balance" }

func (b *Balance) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// BalanceSnapshot is the caller-facing view, with amounts rendered as
// two-decimal strings.
type BalanceSnapshot struct {
	UserID    uuid.UUID `json:"user_id"`
	Currency  string    `json:"currency"`
	Available string    `json:"available"`
	Reserved  string    `json:"reserved"`
}

func (b *Balance) Snapshot() *BalanceSnapshot {
	return &BalanceSnapshot{
		UserID:    b.UserID,
		Currency:  b.Currency,
		Available: b.Available.StringFixed(2),
		Reserved:  b.Reserved.StringFixed(2),
	}
}
