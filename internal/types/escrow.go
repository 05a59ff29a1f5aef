package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	EscrowStatusCreated  = "created"
	EscrowStatusFunded   = "funded"
	EscrowStatusReleased = "released"
	EscrowStatusRefunded = "refunded"
	EscrowStatusDisputed = "disputed"
)

// Escrow mirrors the state of the external escrow provider for one order.
// ProviderRef is the provider-side identifier webhook payloads refer to.
type Escrow struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID      uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex" json:"order_id"`
	ProviderRef  string     `gorm:"size:128;uniqueIndex" json:"provider_ref"`
	Currency     string     `gorm:"size:8;not null" json:"currency"`
	Amount       string     `gorm:"size:32;not null" json:"amount"`
	FeeCollected string     `gorm:"size:32;not null;default:'0.00'" json:"fee_collected"`
	Status       string     `gorm:"size:32;not null;index" json:"status"`
	FundedAt     *time.Time `json:"funded_at,omitempty"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
	CreatedAt    time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"not null" json:"updated_at"`
}

func (Escrow) TableName() string { return "escrow" }

func (e *Escrow) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
