package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	WithdrawalStatusRequested  = "requested"
	WithdrawalStatusProcessing = "processing"
	WithdrawalStatusCompleted  = "completed"
	WithdrawalStatusFailed     = "failed"
	WithdrawalStatusRejected   = "rejected"
	WithdrawalStatusCancelled  = "cancelled"
)

// Withdrawal moves funds out of the platform. The amount is held in the
// reserved bucket from request until the provider settles or rejects it.
type Withdrawal struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID        string         `gorm:"size:64;index" json:"tenant_id,omitempty"`
	UserID          uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Currency        string         `gorm:"size:8;not null" json:"currency"`
	Amount          string         `gorm:"size:32;not null" json:"amount"`
	Status          string         `gorm:"size:32;not null;index" json:"status"`
	ProviderRef     string         `gorm:"size:128;uniqueIndex" json:"provider_ref"`
	ProviderPayload datatypes.JSON `gorm:"type:jsonb" json:"provider_payload,omitempty"`
	CreatedAt       time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null" json:"updated_at"`
}

func (Withdrawal) TableName() string { return "withdrawal" }

func (w *Withdrawal) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}
