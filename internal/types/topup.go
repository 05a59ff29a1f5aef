package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	TopUpStatusPending    = "pending"
	TopUpStatusProcessing = "processing"
	TopUpStatusSucceeded  = "succeeded"
	TopUpStatusFailed     = "failed"
	TopUpStatusExpired    = "expired"
)

// TopUp is an inbound payment that credits a user's available balance once
// the payment provider confirms it.
type TopUp struct {
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

func (TopUp) TableName() string { return "topup" }

func (t *TopUp) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
