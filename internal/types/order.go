package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	OrderStatusCreated          = "created"
	OrderStatusFundsReserved    = "funds_reserved"
	OrderStatusEscrowCreating   = "escrow_creating"
	OrderStatusEscrowFunding    = "escrow_funding"
	OrderStatusEscrowFunded     = "escrow_funded"
	OrderStatusInProgress       = "in_progress"
	OrderStatusReleaseRequested = "release_requested"
	OrderStatusRefundRequested  = "refund_requested"
	OrderStatusDisputed         = "disputed"
	OrderStatusReleased         = "released"
	OrderStatusRefunded         = "refunded"
	OrderStatusClosed           = "closed"
)

// Order is a marketplace engagement between a client and a freelancer.
// Amount is the agreed price as a two-decimal string; the client's funds are
// reserved for the lifetime of the order and settle on release/refund.
type Order struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID     string         `gorm:"size:64;index" json:"tenant_id,omitempty"`
	ClientID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"client_id"`
	FreelancerID uuid.UUID      `gorm:"type:uuid;not null;index" json:"freelancer_id"`
	Currency     string         `gorm:"size:8;not null" json:"currency"`
	Amount       string         `gorm:"size:32;not null" json:"amount"`
	Status       string         `gorm:"size:32;not null;index" json:"status"`
	Metadata     datatypes.JSON `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt    time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null" json:"updated_at"`
}

func (Order) TableName() string { return "order_record" }

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
