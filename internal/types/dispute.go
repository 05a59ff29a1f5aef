package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	DisputeStatusOpen               = "open"
	DisputeStatusUnderReview        = "under_review"
	DisputeStatusWithdrawn          = "withdrawn"
	DisputeStatusResolvedClient     = "resolved_client"
	DisputeStatusResolvedFreelancer = "resolved_freelancer"
	DisputeStatusResolvedSplit      = "resolved_split"
)

// Dispute tracks a contested order. Resolution decides whether escrowed
// funds go to the client (refund) or the freelancer (release).
type Dispute struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID   string         `gorm:"size:64;index" json:"tenant_id,omitempty"`
	OrderID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"order_id"`
	RaisedByID uuid.UUID      `gorm:"type:uuid;not null" json:"raised_by_id"`
	Reason     string         `gorm:"size:512" json:"reason"`
	Status     string         `gorm:"size:32;not null;index" json:"status"`
	Evidence   datatypes.JSON `gorm:"type:jsonb" json:"evidence,omitempty"`
	ResolvedAt *time.Time     `json:"resolved_at,omitempty"`
	CreatedAt  time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null" json:"updated_at"`
}

func (Dispute) TableName() string { return "dispute" }

func (d *Dispute) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
