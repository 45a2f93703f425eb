package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Action string

const (
	ActionGeneration       Action = "generation"
	ActionPayment          Action = "payment"
	ActionCompensationEdit Action = "compensation-edit"
	ActionPeriodReset      Action = "period-reset"
)

// Entry is one append-only line of the billing audit trail. It is for
// traceability only and never read back to derive balances.
type Entry struct {
	ID           snowflake.ID      `gorm:"primaryKey" json:"id"`
	Action       Action            `gorm:"not null" json:"action"`
	Description  string            `gorm:"not null" json:"description"`
	BillID       *snowflake.ID     `gorm:"column:bill_id" json:"bill_id,omitempty"`
	CustomerID   *snowflake.ID     `gorm:"column:customer_id" json:"customer_id,omitempty"`
	BillingMonth *int              `gorm:"column:billing_month" json:"billing_month,omitempty"`
	BillingYear  *int              `gorm:"column:billing_year" json:"billing_year,omitempty"`
	ActorType    string            `gorm:"column:actor_type;not null" json:"actor_type"`
	ActorID      *string           `gorm:"column:actor_id" json:"actor_id,omitempty"`
	Metadata     datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata,omitempty"`
	CreatedAt    time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Entry) TableName() string { return "billing_audit_entries" }
