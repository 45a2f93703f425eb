package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	MethodCash     = "cash"
	MethodTransfer = "transfer"
	MethodCard     = "card"
	MethodEWallet  = "ewallet"
)

// Payment is an immutable receipt against one bill. Amount is in the
// smallest currency unit.
type Payment struct {
	ID              snowflake.ID `gorm:"primaryKey" json:"id"`
	PaymentNumber   string       `gorm:"column:payment_number;not null" json:"payment_number"`
	BillID          snowflake.ID `gorm:"column:bill_id;not null" json:"bill_id"`
	CustomerID      snowflake.ID `gorm:"column:customer_id;not null" json:"customer_id"`
	Amount          int64        `gorm:"not null" json:"amount"`
	Method          string       `gorm:"not null" json:"method"`
	PaymentDate     time.Time    `gorm:"column:payment_date;not null" json:"payment_date"`
	ReferenceNumber *string      `gorm:"column:reference_number" json:"reference_number,omitempty"`
	Notes           *string      `json:"notes,omitempty"`
	RecordedBy      *string      `gorm:"column:recorded_by" json:"recorded_by,omitempty"`
	CreatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Payment) TableName() string { return "payments" }
