// Package domain contains the bill ledger models.
package domain

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/netbill/internal/balance"
	"github.com/smallbiznis/netbill/internal/notification"
)

// Bill is issued once per customer per billing period. Identity fields never
// change; monetary fields change only through payments and operator
// adjustments, and always satisfy balance.Verify.
type Bill struct {
	ID                 snowflake.ID   `gorm:"primaryKey" json:"id"`
	BillNumber         string         `gorm:"column:bill_number;not null" json:"bill_number"`
	CustomerID         snowflake.ID   `gorm:"column:customer_id;not null" json:"customer_id"`
	BillingMonth       int            `gorm:"column:billing_month;not null" json:"billing_month"`
	BillingYear        int            `gorm:"column:billing_year;not null" json:"billing_year"`
	Amount             int64          `gorm:"not null" json:"amount"`
	PreviousDebt       int64          `gorm:"column:previous_debt;not null" json:"previous_debt"`
	Compensation       int64          `gorm:"not null" json:"compensation"`
	TotalAmount        int64          `gorm:"column:total_amount;not null" json:"total_amount"`
	PaidAmount         int64          `gorm:"column:paid_amount;not null" json:"paid_amount"`
	RemainingAmount    int64          `gorm:"column:remaining_amount;not null" json:"remaining_amount"`
	Status             balance.Status `gorm:"not null" json:"status"`
	DueDate            time.Time      `gorm:"column:due_date;not null" json:"due_date"`
	Version            int64          `gorm:"not null;default:1" json:"version"`
	ReconciliationHold bool           `gorm:"column:reconciliation_hold;not null" json:"reconciliation_hold"`
	CreatedAt          time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	CustomerName  string `gorm:"->;column:customer_name" json:"customer_name,omitempty"`
	CustomerPhone string `gorm:"->;column:customer_phone" json:"customer_phone,omitempty"`
}

func (Bill) TableName() string { return "bills" }

func (b Bill) Snapshot() balance.Snapshot {
	return balance.Snapshot{
		Amount:       b.Amount,
		PreviousDebt: b.PreviousDebt,
		Compensation: b.Compensation,
		Total:        b.TotalAmount,
		Paid:         b.PaidAmount,
		Remaining:    b.RemainingAmount,
		Status:       b.Status,
	}
}

// Recompute derives total, remaining and status from the stored inputs.
func (b *Bill) Recompute() {
	bd := balance.Compute(b.Amount, b.PreviousDebt, b.Compensation, b.PaidAmount)
	b.TotalAmount = bd.Total
	b.RemainingAmount = bd.Remaining
	b.Status = bd.Status
}

// Reminder builds the payment reminder for the bill as of now. The bill must
// carry the joined customer columns.
func (b Bill) Reminder(now time.Time) notification.PaymentReminder {
	return notification.PaymentReminder{
		CustomerName: b.CustomerName,
		Phone:        b.CustomerPhone,
		BillNumber:   b.BillNumber,
		BillingMonth: b.BillingMonth,
		BillingYear:  b.BillingYear,
		Remaining:    b.RemainingAmount,
		DueDate:      b.DueDate,
		DaysOverdue:  notification.DaysOverdue(b.DueDate, now),
	}
}

func (b Bill) Period() string {
	return fmt.Sprintf("%04d-%02d", b.BillingYear, b.BillingMonth)
}

// Stats aggregates the bills of one period.
type Stats struct {
	BillingMonth       int   `json:"billing_month"`
	BillingYear        int   `json:"billing_year"`
	BillCount          int64 `json:"bill_count"`
	UnpaidCount        int64 `json:"unpaid_count"`
	PartialCount       int64 `json:"partial_count"`
	PaidCount          int64 `json:"paid_count"`
	HeldCount          int64 `json:"held_count"`
	TotalAmount        int64 `json:"total_amount"`
	PaidAmount         int64 `json:"paid_amount"`
	RemainingAmount    int64 `json:"remaining_amount"`
	CompensationAmount int64 `json:"compensation_amount"`
}
