package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/netbill/internal/billingerr"
	"github.com/smallbiznis/netbill/pkg/db/pagination"
)

type GenerateRequest struct {
	Month int
	Year  int
}

// GenerationFailure records a customer whose bill could not be created.
type GenerationFailure struct {
	CustomerID   snowflake.ID    `json:"customer_id"`
	CustomerName string          `json:"customer_name"`
	Kind         billingerr.Kind `json:"kind"`
	Message      string          `json:"message"`
}

type GenerateResult struct {
	BillingMonth  int                 `json:"billing_month"`
	BillingYear   int                 `json:"billing_year"`
	CustomerCount int                 `json:"customer_count"`
	Created       []Bill              `json:"created"`
	CreatedCount  int                 `json:"created_count"`
	TotalAmount   int64               `json:"total_amount"`
	Skipped       int                 `json:"skipped"`
	Failures      []GenerationFailure `json:"failures"`
	Notified      int                 `json:"notified"`
	Message       string              `json:"message,omitempty"`
}

type ListBillRequest struct {
	PageToken  string
	PageSize   int32
	Month      int
	Year       int
	Status     string
	CustomerID string
}

type ListBillResponse struct {
	pagination.PageInfo
	Bills []Bill `json:"bills"`
}

// AdjustRequest sets compensation or previous debt on a bill.
type AdjustRequest struct {
	BillID string
	Amount int64
}

type StatsRequest struct {
	Month int
	Year  int
}

type OverdueRequest struct {
	// AsOf defaults to today. Bills due strictly before that day are overdue.
	AsOf  time.Time
	Limit int
}

type ResetScope string

const (
	ResetScopePeriod ResetScope = "period"
	ResetScopeAll    ResetScope = "all"
)

type ResetRequest struct {
	Scope        ResetScope
	Month        int
	Year         int
	Confirmation string
}

type ResetResult struct {
	Scope               ResetScope `json:"scope"`
	BillingMonth        int        `json:"billing_month,omitempty"`
	BillingYear         int        `json:"billing_year,omitempty"`
	DeletedBills        int64      `json:"deleted_bills"`
	DeletedPayments     int64      `json:"deleted_payments"`
	DeletedAuditEntries int64      `json:"deleted_audit_entries"`
}

// ReminderResult reports a manual payment reminder. Delivery is best effort,
// so Delivered is false when the messaging gateway is unavailable.
type ReminderResult struct {
	BillID      snowflake.ID `json:"bill_id"`
	BillNumber  string       `json:"bill_number"`
	Remaining   int64        `json:"remaining_amount"`
	DaysOverdue int          `json:"days_overdue"`
	Delivered   bool         `json:"delivered"`
	Message     string       `json:"message,omitempty"`
}

type Document struct {
	Filename string
	Content  []byte
}

type Service interface {
	Generate(context.Context, GenerateRequest) (GenerateResult, error)
	GetByID(ctx context.Context, id string) (Bill, error)
	List(context.Context, ListBillRequest) (ListBillResponse, error)
	SetCompensation(context.Context, AdjustRequest) (Bill, error)
	SetPreviousDebt(context.Context, AdjustRequest) (Bill, error)
	Stats(context.Context, StatsRequest) (Stats, error)
	ListOverdue(context.Context, OverdueRequest) ([]Bill, error)
	ResetPeriod(context.Context, ResetRequest) (ResetResult, error)
	Document(ctx context.Context, id string) (Document, error)
	SendReminder(ctx context.Context, id string) (ReminderResult, error)
}

// ResetConfirmation returns the token an operator must type to confirm a reset.
func ResetConfirmation(scope ResetScope, year, month int) string {
	if scope == ResetScopeAll {
		return "RESET-ALL"
	}
	return fmt.Sprintf("RESET-%04d-%02d", year, month)
}

var (
	ErrInvalidPeriod       = billingerr.New(billingerr.KindValidation, "invalid_period", "month must be 1-12 and year 2000-9999")
	ErrInvalidBillID       = billingerr.New(billingerr.KindValidation, "invalid_bill_id", "bill id is malformed")
	ErrInvalidCustomerID   = billingerr.New(billingerr.KindValidation, "invalid_customer_id", "customer id is malformed")
	ErrInvalidStatus       = billingerr.New(billingerr.KindValidation, "invalid_status", "status must be unpaid, partial or paid")
	ErrInvalidPageToken    = billingerr.New(billingerr.KindValidation, "invalid_page_token", "page token is malformed")
	ErrInvalidResetScope   = billingerr.New(billingerr.KindValidation, "invalid_reset_scope", "scope must be period or all")
	ErrInvalidConfirmation = billingerr.New(billingerr.KindValidation, "invalid_confirmation", "confirmation token does not match")
	ErrResetDisabled       = billingerr.New(billingerr.KindForbidden, "reset_disabled", "billing reset is disabled")
	ErrNotFound            = billingerr.New(billingerr.KindNotFound, "bill_not_found", "bill not found")
	ErrAlreadyPaid         = billingerr.New(billingerr.KindValidation, "bill_already_paid", "bill has no remaining balance")
)

// ValidPeriod reports whether month and year form a billable period.
func ValidPeriod(month, year int) bool {
	return month >= 1 && month <= 12 && year >= 2000 && year <= 9999
}
