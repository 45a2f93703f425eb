package domain

import (
	"context"
	"time"

	billdomain "github.com/smallbiznis/netbill/internal/bill/domain"
	"github.com/smallbiznis/netbill/internal/billingerr"
	"github.com/smallbiznis/netbill/pkg/db/pagination"
)

type RecordPaymentRequest struct {
	BillID          string
	Amount          int64
	Method          string
	ReferenceNumber string
	Notes           string
	// PaymentDate defaults to the current time.
	PaymentDate *time.Time
}

type RecordPaymentResult struct {
	Payment  Payment         `json:"payment"`
	Bill     billdomain.Bill `json:"bill"`
	Notified bool            `json:"notified"`
}

type ListPaymentRequest struct {
	PageToken  string
	PageSize   int32
	BillID     string
	CustomerID string
	Method     string
	// DateFrom and DateTo bound payment_date by calendar day, both inclusive.
	DateFrom time.Time
	DateTo   time.Time
}

type ListPaymentResponse struct {
	pagination.PageInfo
	Payments []Payment `json:"payments"`
}

type Service interface {
	RecordPayment(context.Context, RecordPaymentRequest) (RecordPaymentResult, error)
	ListByBill(ctx context.Context, billID string) ([]Payment, error)
	List(context.Context, ListPaymentRequest) (ListPaymentResponse, error)
}

var (
	ErrInvalidMethod    = billingerr.New(billingerr.KindValidation, "invalid_payment_method", "payment method is required")
	ErrInvalidPageToken = billingerr.New(billingerr.KindValidation, "invalid_page_token", "page token is malformed")
	ErrInvalidFilterID  = billingerr.New(billingerr.KindValidation, "invalid_filter_id", "bill or customer id is malformed")
	ErrInvalidDateRange = billingerr.New(billingerr.KindValidation, "invalid_date_range", "date_from must not be after date_to")
)
