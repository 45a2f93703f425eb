package domain

import (
	"context"

	"github.com/smallbiznis/netbill/internal/billingerr"
	"github.com/smallbiznis/netbill/pkg/db/pagination"
)

type ListCustomerRequest struct {
	PageToken string
	PageSize  int32
	Name      string
	Status    string
}

type ListCustomerFilter struct {
	Name   string
	Status Status
}

type ListCustomerResponse struct {
	pagination.PageInfo
	Customers []Customer `json:"customers"`
}

type CreateCustomerRequest struct {
	Name        string
	Phone       string
	Address     string
	PackageName string
	MonthlyFee  int64
	CarriedDebt int64
}

type GetCustomerRequest struct {
	ID string
}

type SetCarriedDebtRequest struct {
	ID     string
	Amount int64
}

type SetStatusRequest struct {
	ID     string
	Status string
}

// Service is the customer store consumed by the billing ledger. Carried debt
// only changes through SetCarriedDebt; bill generation reads it as a snapshot.
type Service interface {
	Create(context.Context, CreateCustomerRequest) (Customer, error)
	List(context.Context, ListCustomerRequest) (ListCustomerResponse, error)
	GetByID(context.Context, GetCustomerRequest) (Customer, error)
	ListActive(context.Context) ([]Customer, error)
	SetCarriedDebt(context.Context, SetCarriedDebtRequest) (Customer, error)
	SetStatus(context.Context, SetStatusRequest) (Customer, error)
}

var (
	ErrInvalidName       = billingerr.New(billingerr.KindValidation, "invalid_name", "name is required")
	ErrInvalidMonthlyFee = billingerr.New(billingerr.KindValidation, "invalid_monthly_fee", "monthly fee cannot be negative")
	ErrInvalidDebt       = billingerr.New(billingerr.KindValidation, "invalid_carried_debt", "carried debt cannot be negative")
	ErrInvalidStatus     = billingerr.New(billingerr.KindValidation, "invalid_status", "status must be active, suspended or terminated")
	ErrInvalidPageToken  = billingerr.New(billingerr.KindValidation, "invalid_page_token", "page token is malformed")
	ErrInvalidID         = billingerr.New(billingerr.KindValidation, "invalid_customer_id", "customer id is malformed")
	ErrNotFound          = billingerr.New(billingerr.KindNotFound, "customer_not_found", "customer not found")
)
