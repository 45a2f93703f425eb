package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/netbill/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListPaymentFilter struct {
	BillID     snowflake.ID
	CustomerID snowflake.ID
	Method     string
	// PaidFrom is inclusive, PaidBefore exclusive; zero means unbounded.
	PaidFrom   time.Time
	PaidBefore time.Time
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, payment *Payment) error
	ListByBill(ctx context.Context, db *gorm.DB, billID snowflake.ID) ([]Payment, error)
	List(ctx context.Context, db *gorm.DB, filter ListPaymentFilter, page pagination.Pagination) ([]*Payment, error)
	SumByBill(ctx context.Context, db *gorm.DB, billID snowflake.ID) (int64, error)
	DeleteForPeriod(ctx context.Context, db *gorm.DB, year, month int) (int64, error)
	DeleteAll(ctx context.Context, db *gorm.DB) (int64, error)
}
