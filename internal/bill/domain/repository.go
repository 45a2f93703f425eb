package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/netbill/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListBillFilter struct {
	BillingMonth int
	BillingYear  int
	Status       string
	CustomerID   snowflake.ID
}

type Repository interface {
	// Insert reports false when the customer already has a bill for the period.
	Insert(ctx context.Context, db *gorm.DB, bill *Bill) (bool, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Bill, error)
	List(ctx context.Context, db *gorm.DB, filter ListBillFilter, page pagination.Pagination) ([]*Bill, error)
	BilledCustomerIDs(ctx context.Context, db *gorm.DB, year, month int) ([]snowflake.ID, error)
	// UpdateBalance writes the monetary fields of bill if its version is
	// still expectedVersion and it is not on hold. It reports whether a row
	// was updated.
	UpdateBalance(ctx context.Context, db *gorm.DB, bill *Bill, expectedVersion int64) (bool, error)
	SetHold(ctx context.Context, db *gorm.DB, id snowflake.ID, hold bool, now time.Time) error
	Stats(ctx context.Context, db *gorm.DB, year, month int) (Stats, error)
	ListOverdue(ctx context.Context, db *gorm.DB, asOf time.Time, limit int) ([]Bill, error)
	DeleteForPeriod(ctx context.Context, db *gorm.DB, year, month int) (int64, error)
	DeleteAll(ctx context.Context, db *gorm.DB) (int64, error)
}
