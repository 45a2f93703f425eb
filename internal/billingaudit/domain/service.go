package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// AppendRequest describes an audit line. Period and ids are optional.
type AppendRequest struct {
	Action       Action
	Description  string
	BillID       *snowflake.ID
	CustomerID   *snowflake.ID
	BillingMonth int
	BillingYear  int
	Metadata     map[string]any
}

type Service interface {
	Append(ctx context.Context, req AppendRequest) error
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *Entry) error
	DeleteForPeriod(ctx context.Context, db *gorm.DB, year, month int) (int64, error)
	DeleteAll(ctx context.Context, db *gorm.DB) (int64, error)
}
