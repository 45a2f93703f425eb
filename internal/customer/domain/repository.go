package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/netbill/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, customer *Customer) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Customer, error)
	List(ctx context.Context, db *gorm.DB, filter ListCustomerFilter, page pagination.Pagination) ([]*Customer, error)
	ListActive(ctx context.Context, db *gorm.DB) ([]Customer, error)
	UpdateCarriedDebt(ctx context.Context, db *gorm.DB, id snowflake.ID, amount int64, now time.Time) (int64, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status Status, now time.Time) (int64, error)
}
