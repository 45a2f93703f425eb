package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/netbill/internal/customer/domain"
	"github.com/smallbiznis/netbill/pkg/db/option"
	"github.com/smallbiznis/netbill/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const customerColumns = `id, name, phone, address, package_name, monthly_fee, carried_debt, status, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, customer *domain.Customer) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO customers (`+customerColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		customer.ID,
		customer.Name,
		customer.Phone,
		customer.Address,
		customer.PackageName,
		customer.MonthlyFee,
		customer.CarriedDebt,
		customer.Status,
		customer.CreatedAt,
		customer.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Customer, error) {
	var customer domain.Customer
	err := db.WithContext(ctx).Raw(
		`SELECT `+customerColumns+` FROM customers WHERE id = ?`,
		id,
	).Scan(&customer).Error
	if err != nil {
		return nil, err
	}
	if customer.ID == 0 {
		return nil, nil
	}
	return &customer, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListCustomerFilter, page pagination.Pagination) ([]*domain.Customer, error) {
	var customers []*domain.Customer
	stmt := db.WithContext(ctx).Model(&domain.Customer{})
	if filter.Name != "" {
		stmt = stmt.Where("LOWER(name) LIKE ?", "%"+filter.Name+"%")
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&customers).Error
	if err != nil {
		return nil, err
	}
	return customers, nil
}

func (r *repo) ListActive(ctx context.Context, db *gorm.DB) ([]domain.Customer, error) {
	var customers []domain.Customer
	err := db.WithContext(ctx).Raw(
		`SELECT `+customerColumns+` FROM customers WHERE status = ? ORDER BY id`,
		domain.StatusActive,
	).Scan(&customers).Error
	if err != nil {
		return nil, err
	}
	return customers, nil
}

func (r *repo) UpdateCarriedDebt(ctx context.Context, db *gorm.DB, id snowflake.ID, amount int64, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE customers SET carried_debt = ?, updated_at = ? WHERE id = ?`,
		amount, now, id,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.Status, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE customers SET status = ?, updated_at = ? WHERE id = ?`,
		status, now, id,
	)
	return res.RowsAffected, res.Error
}
