package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/netbill/internal/bill/domain"
	"github.com/smallbiznis/netbill/pkg/db/option"
	"github.com/smallbiznis/netbill/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const billColumns = `id, bill_number, customer_id, billing_month, billing_year, amount,
	previous_debt, compensation, total_amount, paid_amount, remaining_amount, status,
	due_date, version, reconciliation_hold, created_at, updated_at`

// customerColumns are correlated subqueries so the only table in FROM is
// bills and unqualified keyset filters stay unambiguous.
const customerColumns = `(SELECT name FROM customers WHERE customers.id = bills.customer_id) AS customer_name,
	(SELECT phone FROM customers WHERE customers.id = bills.customer_id) AS customer_phone`

const selectBills = `SELECT ` + billColumns + `, ` + customerColumns + ` FROM bills`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, bill *domain.Bill) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`INSERT INTO bills (`+billColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (customer_id, billing_year, billing_month) DO NOTHING`,
		bill.ID,
		bill.BillNumber,
		bill.CustomerID,
		bill.BillingMonth,
		bill.BillingYear,
		bill.Amount,
		bill.PreviousDebt,
		bill.Compensation,
		bill.TotalAmount,
		bill.PaidAmount,
		bill.RemainingAmount,
		bill.Status,
		bill.DueDate,
		bill.Version,
		bill.ReconciliationHold,
		bill.CreatedAt,
		bill.UpdatedAt,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Bill, error) {
	var bill domain.Bill
	err := db.WithContext(ctx).Raw(selectBills+` WHERE id = ?`, id).Scan(&bill).Error
	if err != nil {
		return nil, err
	}
	if bill.ID == 0 {
		return nil, nil
	}
	return &bill, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListBillFilter, page pagination.Pagination) ([]*domain.Bill, error) {
	var bills []*domain.Bill
	stmt := db.WithContext(ctx).
		Table("bills").
		Select(billColumns + `, ` + customerColumns)
	if filter.BillingYear != 0 {
		stmt = stmt.Where("billing_year = ?", filter.BillingYear)
	}
	if filter.BillingMonth != 0 {
		stmt = stmt.Where("billing_month = ?", filter.BillingMonth)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.CustomerID != 0 {
		stmt = stmt.Where("customer_id = ?", filter.CustomerID)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&bills).Error
	if err != nil {
		return nil, err
	}
	return bills, nil
}

func (r *repo) BilledCustomerIDs(ctx context.Context, db *gorm.DB, year, month int) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := db.WithContext(ctx).
		Table("bills").
		Where("billing_year = ? AND billing_month = ?", year, month).
		Pluck("customer_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repo) UpdateBalance(ctx context.Context, db *gorm.DB, bill *domain.Bill, expectedVersion int64) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE bills SET
			previous_debt = ?,
			compensation = ?,
			total_amount = ?,
			paid_amount = ?,
			remaining_amount = ?,
			status = ?,
			version = version + 1,
			updated_at = ?
		 WHERE id = ? AND version = ? AND reconciliation_hold = ?`,
		bill.PreviousDebt,
		bill.Compensation,
		bill.TotalAmount,
		bill.PaidAmount,
		bill.RemainingAmount,
		bill.Status,
		bill.UpdatedAt,
		bill.ID,
		expectedVersion,
		false,
	)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}
	bill.Version = expectedVersion + 1
	return true, nil
}

func (r *repo) SetHold(ctx context.Context, db *gorm.DB, id snowflake.ID, hold bool, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE bills SET reconciliation_hold = ?, updated_at = ? WHERE id = ?`,
		hold, now, id,
	).Error
}

func (r *repo) Stats(ctx context.Context, db *gorm.DB, year, month int) (domain.Stats, error) {
	var stats domain.Stats
	err := db.WithContext(ctx).Raw(
		`SELECT
			COUNT(*) AS bill_count,
			COALESCE(SUM(CASE WHEN status = 'unpaid' THEN 1 ELSE 0 END), 0) AS unpaid_count,
			COALESCE(SUM(CASE WHEN status = 'partial' THEN 1 ELSE 0 END), 0) AS partial_count,
			COALESCE(SUM(CASE WHEN status = 'paid' THEN 1 ELSE 0 END), 0) AS paid_count,
			COALESCE(SUM(CASE WHEN reconciliation_hold THEN 1 ELSE 0 END), 0) AS held_count,
			COALESCE(SUM(total_amount), 0) AS total_amount,
			COALESCE(SUM(paid_amount), 0) AS paid_amount,
			COALESCE(SUM(remaining_amount), 0) AS remaining_amount,
			COALESCE(SUM(compensation), 0) AS compensation_amount
		 FROM bills
		 WHERE billing_year = ? AND billing_month = ?`,
		year, month,
	).Scan(&stats).Error
	if err != nil {
		return domain.Stats{}, err
	}
	stats.BillingYear = year
	stats.BillingMonth = month
	return stats, nil
}

func (r *repo) ListOverdue(ctx context.Context, db *gorm.DB, asOf time.Time, limit int) ([]domain.Bill, error) {
	var bills []domain.Bill
	err := db.WithContext(ctx).Raw(
		selectBills+` WHERE due_date < ? AND remaining_amount > 0
		 ORDER BY due_date ASC, id ASC
		 LIMIT ?`,
		asOf, limit,
	).Scan(&bills).Error
	if err != nil {
		return nil, err
	}
	return bills, nil
}

func (r *repo) DeleteForPeriod(ctx context.Context, db *gorm.DB, year, month int) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`DELETE FROM bills WHERE billing_year = ? AND billing_month = ?`,
		year, month,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) DeleteAll(ctx context.Context, db *gorm.DB) (int64, error) {
	res := db.WithContext(ctx).Exec(`DELETE FROM bills`)
	return res.RowsAffected, res.Error
}
