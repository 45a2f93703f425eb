package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/netbill/internal/payment/domain"
	"github.com/smallbiznis/netbill/pkg/db/option"
	"github.com/smallbiznis/netbill/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const paymentColumns = `id, payment_number, bill_id, customer_id, amount, method, payment_date,
	reference_number, notes, recorded_by, created_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO payments (`+paymentColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		payment.ID,
		payment.PaymentNumber,
		payment.BillID,
		payment.CustomerID,
		payment.Amount,
		payment.Method,
		payment.PaymentDate,
		payment.ReferenceNumber,
		payment.Notes,
		payment.RecordedBy,
		payment.CreatedAt,
	).Error
}

func (r *repo) ListByBill(ctx context.Context, db *gorm.DB, billID snowflake.ID) ([]domain.Payment, error) {
	var payments []domain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT `+paymentColumns+` FROM payments WHERE bill_id = ? ORDER BY created_at ASC, id ASC`,
		billID,
	).Scan(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListPaymentFilter, page pagination.Pagination) ([]*domain.Payment, error) {
	var payments []*domain.Payment
	stmt := db.WithContext(ctx).Model(&domain.Payment{})
	if filter.BillID != 0 {
		stmt = stmt.Where("bill_id = ?", filter.BillID)
	}
	if filter.CustomerID != 0 {
		stmt = stmt.Where("customer_id = ?", filter.CustomerID)
	}
	if filter.Method != "" {
		stmt = stmt.Where("method = ?", filter.Method)
	}
	if !filter.PaidFrom.IsZero() {
		stmt = stmt.Where("payment_date >= ?", filter.PaidFrom.UTC())
	}
	if !filter.PaidBefore.IsZero() {
		stmt = stmt.Where("payment_date < ?", filter.PaidBefore.UTC())
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *repo) SumByBill(ctx context.Context, db *gorm.DB, billID snowflake.ID) (int64, error) {
	var sum int64
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(amount), 0) FROM payments WHERE bill_id = ?`,
		billID,
	).Scan(&sum).Error
	return sum, err
}

func (r *repo) DeleteForPeriod(ctx context.Context, db *gorm.DB, year, month int) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`DELETE FROM payments
		 WHERE bill_id IN (SELECT id FROM bills WHERE billing_year = ? AND billing_month = ?)`,
		year, month,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) DeleteAll(ctx context.Context, db *gorm.DB) (int64, error) {
	res := db.WithContext(ctx).Exec(`DELETE FROM payments`)
	return res.RowsAffected, res.Error
}
