package repository

import (
	"context"

	"github.com/smallbiznis/netbill/internal/billingaudit/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.Entry) error {
	if entry == nil {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO billing_audit_entries (
			id, action, description, bill_id, customer_id, billing_month, billing_year,
			actor_type, actor_id, metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.Action,
		entry.Description,
		entry.BillID,
		entry.CustomerID,
		entry.BillingMonth,
		entry.BillingYear,
		entry.ActorType,
		entry.ActorID,
		entry.Metadata,
		entry.CreatedAt,
	).Error
}

// DeleteForPeriod removes entries tagged with the period and entries attached
// to bills of that period.
func (r *repo) DeleteForPeriod(ctx context.Context, db *gorm.DB, year, month int) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`DELETE FROM billing_audit_entries
		 WHERE (billing_year = ? AND billing_month = ?)
		    OR bill_id IN (SELECT id FROM bills WHERE billing_year = ? AND billing_month = ?)`,
		year, month, year, month,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) DeleteAll(ctx context.Context, db *gorm.DB) (int64, error) {
	res := db.WithContext(ctx).Exec(`DELETE FROM billing_audit_entries`)
	return res.RowsAffected, res.Error
}
