package service

import (
	"context"
	"fmt"
	"strings"

	billdomain "github.com/smallbiznis/netbill/internal/bill/domain"
	auditdomain "github.com/smallbiznis/netbill/internal/billingaudit/domain"
	"github.com/smallbiznis/netbill/internal/observability/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ResetPeriod deletes billing data for one period, or all of it, in a single
// transaction. Audit entries go first, then payments, then bills.
func (s *Service) ResetPeriod(ctx context.Context, req billdomain.ResetRequest) (billdomain.ResetResult, error) {
	if !s.billing.Get().Reset.Enabled {
		return billdomain.ResetResult{}, billdomain.ErrResetDisabled
	}

	scope := billdomain.ResetScope(strings.ToLower(strings.TrimSpace(string(req.Scope))))
	switch scope {
	case billdomain.ResetScopePeriod:
		if !billdomain.ValidPeriod(req.Month, req.Year) {
			return billdomain.ResetResult{}, billdomain.ErrInvalidPeriod
		}
	case billdomain.ResetScopeAll:
	default:
		return billdomain.ResetResult{}, billdomain.ErrInvalidResetScope
	}
	if strings.TrimSpace(req.Confirmation) != billdomain.ResetConfirmation(scope, req.Year, req.Month) {
		return billdomain.ResetResult{}, billdomain.ErrInvalidConfirmation
	}

	result := billdomain.ResetResult{Scope: scope}
	if scope == billdomain.ResetScopePeriod {
		result.BillingMonth = req.Month
		result.BillingYear = req.Year
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if scope == billdomain.ResetScopeAll {
			if result.DeletedAuditEntries, err = s.auditRepo.DeleteAll(ctx, tx); err != nil {
				return err
			}
			if result.DeletedPayments, err = s.paymentRepo.DeleteAll(ctx, tx); err != nil {
				return err
			}
			result.DeletedBills, err = s.repo.DeleteAll(ctx, tx)
			return err
		}

		if result.DeletedAuditEntries, err = s.auditRepo.DeleteForPeriod(ctx, tx, req.Year, req.Month); err != nil {
			return err
		}
		if result.DeletedPayments, err = s.paymentRepo.DeleteForPeriod(ctx, tx, req.Year, req.Month); err != nil {
			return err
		}
		result.DeletedBills, err = s.repo.DeleteForPeriod(ctx, tx, req.Year, req.Month)
		return err
	})
	if err != nil {
		return billdomain.ResetResult{}, err
	}

	logger.WithContext(ctx, s.log).Warn("billing data reset",
		zap.String("scope", string(scope)),
		zap.Int("billing_month", result.BillingMonth),
		zap.Int("billing_year", result.BillingYear),
		zap.Int64("deleted_bills", result.DeletedBills),
		zap.Int64("deleted_payments", result.DeletedPayments),
		zap.Int64("deleted_audit_entries", result.DeletedAuditEntries),
	)

	description := "Reset all billing data"
	if scope == billdomain.ResetScopePeriod {
		description = fmt.Sprintf("Reset billing period %04d-%02d", req.Year, req.Month)
	}
	s.emitAudit(ctx, auditdomain.AppendRequest{
		Action:       auditdomain.ActionPeriodReset,
		Description:  description,
		BillingMonth: result.BillingMonth,
		BillingYear:  result.BillingYear,
		Metadata: map[string]any{
			"scope":                 string(scope),
			"deleted_bills":         result.DeletedBills,
			"deleted_payments":      result.DeletedPayments,
			"deleted_audit_entries": result.DeletedAuditEntries,
		},
	})
	return result, nil
}
