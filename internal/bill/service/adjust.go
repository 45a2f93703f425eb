package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/netbill/internal/balance"
	billdomain "github.com/smallbiznis/netbill/internal/bill/domain"
	auditdomain "github.com/smallbiznis/netbill/internal/billingaudit/domain"
	"github.com/smallbiznis/netbill/internal/billingerr"
	"github.com/smallbiznis/netbill/internal/observability/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var errVersionConflict = errors.New("bill version changed")

// reconciliationFailure aborts the transaction; the hold is placed after
// rollback so it survives.
type reconciliationFailure struct {
	reason string
}

func (e *reconciliationFailure) Error() string { return e.reason }

type adjustField string

const (
	fieldCompensation adjustField = "compensation"
	fieldPreviousDebt adjustField = "previous_debt"
)

func (s *Service) SetCompensation(ctx context.Context, req billdomain.AdjustRequest) (billdomain.Bill, error) {
	return s.adjust(ctx, req, fieldCompensation)
}

func (s *Service) SetPreviousDebt(ctx context.Context, req billdomain.AdjustRequest) (billdomain.Bill, error) {
	return s.adjust(ctx, req, fieldPreviousDebt)
}

func (s *Service) adjust(ctx context.Context, req billdomain.AdjustRequest, field adjustField) (billdomain.Bill, error) {
	billID, err := parseBillID(req.BillID)
	if err != nil {
		return billdomain.Bill{}, err
	}
	if req.Amount < 0 {
		return billdomain.Bill{}, billingerr.ErrInvalidAmount
	}

	maxAttempts := s.billing.Get().Concurrency.MaxConflictRetries
	var (
		updated  billdomain.Bill
		oldValue int64
	)
	for attempt := 1; ; attempt++ {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			bill, err := s.repo.FindByID(ctx, tx, billID)
			if err != nil {
				return err
			}
			if bill == nil {
				return billdomain.ErrNotFound
			}
			if bill.ReconciliationHold {
				return &billingerr.IntegrityError{BillID: bill.ID.String(), Reason: "bill is on reconciliation hold"}
			}
			if err := s.reconcile(ctx, tx, bill); err != nil {
				return err
			}

			switch field {
			case fieldCompensation:
				oldValue = bill.Compensation
				bill.Compensation = req.Amount
			case fieldPreviousDebt:
				oldValue = bill.PreviousDebt
				bill.PreviousDebt = req.Amount
			}
			bill.Recompute()
			bill.UpdatedAt = s.clock.Now()

			ok, err := s.repo.UpdateBalance(ctx, tx, bill, bill.Version)
			if err != nil {
				return err
			}
			if !ok {
				return errVersionConflict
			}
			updated = *bill
			return nil
		})
		if errors.Is(err, errVersionConflict) && attempt < maxAttempts {
			continue
		}
		break
	}

	var failure *reconciliationFailure
	switch {
	case errors.Is(err, errVersionConflict):
		return billdomain.Bill{}, billingerr.ErrConflict
	case errors.As(err, &failure):
		return billdomain.Bill{}, s.placeHold(ctx, billID, failure.reason)
	case err != nil:
		return billdomain.Bill{}, err
	}

	logger.WithBill(logger.WithContext(ctx, s.log), updated.ID.String(), updated.BillNumber).Info("bill adjusted",
		zap.String("field", string(field)),
		zap.Int64("old", oldValue),
		zap.Int64("new", req.Amount),
		zap.Int64("total_amount", updated.TotalAmount),
	)

	billRef := updated.ID
	customerRef := updated.CustomerID
	s.emitAudit(ctx, auditdomain.AppendRequest{
		Action:       auditdomain.ActionCompensationEdit,
		Description:  fmt.Sprintf("%s on %s changed from %d to %d", field, updated.BillNumber, oldValue, req.Amount),
		BillID:       &billRef,
		CustomerID:   &customerRef,
		BillingMonth: updated.BillingMonth,
		BillingYear:  updated.BillingYear,
		Metadata: map[string]any{
			"field":            string(field),
			"old_value":        oldValue,
			"new_value":        req.Amount,
			"total_amount":     updated.TotalAmount,
			"remaining_amount": updated.RemainingAmount,
			"status":           string(updated.Status),
		},
	})
	return updated, nil
}

// reconcile checks the stored bill against the balance rules and its payments.
func (s *Service) reconcile(ctx context.Context, tx *gorm.DB, bill *billdomain.Bill) error {
	if reason := balance.Verify(bill.Snapshot()); reason != "" {
		return &reconciliationFailure{reason: reason}
	}
	sum, err := s.paymentRepo.SumByBill(ctx, tx, bill.ID)
	if err != nil {
		return err
	}
	if sum != bill.PaidAmount {
		return &reconciliationFailure{
			reason: fmt.Sprintf("payments sum to %d but paid_amount is %d", sum, bill.PaidAmount),
		}
	}
	return nil
}

func (s *Service) placeHold(ctx context.Context, billID snowflake.ID, reason string) error {
	if err := s.repo.SetHold(ctx, s.db, billID, true, s.clock.Now()); err != nil {
		s.log.Error("failed to place reconciliation hold",
			zap.String("bill_id", billID.String()),
			zap.Error(err),
		)
	}
	s.metrics.RecordIntegrityHold(ctx, "adjustment")
	s.log.Error("bill placed on reconciliation hold",
		zap.String("bill_id", billID.String()),
		zap.String("reason", reason),
	)
	return &billingerr.IntegrityError{BillID: billID.String(), Reason: reason}
}
