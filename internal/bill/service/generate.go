package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/netbill/internal/balance"
	billdomain "github.com/smallbiznis/netbill/internal/bill/domain"
	auditdomain "github.com/smallbiznis/netbill/internal/billingaudit/domain"
	"github.com/smallbiznis/netbill/internal/billingerr"
	customerdomain "github.com/smallbiznis/netbill/internal/customer/domain"
	"github.com/smallbiznis/netbill/internal/notification"
	"github.com/smallbiznis/netbill/internal/observability/logger"
	"github.com/smallbiznis/netbill/internal/sequence"
	"github.com/smallbiznis/netbill/pkg/db"
	"go.uber.org/zap"
)

type issuedBill struct {
	bill     billdomain.Bill
	customer customerdomain.Customer
}

// Generate issues one bill per eligible active customer for the period.
// Each customer is an independent unit of work: a failure is reported in the
// result and does not undo bills created for other customers. Running it
// again for the same period only fills in what is missing.
func (s *Service) Generate(ctx context.Context, req billdomain.GenerateRequest) (billdomain.GenerateResult, error) {
	if !billdomain.ValidPeriod(req.Month, req.Year) {
		return billdomain.GenerateResult{}, billdomain.ErrInvalidPeriod
	}
	log := logger.WithContext(ctx, s.log).With(
		zap.Int("billing_month", req.Month),
		zap.Int("billing_year", req.Year),
	)

	result := billdomain.GenerateResult{
		BillingMonth: req.Month,
		BillingYear:  req.Year,
		Created:      []billdomain.Bill{},
		Failures:     []billdomain.GenerationFailure{},
	}

	customers, err := s.customers.ListActive(ctx)
	if err != nil {
		return billdomain.GenerateResult{}, err
	}
	billed, err := s.repo.BilledCustomerIDs(ctx, s.db, req.Year, req.Month)
	if err != nil {
		return billdomain.GenerateResult{}, err
	}
	alreadyBilled := make(map[snowflake.ID]struct{}, len(billed))
	for _, id := range billed {
		alreadyBilled[id] = struct{}{}
	}

	// A customer owing nothing (no fee, no carried debt) gets no bill.
	eligible := make([]customerdomain.Customer, 0, len(customers))
	for _, customer := range customers {
		if _, ok := alreadyBilled[customer.ID]; ok {
			continue
		}
		if customer.MonthlyFee == 0 && customer.CarriedDebt == 0 {
			continue
		}
		eligible = append(eligible, customer)
	}
	result.CustomerCount = len(eligible)
	result.Skipped = len(customers) - len(eligible)

	if len(eligible) == 0 {
		result.Message = "no eligible customers for this period"
		log.Info("nothing to generate",
			zap.Int("active_customers", len(customers)),
			zap.Int("already_billed", result.Skipped),
		)
		return result, nil
	}

	cfg := s.billing.Get()
	dueDate := DueDate(cfg.DueDate, req.Year, req.Month)
	stem := sequence.Stem(sequence.PrefixBill, req.Year, time.Month(req.Month))

	issued := make([]issuedBill, 0, len(eligible))
	for _, customer := range eligible {
		if err := ctx.Err(); err != nil {
			return billdomain.GenerateResult{}, err
		}

		bill, created, err := s.issueBill(ctx, customer, req, stem, dueDate)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return billdomain.GenerateResult{}, err
			}
			var exhausted *billingerr.SequenceExhaustedError
			if errors.As(err, &exhausted) {
				s.metrics.RecordSequenceExhausted(ctx, "bill")
			}
			log.Warn("bill generation failed for customer",
				zap.String("customer_id", customer.ID.String()),
				zap.Error(err),
			)
			result.Failures = append(result.Failures, billdomain.GenerationFailure{
				CustomerID:   customer.ID,
				CustomerName: customer.Name,
				Kind:         billingerr.KindOf(err),
				Message:      billingerr.Message(err),
			})
			continue
		}
		if !created {
			result.Skipped++
			continue
		}

		issued = append(issued, issuedBill{bill: bill, customer: customer})
		result.Created = append(result.Created, bill)
		result.TotalAmount += bill.TotalAmount
	}
	result.CreatedCount = len(result.Created)

	s.metrics.RecordGeneration(ctx, result.CreatedCount, len(result.Failures))
	if result.CreatedCount == 0 && len(result.Failures) == 0 {
		// Every remaining customer was billed concurrently by another run.
		result.Message = "no eligible customers for this period"
		return result, nil
	}
	s.emitAudit(ctx, auditdomain.AppendRequest{
		Action: auditdomain.ActionGeneration,
		Description: fmt.Sprintf("Generated %d bills for %04d-%02d (%d skipped, %d failed)",
			result.CreatedCount, req.Year, req.Month, result.Skipped, len(result.Failures)),
		BillingMonth: req.Month,
		BillingYear:  req.Year,
		Metadata: map[string]any{
			"customer_count": result.CustomerCount,
			"created_count":  result.CreatedCount,
			"skipped_count":  result.Skipped,
			"failure_count":  len(result.Failures),
			"total_amount":   result.TotalAmount,
		},
	})

	for _, item := range issued {
		if err := s.notifier.NotifyBillIssued(ctx, notification.BillIssued{
			CustomerName:  item.customer.Name,
			Phone:         item.customer.Phone,
			BillNumber:    item.bill.BillNumber,
			BillingMonth:  item.bill.BillingMonth,
			BillingYear:   item.bill.BillingYear,
			Amount:        item.bill.Amount,
			PreviousDebt:  item.bill.PreviousDebt,
			Compensation:  item.bill.Compensation,
			Total:         item.bill.TotalAmount,
			DueDate:       item.bill.DueDate,
			AlreadyPaidUp: item.bill.Status == balance.StatusPaid,
		}); err != nil {
			log.Debug("bill notification not delivered",
				zap.String("bill_number", item.bill.BillNumber),
				zap.Error(err),
			)
			continue
		}
		result.Notified++
	}

	log.Info("bill generation finished",
		zap.Int("created", result.CreatedCount),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", len(result.Failures)),
		zap.Int64("total_amount", result.TotalAmount),
		zap.Int("notified", result.Notified),
	)
	return result, nil
}

// issueBill allocates a bill number and inserts the bill. It reports false
// when a concurrent run already billed the customer for the period.
func (s *Service) issueBill(ctx context.Context, customer customerdomain.Customer, req billdomain.GenerateRequest, stem string, dueDate time.Time) (billdomain.Bill, bool, error) {
	var (
		bill     billdomain.Bill
		inserted bool
	)
	err := s.retrier.Do(ctx, stem, func(ctx context.Context, attempt int) error {
		number, err := s.allocator.Next(ctx, s.db, stem)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		bill = billdomain.Bill{
			ID:            s.genID.Generate(),
			BillNumber:    number,
			CustomerID:    customer.ID,
			BillingMonth:  req.Month,
			BillingYear:   req.Year,
			Amount:        customer.MonthlyFee,
			PreviousDebt:  customer.CarriedDebt,
			DueDate:       dueDate,
			Version:       1,
			CreatedAt:     now,
			UpdatedAt:     now,
			CustomerName:  customer.Name,
			CustomerPhone: customer.Phone,
		}
		bill.Recompute()

		inserted, err = s.repo.Insert(ctx, s.db, &bill)
		if err != nil {
			if db.IsDuplicateKeyErr(err) {
				return sequence.Collision(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return billdomain.Bill{}, false, err
	}
	return bill, inserted, nil
}
