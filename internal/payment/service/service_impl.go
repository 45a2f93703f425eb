package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/netbill/internal/auditcontext"
	"github.com/smallbiznis/netbill/internal/balance"
	billdomain "github.com/smallbiznis/netbill/internal/bill/domain"
	auditdomain "github.com/smallbiznis/netbill/internal/billingaudit/domain"
	"github.com/smallbiznis/netbill/internal/billingerr"
	"github.com/smallbiznis/netbill/internal/clock"
	"github.com/smallbiznis/netbill/internal/config"
	"github.com/smallbiznis/netbill/internal/notification"
	"github.com/smallbiznis/netbill/internal/observability/logger"
	"github.com/smallbiznis/netbill/internal/observability/metrics"
	"github.com/smallbiznis/netbill/internal/payment/domain"
	"github.com/smallbiznis/netbill/internal/sequence"
	"github.com/smallbiznis/netbill/pkg/db"
	"github.com/smallbiznis/netbill/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Billing  *config.BillingConfigHolder
	Repo     domain.Repository
	BillRepo billdomain.Repository
	AuditSvc auditdomain.Service
	Notifier notification.Notifier
	Metrics  *metrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	billing  *config.BillingConfigHolder
	repo     domain.Repository
	billRepo billdomain.Repository
	auditSvc auditdomain.Service
	notifier notification.Notifier
	metrics  *metrics.Metrics

	retrier *sequence.Retrier
}

func New(p Params) domain.Service {
	s := &Service{
		db:       p.DB,
		log:      p.Log.Named("payment.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		billing:  p.Billing,
		repo:     p.Repo,
		billRepo: p.BillRepo,
		auditSvc: p.AuditSvc,
		notifier: p.Notifier,
		metrics:  p.Metrics,
	}
	s.retrier = sequence.NewRetrier(
		func() sequence.Policy { return sequence.PolicyFromConfig(s.billing.Get().Sequence) },
		sequence.WithRetryHook(func(ctx context.Context, stem string, attempt int, err error) {
			s.metrics.RecordSequenceRetry(ctx, "payment")
			s.log.Info("payment number collision, retrying",
				zap.String("stem", stem),
				zap.Int("attempt", attempt),
			)
		}),
	)
	return s
}

var errVersionConflict = errors.New("bill version changed")

type reconciliationFailure struct {
	reason string
}

func (e *reconciliationFailure) Error() string { return e.reason }

// RecordPayment applies a payment to a bill. The payment row and the bill's
// new balance are written in one transaction; a concurrent writer makes the
// versioned update miss and the whole transaction is retried against the
// fresh bill.
func (s *Service) RecordPayment(ctx context.Context, req domain.RecordPaymentRequest) (domain.RecordPaymentResult, error) {
	billID, err := snowflake.ParseString(strings.TrimSpace(req.BillID))
	if err != nil || billID == 0 {
		return domain.RecordPaymentResult{}, billdomain.ErrInvalidBillID
	}
	if req.Amount <= 0 {
		return domain.RecordPaymentResult{}, billingerr.ErrInvalidAmount
	}
	method := strings.ToLower(strings.TrimSpace(req.Method))
	if method == "" {
		return domain.RecordPaymentResult{}, domain.ErrInvalidMethod
	}

	now := s.clock.Now()
	paymentDate := now
	if req.PaymentDate != nil && !req.PaymentDate.IsZero() {
		paymentDate = req.PaymentDate.UTC()
	}
	_, actorID := auditcontext.ActorFromContext(ctx)

	maxAttempts := s.billing.Get().Concurrency.MaxConflictRetries
	var (
		payment domain.Payment
		bill    billdomain.Bill
	)
	for attempt := 1; ; attempt++ {
		stem := sequence.PrefixPayment + "-" + now.Format("20060102")
		err = s.retrier.Do(ctx, stem, func(ctx context.Context, _ int) error {
			return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
				current, err := s.billRepo.FindByID(ctx, tx, billID)
				if err != nil {
					return err
				}
				if current == nil {
					return billdomain.ErrNotFound
				}
				if current.ReconciliationHold {
					return &billingerr.IntegrityError{BillID: current.ID.String(), Reason: "bill is on reconciliation hold"}
				}
				if reason := balance.Verify(current.Snapshot()); reason != "" {
					return &reconciliationFailure{reason: reason}
				}
				if req.Amount > current.RemainingAmount {
					return &billingerr.OverpaymentError{
						BillID:    current.ID.String(),
						Amount:    req.Amount,
						Remaining: current.RemainingAmount,
					}
				}

				payment = domain.Payment{
					ID:              s.genID.Generate(),
					PaymentNumber:   sequence.PaymentNumber(s.clock.Now()),
					BillID:          current.ID,
					CustomerID:      current.CustomerID,
					Amount:          req.Amount,
					Method:          method,
					PaymentDate:     paymentDate,
					ReferenceNumber: optionalString(req.ReferenceNumber),
					Notes:           optionalString(req.Notes),
					RecordedBy:      optionalString(actorID),
					CreatedAt:       s.clock.Now(),
				}
				if err := s.repo.Insert(ctx, tx, &payment); err != nil {
					if db.IsDuplicateKeyErr(err) {
						return sequence.Collision(err)
					}
					return err
				}

				expectedVersion := current.Version
				current.PaidAmount += req.Amount
				current.Recompute()
				current.UpdatedAt = s.clock.Now()

				ok, err := s.billRepo.UpdateBalance(ctx, tx, current, expectedVersion)
				if err != nil {
					return err
				}
				if !ok {
					return errVersionConflict
				}

				sum, err := s.repo.SumByBill(ctx, tx, current.ID)
				if err != nil {
					return err
				}
				if sum != current.PaidAmount {
					return &reconciliationFailure{
						reason: fmt.Sprintf("payments sum to %d but paid_amount is %d", sum, current.PaidAmount),
					}
				}
				if reason := balance.Verify(current.Snapshot()); reason != "" {
					return &reconciliationFailure{reason: reason}
				}

				bill = *current
				return nil
			})
		})
		if errors.Is(err, errVersionConflict) && attempt < maxAttempts {
			s.log.Debug("bill changed during payment, retrying",
				zap.String("bill_id", billID.String()),
				zap.Int("attempt", attempt),
			)
			continue
		}
		break
	}

	var (
		failure   *reconciliationFailure
		exhausted *billingerr.SequenceExhaustedError
	)
	switch {
	case errors.Is(err, errVersionConflict):
		return domain.RecordPaymentResult{}, billingerr.ErrConflict
	case errors.As(err, &failure):
		return domain.RecordPaymentResult{}, s.placeHold(ctx, billID, failure.reason)
	case errors.As(err, &exhausted):
		s.metrics.RecordSequenceExhausted(ctx, "payment")
		return domain.RecordPaymentResult{}, err
	case err != nil:
		return domain.RecordPaymentResult{}, err
	}

	log := logger.WithBill(logger.WithContext(ctx, s.log), bill.ID.String(), bill.BillNumber)
	log.Info("payment recorded",
		zap.String("payment_number", payment.PaymentNumber),
		zap.Int64("amount", payment.Amount),
		zap.Int64("remaining_amount", bill.RemainingAmount),
		zap.String("status", string(bill.Status)),
	)
	s.metrics.RecordPayment(ctx, payment.Method, payment.Amount)

	billRef := bill.ID
	customerRef := bill.CustomerID
	if s.auditSvc != nil {
		_ = s.auditSvc.Append(ctx, auditdomain.AppendRequest{
			Action:       auditdomain.ActionPayment,
			Description:  fmt.Sprintf("Payment %s of %d on %s", payment.PaymentNumber, payment.Amount, bill.BillNumber),
			BillID:       &billRef,
			CustomerID:   &customerRef,
			BillingMonth: bill.BillingMonth,
			BillingYear:  bill.BillingYear,
			Metadata: map[string]any{
				"payment_id":       payment.ID.String(),
				"payment_number":   payment.PaymentNumber,
				"amount":           payment.Amount,
				"method":           payment.Method,
				"paid_amount":      bill.PaidAmount,
				"remaining_amount": bill.RemainingAmount,
				"status":           string(bill.Status),
			},
		})
	}

	notified := true
	if err := s.notifier.NotifyPaymentReceived(ctx, notification.PaymentReceived{
		CustomerName:  bill.CustomerName,
		Phone:         bill.CustomerPhone,
		BillNumber:    bill.BillNumber,
		PaymentNumber: payment.PaymentNumber,
		Amount:        payment.Amount,
		Remaining:     bill.RemainingAmount,
		PaidInFull:    bill.Status == balance.StatusPaid,
		PaymentDate:   payment.PaymentDate,
	}); err != nil {
		notified = false
		log.Debug("payment notification not delivered", zap.Error(err))
	}

	return domain.RecordPaymentResult{
		Payment:  payment,
		Bill:     bill,
		Notified: notified,
	}, nil
}

func (s *Service) ListByBill(ctx context.Context, billID string) ([]domain.Payment, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(billID))
	if err != nil || id == 0 {
		return nil, billdomain.ErrInvalidBillID
	}

	bill, err := s.billRepo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if bill == nil {
		return nil, billdomain.ErrNotFound
	}

	payments, err := s.repo.ListByBill(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if payments == nil {
		payments = []domain.Payment{}
	}
	return payments, nil
}

func (s *Service) List(ctx context.Context, req domain.ListPaymentRequest) (domain.ListPaymentResponse, error) {
	filter := domain.ListPaymentFilter{
		Method: strings.ToLower(strings.TrimSpace(req.Method)),
	}
	var err error
	if filter.BillID, err = parseOptionalID(req.BillID); err != nil {
		return domain.ListPaymentResponse{}, err
	}
	if filter.CustomerID, err = parseOptionalID(req.CustomerID); err != nil {
		return domain.ListPaymentResponse{}, err
	}
	if !req.DateFrom.IsZero() {
		filter.PaidFrom = startOfDay(req.DateFrom)
	}
	if !req.DateTo.IsZero() {
		filter.PaidBefore = startOfDay(req.DateTo).AddDate(0, 0, 1)
	}
	if !filter.PaidFrom.IsZero() && !filter.PaidBefore.IsZero() && !filter.PaidFrom.Before(filter.PaidBefore) {
		return domain.ListPaymentResponse{}, domain.ErrInvalidDateRange
	}
	if req.PageToken != "" {
		if _, err := pagination.DecodeCursor(req.PageToken); err != nil {
			return domain.ListPaymentResponse{}, domain.ErrInvalidPageToken
		}
	}

	pageSize := pagination.ClampSize(req.PageSize)

	items, err := s.repo.List(ctx, s.db, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return domain.ListPaymentResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(payment *domain.Payment) string {
		return pagination.CursorAt(payment.ID.Int64(), payment.CreatedAt)
	})
	items = pagination.Trim(items, pageSize)

	payments := make([]domain.Payment, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		payments = append(payments, *item)
	}

	resp := domain.ListPaymentResponse{Payments: payments}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) placeHold(ctx context.Context, billID snowflake.ID, reason string) error {
	if err := s.billRepo.SetHold(ctx, s.db, billID, true, s.clock.Now()); err != nil {
		s.log.Error("failed to place reconciliation hold",
			zap.String("bill_id", billID.String()),
			zap.Error(err),
		)
	}
	s.metrics.RecordIntegrityHold(ctx, "payment")
	s.log.Error("bill placed on reconciliation hold",
		zap.String("bill_id", billID.String()),
		zap.String("reason", reason),
	)
	return &billingerr.IntegrityError{BillID: billID.String(), Reason: reason}
}

func parseOptionalID(raw string) (snowflake.ID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	id, err := snowflake.ParseString(raw)
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidFilterID
	}
	return id, nil
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
