package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/netbill/internal/balance"
	billdomain "github.com/smallbiznis/netbill/internal/bill/domain"
	auditdomain "github.com/smallbiznis/netbill/internal/billingaudit/domain"
	"github.com/smallbiznis/netbill/internal/clock"
	"github.com/smallbiznis/netbill/internal/config"
	customerdomain "github.com/smallbiznis/netbill/internal/customer/domain"
	"github.com/smallbiznis/netbill/internal/notification"
	"github.com/smallbiznis/netbill/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/netbill/internal/payment/domain"
	"github.com/smallbiznis/netbill/internal/providers/pdf"
	"github.com/smallbiznis/netbill/internal/sequence"
	"github.com/smallbiznis/netbill/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Cfg         config.Config
	Billing     *config.BillingConfigHolder
	Repo        billdomain.Repository
	PaymentRepo paymentdomain.Repository
	AuditRepo   auditdomain.Repository
	AuditSvc    auditdomain.Service
	Customers   customerdomain.Service
	Notifier    notification.Notifier
	PDF         pdf.Provider
	Metrics     *metrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	company     string
	billing     *config.BillingConfigHolder
	repo        billdomain.Repository
	paymentRepo paymentdomain.Repository
	auditRepo   auditdomain.Repository
	auditSvc    auditdomain.Service
	customers   customerdomain.Service
	notifier    notification.Notifier
	pdf         pdf.Provider
	metrics     *metrics.Metrics

	allocator *sequence.Allocator
	retrier   *sequence.Retrier
}

func New(p Params) billdomain.Service {
	s := &Service{
		db:          p.DB,
		log:         p.Log.Named("bill.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		company:     p.Cfg.CompanyName,
		billing:     p.Billing,
		repo:        p.Repo,
		paymentRepo: p.PaymentRepo,
		auditRepo:   p.AuditRepo,
		auditSvc:    p.AuditSvc,
		customers:   p.Customers,
		notifier:    p.Notifier,
		pdf:         p.PDF,
		metrics:     p.Metrics,
		allocator:   sequence.NewAllocator("bills", "bill_number"),
	}
	s.retrier = sequence.NewRetrier(
		func() sequence.Policy { return sequence.PolicyFromConfig(s.billing.Get().Sequence) },
		sequence.WithRetryHook(func(ctx context.Context, stem string, attempt int, err error) {
			s.metrics.RecordSequenceRetry(ctx, "bill")
			s.log.Info("bill number collision, retrying",
				zap.String("stem", stem),
				zap.Int("attempt", attempt),
			)
		}),
	)
	return s
}

func (s *Service) GetByID(ctx context.Context, id string) (billdomain.Bill, error) {
	billID, err := parseBillID(id)
	if err != nil {
		return billdomain.Bill{}, err
	}

	bill, err := s.repo.FindByID(ctx, s.db, billID)
	if err != nil {
		return billdomain.Bill{}, err
	}
	if bill == nil {
		return billdomain.Bill{}, billdomain.ErrNotFound
	}
	return *bill, nil
}

func (s *Service) List(ctx context.Context, req billdomain.ListBillRequest) (billdomain.ListBillResponse, error) {
	filter := billdomain.ListBillFilter{
		BillingMonth: req.Month,
		BillingYear:  req.Year,
	}
	if req.Month < 0 || req.Month > 12 || req.Year < 0 {
		return billdomain.ListBillResponse{}, billdomain.ErrInvalidPeriod
	}
	if status := strings.ToLower(strings.TrimSpace(req.Status)); status != "" {
		switch balance.Status(status) {
		case balance.StatusUnpaid, balance.StatusPartial, balance.StatusPaid:
			filter.Status = status
		default:
			return billdomain.ListBillResponse{}, billdomain.ErrInvalidStatus
		}
	}
	if raw := strings.TrimSpace(req.CustomerID); raw != "" {
		id, err := snowflake.ParseString(raw)
		if err != nil || id == 0 {
			return billdomain.ListBillResponse{}, billdomain.ErrInvalidCustomerID
		}
		filter.CustomerID = id
	}
	if req.PageToken != "" {
		if _, err := pagination.DecodeCursor(req.PageToken); err != nil {
			return billdomain.ListBillResponse{}, billdomain.ErrInvalidPageToken
		}
	}

	pageSize := pagination.ClampSize(req.PageSize)

	items, err := s.repo.List(ctx, s.db, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return billdomain.ListBillResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(bill *billdomain.Bill) string {
		return pagination.CursorAt(bill.ID.Int64(), bill.CreatedAt)
	})
	items = pagination.Trim(items, pageSize)

	bills := make([]billdomain.Bill, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		bills = append(bills, *item)
	}

	resp := billdomain.ListBillResponse{Bills: bills}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) Stats(ctx context.Context, req billdomain.StatsRequest) (billdomain.Stats, error) {
	if !billdomain.ValidPeriod(req.Month, req.Year) {
		return billdomain.Stats{}, billdomain.ErrInvalidPeriod
	}
	return s.repo.Stats(ctx, s.db, req.Year, req.Month)
}

func (s *Service) ListOverdue(ctx context.Context, req billdomain.OverdueRequest) ([]billdomain.Bill, error) {
	asOf := req.AsOf
	if asOf.IsZero() {
		asOf = s.clock.Now()
	}
	asOf = startOfDay(asOf)

	limit := req.Limit
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}

	bills, err := s.repo.ListOverdue(ctx, s.db, asOf, limit)
	if err != nil {
		return nil, err
	}
	if bills == nil {
		bills = []billdomain.Bill{}
	}
	return bills, nil
}

func (s *Service) emitAudit(ctx context.Context, req auditdomain.AppendRequest) {
	if s.auditSvc == nil {
		return
	}
	// Append logs its own failures; the ledger write is already committed.
	_ = s.auditSvc.Append(ctx, req)
}

func parseBillID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, billdomain.ErrInvalidBillID
	}
	return id, nil
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
