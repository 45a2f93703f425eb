package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	billdomain "github.com/smallbiznis/netbill/internal/bill/domain"
	billrepo "github.com/smallbiznis/netbill/internal/bill/repository"
	billservice "github.com/smallbiznis/netbill/internal/bill/service"
	auditrepo "github.com/smallbiznis/netbill/internal/billingaudit/repository"
	auditservice "github.com/smallbiznis/netbill/internal/billingaudit/service"
	"github.com/smallbiznis/netbill/internal/clock"
	"github.com/smallbiznis/netbill/internal/config"
	customerrepo "github.com/smallbiznis/netbill/internal/customer/repository"
	customerservice "github.com/smallbiznis/netbill/internal/customer/service"
	"github.com/smallbiznis/netbill/internal/notification"
	paymentrepo "github.com/smallbiznis/netbill/internal/payment/repository"
	"github.com/smallbiznis/netbill/internal/providers/pdf"
	"github.com/smallbiznis/netbill/internal/testutil"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeNotifier struct {
	mu        sync.Mutex
	bills     []notification.BillIssued
	payments  []notification.PaymentReceived
	reminders []notification.PaymentReminder
	err       error
}

func (n *fakeNotifier) NotifyBillIssued(ctx context.Context, msg notification.BillIssued) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.bills = append(n.bills, msg)
	return n.err
}

func (n *fakeNotifier) NotifyPaymentReceived(ctx context.Context, msg notification.PaymentReceived) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.payments = append(n.payments, msg)
	return n.err
}

func (n *fakeNotifier) NotifyPaymentReminder(ctx context.Context, msg notification.PaymentReminder) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reminders = append(n.reminders, msg)
	return n.err
}

type harness struct {
	db       *gorm.DB
	node     *snowflake.Node
	clock    *clock.FakeClock
	notifier *fakeNotifier
	repo     billdomain.Repository
	svc      billdomain.Service
}

type harnessOption func(*billservice.Params, *config.BillingConfig)

func withRepo(wrap func(billdomain.Repository) billdomain.Repository) harnessOption {
	return func(p *billservice.Params, _ *config.BillingConfig) {
		p.Repo = wrap(p.Repo)
	}
}

func withBilling(fn func(*config.BillingConfig)) harnessOption {
	return func(_ *billservice.Params, cfg *config.BillingConfig) {
		fn(cfg)
	}
}

func testBillingConfig() config.BillingConfig {
	cfg := config.DefaultBillingConfig()
	cfg.Sequence.BaseDelay = time.Millisecond
	cfg.Sequence.MaxDelay = 2 * time.Millisecond
	cfg.Sequence.MaxJitter = 0
	cfg.Concurrency.MaxConflictRetries = 3
	return cfg
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	db := testutil.NewDB(t)
	node := testutil.NewNode(t, 7)
	clk := clock.NewFakeClock(time.Date(2026, time.October, 19, 9, 0, 0, 0, time.UTC))
	log := zap.NewNop()
	notifier := &fakeNotifier{}

	customers := customerservice.New(customerservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk, Repo: customerrepo.Provide(),
	})
	auditRepo := auditrepo.Provide()
	auditSvc := auditservice.New(auditservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk, Repo: auditRepo,
	})

	billing := testBillingConfig()
	params := billservice.Params{
		DB:          db,
		Log:         log,
		GenID:       node,
		Clock:       clk,
		Cfg:         config.Config{CompanyName: "Toni Net"},
		Repo:        billrepo.Provide(),
		PaymentRepo: paymentrepo.Provide(),
		AuditRepo:   auditRepo,
		AuditSvc:    auditSvc,
		Customers:   customers,
		Notifier:    notifier,
		PDF:         pdf.New(),
	}
	for _, opt := range opts {
		opt(&params, &billing)
	}
	params.Billing = config.NewStaticBillingConfig(billing)

	return &harness{
		db:       db,
		node:     node,
		clock:    clk,
		notifier: notifier,
		repo:     params.Repo,
		svc:      billservice.New(params),
	}
}

func (h *harness) customer(t *testing.T, name string, fee, debt int64) snowflake.ID {
	t.Helper()
	return testutil.InsertCustomer(t, h.db, h.node, testutil.CustomerSeed{
		Name:        name,
		Phone:       "0812000" + name,
		PackageName: "10 Mbps",
		MonthlyFee:  fee,
		CarriedDebt: debt,
	})
}

func (h *harness) insertPayment(t *testing.T, billID, customerID snowflake.ID, number string, amount int64) {
	t.Helper()
	now := h.clock.Now()
	err := h.db.Exec(
		`INSERT INTO payments (id, payment_number, bill_id, customer_id, amount, method, payment_date, created_at)
		 VALUES (?, ?, ?, ?, ?, 'cash', ?, ?)`,
		h.node.Generate(), number, billID, customerID, amount, now, now,
	).Error
	if err != nil {
		t.Fatalf("insert payment: %v", err)
	}
}

// failingInsertRepo fails bill inserts for selected customers.
type failingInsertRepo struct {
	billdomain.Repository
	failFor map[snowflake.ID]error
}

func (r *failingInsertRepo) Insert(ctx context.Context, db *gorm.DB, bill *billdomain.Bill) (bool, error) {
	if err, ok := r.failFor[bill.CustomerID]; ok {
		return false, err
	}
	return r.Repository.Insert(ctx, db, bill)
}

// bumpingRepo simulates a concurrent writer by bumping the bill version
// right before the versioned update.
type bumpingRepo struct {
	billdomain.Repository
	mu    sync.Mutex
	bumps int
	calls int
}

func (r *bumpingRepo) UpdateBalance(ctx context.Context, db *gorm.DB, bill *billdomain.Bill, expectedVersion int64) (bool, error) {
	r.mu.Lock()
	r.calls++
	bump := r.bumps > 0
	if bump {
		r.bumps--
	}
	r.mu.Unlock()

	if bump {
		if err := db.Exec(`UPDATE bills SET version = version + 1 WHERE id = ?`, bill.ID).Error; err != nil {
			return false, err
		}
	}
	return r.Repository.UpdateBalance(ctx, db, bill, expectedVersion)
}

var errBoom = errors.New("boom")
