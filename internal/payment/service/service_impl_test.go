package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/netbill/internal/auditcontext"
	"github.com/smallbiznis/netbill/internal/balance"
	billdomain "github.com/smallbiznis/netbill/internal/bill/domain"
	billrepo "github.com/smallbiznis/netbill/internal/bill/repository"
	auditrepo "github.com/smallbiznis/netbill/internal/billingaudit/repository"
	auditservice "github.com/smallbiznis/netbill/internal/billingaudit/service"
	"github.com/smallbiznis/netbill/internal/billingerr"
	"github.com/smallbiznis/netbill/internal/clock"
	"github.com/smallbiznis/netbill/internal/config"
	"github.com/smallbiznis/netbill/internal/notification"
	"github.com/smallbiznis/netbill/internal/payment/domain"
	paymentrepo "github.com/smallbiznis/netbill/internal/payment/repository"
	paymentservice "github.com/smallbiznis/netbill/internal/payment/service"
	"github.com/smallbiznis/netbill/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeNotifier struct {
	mu       sync.Mutex
	payments []notification.PaymentReceived
	err      error
}

func (n *fakeNotifier) NotifyBillIssued(context.Context, notification.BillIssued) error {
	return nil
}

func (n *fakeNotifier) NotifyPaymentReminder(context.Context, notification.PaymentReminder) error {
	return nil
}

func (n *fakeNotifier) NotifyPaymentReceived(_ context.Context, msg notification.PaymentReceived) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.payments = append(n.payments, msg)
	return n.err
}

// bumpingRepo bumps the bill version right before the versioned update, the
// way a concurrent writer would.
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

type harness struct {
	db       *gorm.DB
	node     *snowflake.Node
	clock    *clock.FakeClock
	notifier *fakeNotifier
	bills    billdomain.Repository
	svc      domain.Service
}

// duplicatingRepo reuses an existing payment number for the next
// collisions inserts, so the unique index rejects them.
type duplicatingRepo struct {
	domain.Repository
	mu         sync.Mutex
	number     string
	collisions int
	calls      int
}

func (r *duplicatingRepo) Insert(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	r.mu.Lock()
	r.calls++
	if r.collisions > 0 {
		r.collisions--
		payment.PaymentNumber = r.number
	}
	r.mu.Unlock()
	return r.Repository.Insert(ctx, db, payment)
}

func (r *duplicatingRepo) collide(number string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.number = number
	r.collisions = n
	r.calls = 0
}

func newHarness(t *testing.T, wrap func(billdomain.Repository) billdomain.Repository) *harness {
	t.Helper()
	return buildHarness(t, wrap, paymentrepo.Provide())
}

func buildHarness(t *testing.T, wrap func(billdomain.Repository) billdomain.Repository, payments domain.Repository) *harness {
	t.Helper()

	db := testutil.NewDB(t)
	node := testutil.NewNode(t, 9)
	clk := clock.NewFakeClock(time.Date(2026, time.October, 19, 9, 0, 0, 0, time.UTC))
	log := zap.NewNop()
	notifier := &fakeNotifier{}

	billing := config.DefaultBillingConfig()
	billing.Sequence.BaseDelay = time.Millisecond
	billing.Sequence.MaxDelay = 2 * time.Millisecond
	billing.Sequence.MaxJitter = 0
	billing.Concurrency.MaxConflictRetries = 3

	bills := billrepo.Provide()
	if wrap != nil {
		bills = wrap(bills)
	}

	svc := paymentservice.New(paymentservice.Params{
		DB:       db,
		Log:      log,
		GenID:    node,
		Clock:    clk,
		Billing:  config.NewStaticBillingConfig(billing),
		Repo:     payments,
		BillRepo: bills,
		AuditSvc: auditservice.New(auditservice.Params{
			DB: db, Log: log, GenID: node, Clock: clk, Repo: auditrepo.Provide(),
		}),
		Notifier: notifier,
	})

	return &harness{db: db, node: node, clock: clk, notifier: notifier, bills: bills, svc: svc}
}

// bill inserts an October 2026 bill for a fresh customer.
func (h *harness) bill(t *testing.T, name string, amount int64) *billdomain.Bill {
	t.Helper()

	customerID := testutil.InsertCustomer(t, h.db, h.node, testutil.CustomerSeed{
		Name:        name,
		Phone:       "081234567890",
		PackageName: "20 Mbps",
		MonthlyFee:  amount,
	})
	now := h.clock.Now()
	bill := &billdomain.Bill{
		ID:           h.node.Generate(),
		BillNumber:   "BILL-2026-10-" + name,
		CustomerID:   customerID,
		BillingMonth: 10,
		BillingYear:  2026,
		Amount:       amount,
		DueDate:      time.Date(2026, time.October, 31, 0, 0, 0, 0, time.UTC),
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	bill.Recompute()

	inserted, err := billrepo.Provide().Insert(context.Background(), h.db, bill)
	require.NoError(t, err)
	require.True(t, inserted)
	return bill
}

func (h *harness) reload(t *testing.T, id snowflake.ID) *billdomain.Bill {
	t.Helper()
	bill, err := billrepo.Provide().FindByID(context.Background(), h.db, id)
	require.NoError(t, err)
	require.NotNil(t, bill)
	return bill
}

func pay(billID snowflake.ID, amount int64) domain.RecordPaymentRequest {
	return domain.RecordPaymentRequest{BillID: billID.String(), Amount: amount, Method: "cash"}
}

func TestRecordPaymentPartialThenOverpayment(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	bill := h.bill(t, "budi", 150000)

	result, err := h.svc.RecordPayment(ctx, pay(bill.ID, 100000))
	require.NoError(t, err)
	assert.Equal(t, int64(100000), result.Bill.PaidAmount)
	assert.Equal(t, int64(50000), result.Bill.RemainingAmount)
	assert.Equal(t, balance.StatusPartial, result.Bill.Status)
	assert.Equal(t, int64(2), result.Bill.Version)
	assert.Regexp(t, `^PAY-20261019-[0-9A-Z]{26}$`, result.Payment.PaymentNumber)
	assert.Equal(t, "budi", result.Bill.CustomerName)

	_, err = h.svc.RecordPayment(ctx, pay(bill.ID, 60000))
	var over *billingerr.OverpaymentError
	require.ErrorAs(t, err, &over)
	assert.Equal(t, int64(60000), over.Amount)
	assert.Equal(t, int64(50000), over.Remaining)
	assert.Equal(t, billingerr.KindOverpayment, billingerr.KindOf(err))

	stored := h.reload(t, bill.ID)
	assert.Equal(t, int64(100000), stored.PaidAmount)
	assert.Equal(t, int64(50000), stored.RemainingAmount)
	assert.Equal(t, int64(1), testutil.Count(t, h.db, "payments"))
}

func TestRecordPaymentPaidInFull(t *testing.T) {
	h := newHarness(t, nil)
	ctx := auditcontext.WithActor(context.Background(), "user", "kasir-1", "cashier")
	bill := h.bill(t, "sari", 400000)

	result, err := h.svc.RecordPayment(ctx, domain.RecordPaymentRequest{
		BillID:          bill.ID.String(),
		Amount:          400000,
		Method:          " Transfer ",
		ReferenceNumber: "TRX-991",
	})
	require.NoError(t, err)
	assert.Equal(t, balance.StatusPaid, result.Bill.Status)
	assert.Zero(t, result.Bill.RemainingAmount)
	assert.Equal(t, "transfer", result.Payment.Method)
	require.NotNil(t, result.Payment.RecordedBy)
	assert.Equal(t, "kasir-1", *result.Payment.RecordedBy)
	assert.True(t, result.Notified)

	require.Len(t, h.notifier.payments, 1)
	assert.True(t, h.notifier.payments[0].PaidInFull)
	assert.Equal(t, result.Payment.PaymentNumber, h.notifier.payments[0].PaymentNumber)

	var actions []string
	require.NoError(t, h.db.Table("billing_audit_entries").Pluck("action", &actions).Error)
	assert.Equal(t, []string{"payment"}, actions)

	_, err = h.svc.RecordPayment(ctx, pay(bill.ID, 1))
	require.Equal(t, billingerr.KindOverpayment, billingerr.KindOf(err))
}

func TestRecordPaymentValidation(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	bill := h.bill(t, "andi", 150000)

	_, err := h.svc.RecordPayment(ctx, pay(bill.ID, 0))
	require.ErrorIs(t, err, billingerr.ErrInvalidAmount)

	_, err = h.svc.RecordPayment(ctx, pay(bill.ID, -5000))
	require.ErrorIs(t, err, billingerr.ErrInvalidAmount)

	_, err = h.svc.RecordPayment(ctx, domain.RecordPaymentRequest{BillID: bill.ID.String(), Amount: 1000})
	require.ErrorIs(t, err, domain.ErrInvalidMethod)

	_, err = h.svc.RecordPayment(ctx, domain.RecordPaymentRequest{BillID: "abc", Amount: 1000, Method: "cash"})
	require.ErrorIs(t, err, billdomain.ErrInvalidBillID)

	_, err = h.svc.RecordPayment(ctx, pay(h.node.Generate(), 1000))
	require.ErrorIs(t, err, billdomain.ErrNotFound)
	assert.Equal(t, billingerr.KindNotFound, billingerr.KindOf(err))

	assert.Zero(t, testutil.Count(t, h.db, "payments"))
}

func TestConcurrentPaymentsWithinRemaining(t *testing.T) {
	h := newHarness(t, nil)
	bill := h.bill(t, "dewi", 150000)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, amount := range []int64{100000, 50000} {
		wg.Add(1)
		go func(i int, amount int64) {
			defer wg.Done()
			_, errs[i] = h.svc.RecordPayment(context.Background(), pay(bill.ID, amount))
		}(i, amount)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	stored := h.reload(t, bill.ID)
	assert.Equal(t, int64(150000), stored.PaidAmount)
	assert.Zero(t, stored.RemainingAmount)
	assert.Equal(t, balance.StatusPaid, stored.Status)
}

func TestConcurrentPaymentsExceedingRemaining(t *testing.T) {
	h := newHarness(t, nil)
	bill := h.bill(t, "eko", 150000)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.svc.RecordPayment(context.Background(), pay(bill.ID, 100000))
		}(i)
	}
	wg.Wait()

	var failed int
	for _, err := range errs {
		if err == nil {
			continue
		}
		failed++
		var over *billingerr.OverpaymentError
		require.ErrorAs(t, err, &over)
		assert.Equal(t, int64(50000), over.Remaining)
	}
	assert.Equal(t, 1, failed)

	stored := h.reload(t, bill.ID)
	assert.Equal(t, int64(100000), stored.PaidAmount)
	assert.Equal(t, int64(1), testutil.Count(t, h.db, "payments"))
}

func TestRecordPaymentPlacesHoldOnMismatch(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	bill := h.bill(t, "fajar", 150000)

	// A payment row that never reached paid_amount.
	err := h.db.Exec(
		`INSERT INTO payments (id, payment_number, bill_id, customer_id, amount, method, payment_date, created_at)
		 VALUES (?, 'PAY-STRAY', ?, ?, 20000, 'cash', ?, ?)`,
		h.node.Generate(), bill.ID, bill.CustomerID, h.clock.Now(), h.clock.Now(),
	).Error
	require.NoError(t, err)

	_, err = h.svc.RecordPayment(ctx, pay(bill.ID, 10000))
	var integrity *billingerr.IntegrityError
	require.ErrorAs(t, err, &integrity)
	assert.Equal(t, bill.ID.String(), integrity.BillID)

	stored := h.reload(t, bill.ID)
	assert.True(t, stored.ReconciliationHold)
	assert.Zero(t, stored.PaidAmount)
	assert.Equal(t, int64(1), testutil.Count(t, h.db, "payments"))

	_, err = h.svc.RecordPayment(ctx, pay(bill.ID, 10000))
	assert.Equal(t, billingerr.KindIntegrity, billingerr.KindOf(err))
}

func TestRecordPaymentRejectsHeldBill(t *testing.T) {
	h := newHarness(t, nil)
	bill := h.bill(t, "gita", 150000)
	require.NoError(t, h.bills.SetHold(context.Background(), h.db, bill.ID, true, h.clock.Now()))

	_, err := h.svc.RecordPayment(context.Background(), pay(bill.ID, 10000))
	assert.Equal(t, billingerr.KindIntegrity, billingerr.KindOf(err))
	assert.Zero(t, testutil.Count(t, h.db, "payments"))
}

func TestRecordPaymentRetriesVersionConflict(t *testing.T) {
	bumping := &bumpingRepo{bumps: 1}
	h := newHarness(t, func(r billdomain.Repository) billdomain.Repository {
		bumping.Repository = r
		return bumping
	})
	bill := h.bill(t, "hadi", 150000)

	result, err := h.svc.RecordPayment(context.Background(), pay(bill.ID, 50000))
	require.NoError(t, err)
	assert.Equal(t, 2, bumping.calls)
	assert.Equal(t, int64(100000), result.Bill.RemainingAmount)
	assert.Equal(t, int64(1), testutil.Count(t, h.db, "payments"))
}

func TestRecordPaymentConflictExhausted(t *testing.T) {
	bumping := &bumpingRepo{bumps: 10}
	h := newHarness(t, func(r billdomain.Repository) billdomain.Repository {
		bumping.Repository = r
		return bumping
	})
	bill := h.bill(t, "indra", 150000)

	_, err := h.svc.RecordPayment(context.Background(), pay(bill.ID, 50000))
	require.ErrorIs(t, err, billingerr.ErrConflict)
	assert.Equal(t, 3, bumping.calls)
	assert.Zero(t, testutil.Count(t, h.db, "payments"))
}

func TestRecordPaymentNotificationFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.notifier.err = errors.New("whatsapp down")
	bill := h.bill(t, "joko", 150000)

	result, err := h.svc.RecordPayment(context.Background(), pay(bill.ID, 50000))
	require.NoError(t, err)
	assert.False(t, result.Notified)
	assert.Equal(t, int64(50000), h.reload(t, bill.ID).PaidAmount)
}

func TestListPayments(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	first := h.bill(t, "kiki", 300000)
	second := h.bill(t, "lina", 300000)

	for _, amount := range []int64{10000, 20000, 30000} {
		_, err := h.svc.RecordPayment(ctx, pay(first.ID, amount))
		require.NoError(t, err)
	}
	_, err := h.svc.RecordPayment(ctx, domain.RecordPaymentRequest{
		BillID: second.ID.String(), Amount: 5000, Method: "ewallet",
	})
	require.NoError(t, err)

	byBill, err := h.svc.ListByBill(ctx, first.ID.String())
	require.NoError(t, err)
	require.Len(t, byBill, 3)
	assert.Equal(t, int64(10000), byBill[0].Amount)

	empty, err := h.svc.ListByBill(ctx, h.bill(t, "mira", 100000).ID.String())
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = h.svc.ListByBill(ctx, h.node.Generate().String())
	require.ErrorIs(t, err, billdomain.ErrNotFound)

	page, err := h.svc.List(ctx, domain.ListPaymentRequest{BillID: first.ID.String(), PageSize: 2})
	require.NoError(t, err)
	require.Len(t, page.Payments, 2)
	require.True(t, page.HasMore)

	rest, err := h.svc.List(ctx, domain.ListPaymentRequest{BillID: first.ID.String(), PageSize: 2, PageToken: page.NextPageToken})
	require.NoError(t, err)
	require.Len(t, rest.Payments, 1)
	assert.False(t, rest.HasMore)

	ewallet, err := h.svc.List(ctx, domain.ListPaymentRequest{Method: "EWALLET"})
	require.NoError(t, err)
	require.Len(t, ewallet.Payments, 1)
	assert.Equal(t, second.ID, ewallet.Payments[0].BillID)

	_, err = h.svc.List(ctx, domain.ListPaymentRequest{CustomerID: "x"})
	require.ErrorIs(t, err, domain.ErrInvalidFilterID)
}

func TestRecordPaymentRetriesNumberCollision(t *testing.T) {
	payments := &duplicatingRepo{Repository: paymentrepo.Provide()}
	h := buildHarness(t, nil, payments)
	ctx := context.Background()
	bill := h.bill(t, "andi", 150000)

	first, err := h.svc.RecordPayment(ctx, pay(bill.ID, 50000))
	require.NoError(t, err)

	payments.collide(first.Payment.PaymentNumber, 2)
	result, err := h.svc.RecordPayment(ctx, pay(bill.ID, 50000))
	require.NoError(t, err)
	assert.Equal(t, 3, payments.calls)
	assert.NotEqual(t, first.Payment.PaymentNumber, result.Payment.PaymentNumber)
	assert.Equal(t, int64(100000), result.Bill.PaidAmount)
	assert.Equal(t, int64(50000), result.Bill.RemainingAmount)
	assert.Equal(t, balance.StatusPartial, result.Bill.Status)
	assert.Equal(t, int64(2), testutil.Count(t, h.db, "payments"))
}

func TestRecordPaymentNumberExhaustedLeavesNoTrace(t *testing.T) {
	payments := &duplicatingRepo{Repository: paymentrepo.Provide()}
	h := buildHarness(t, nil, payments)
	ctx := context.Background()
	bill := h.bill(t, "budi", 150000)

	first, err := h.svc.RecordPayment(ctx, pay(bill.ID, 100000))
	require.NoError(t, err)

	payments.collide(first.Payment.PaymentNumber, 100)
	_, err = h.svc.RecordPayment(ctx, pay(bill.ID, 20000))
	var exhausted *billingerr.SequenceExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, billingerr.KindSequenceExhausted, billingerr.KindOf(err))
	assert.Equal(t, config.DefaultBillingConfig().Sequence.MaxAttempts, payments.calls)

	stored := h.reload(t, bill.ID)
	assert.Equal(t, int64(100000), stored.PaidAmount)
	assert.Equal(t, int64(50000), stored.RemainingAmount)
	assert.Equal(t, int64(2), stored.Version)
	assert.False(t, stored.ReconciliationHold)
	assert.Equal(t, int64(1), testutil.Count(t, h.db, "payments"))
}

func TestListPaymentsByPaymentDate(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	bill := h.bill(t, "nina", 300000)

	for _, day := range []int{1, 15, 19} {
		paidAt := time.Date(2026, time.October, day, 14, 30, 0, 0, time.UTC)
		_, err := h.svc.RecordPayment(ctx, domain.RecordPaymentRequest{
			BillID: bill.ID.String(), Amount: 10000, Method: "cash", PaymentDate: &paidAt,
		})
		require.NoError(t, err)
	}

	mid, err := h.svc.List(ctx, domain.ListPaymentRequest{
		DateFrom: time.Date(2026, time.October, 10, 0, 0, 0, 0, time.UTC),
		DateTo:   time.Date(2026, time.October, 15, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, mid.Payments, 1)
	assert.Equal(t, 15, mid.Payments[0].PaymentDate.UTC().Day())

	since, err := h.svc.List(ctx, domain.ListPaymentRequest{
		DateFrom: time.Date(2026, time.October, 15, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Len(t, since.Payments, 2)

	_, err = h.svc.List(ctx, domain.ListPaymentRequest{
		DateFrom: time.Date(2026, time.October, 20, 0, 0, 0, 0, time.UTC),
		DateTo:   time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC),
	})
	require.ErrorIs(t, err, domain.ErrInvalidDateRange)
}
