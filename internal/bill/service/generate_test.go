package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/netbill/internal/balance"
	billdomain "github.com/smallbiznis/netbill/internal/bill/domain"
	"github.com/smallbiznis/netbill/internal/billingerr"
	"github.com/smallbiznis/netbill/internal/config"
	"github.com/smallbiznis/netbill/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSnapshotsFeeAndDebt(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	budi := h.customer(t, "Budi", 150000, 300000)
	h.customer(t, "Sari", 100000, 0)
	testutil.InsertCustomer(t, h.db, h.node, testutil.CustomerSeed{
		Name: "Joko", MonthlyFee: 150000, Status: "suspended",
	})
	h.customer(t, "Putus", 0, 125000)
	h.customer(t, "Gratis", 0, 0)

	result, err := h.svc.Generate(ctx, billdomain.GenerateRequest{Month: 10, Year: 2026})
	require.NoError(t, err)

	require.Equal(t, 3, result.CreatedCount)
	require.Len(t, result.Created, 3)
	assert.Equal(t, 3, result.CustomerCount)
	assert.Equal(t, 1, result.Skipped)
	assert.Empty(t, result.Failures)
	assert.Equal(t, int64(450000+100000+125000), result.TotalAmount)
	assert.Equal(t, 3, result.Notified)

	first := result.Created[0]
	assert.Equal(t, budi, first.CustomerID)
	assert.Equal(t, "BILL-2026-10-0001", first.BillNumber)
	assert.Equal(t, int64(150000), first.Amount)
	assert.Equal(t, int64(300000), first.PreviousDebt)
	assert.Equal(t, int64(0), first.Compensation)
	assert.Equal(t, int64(450000), first.TotalAmount)
	assert.Equal(t, int64(450000), first.RemainingAmount)
	assert.Equal(t, balance.StatusUnpaid, first.Status)
	assert.Equal(t, "2026-10-31", first.DueDate.Format("2006-01-02"))

	assert.Equal(t, "BILL-2026-10-0002", result.Created[1].BillNumber)
	putus := result.Created[2]
	assert.Equal(t, "BILL-2026-10-0003", putus.BillNumber)
	assert.Equal(t, int64(0), putus.Amount)
	assert.Equal(t, int64(125000), putus.TotalAmount)

	stored, err := h.svc.GetByID(ctx, first.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "Budi", stored.CustomerName)
	assert.Equal(t, int64(1), stored.Version)
	assert.Equal(t, "", balance.Verify(stored.Snapshot()))

	assert.Equal(t, int64(3), testutil.Count(t, h.db, "bills"))
	assert.Equal(t, int64(1), testutil.Count(t, h.db, "billing_audit_entries"))
	require.Len(t, h.notifier.bills, 3)
	assert.Equal(t, "BILL-2026-10-0001", h.notifier.bills[0].BillNumber)
}

func TestGenerateIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.customer(t, "Budi", 150000, 300000)
	h.customer(t, "Sari", 100000, 0)
	h.customer(t, "Gratis", 0, 0)

	first, err := h.svc.Generate(ctx, billdomain.GenerateRequest{Month: 10, Year: 2026})
	require.NoError(t, err)
	require.Equal(t, 2, first.CreatedCount)
	assert.Equal(t, 1, first.Skipped)
	assert.Equal(t, int64(1), testutil.Count(t, h.db, "billing_audit_entries"))

	second, err := h.svc.Generate(ctx, billdomain.GenerateRequest{Month: 10, Year: 2026})
	require.NoError(t, err)
	assert.Equal(t, 0, second.CreatedCount)
	assert.Equal(t, 0, second.CustomerCount)
	assert.Equal(t, 3, second.Skipped)
	assert.NotEmpty(t, second.Message)
	assert.Equal(t, int64(2), testutil.Count(t, h.db, "bills"))
	assert.Equal(t, int64(1), testutil.Count(t, h.db, "billing_audit_entries"), "an empty run leaves no audit entry")

	h.customer(t, "Baru", 120000, 0)
	third, err := h.svc.Generate(ctx, billdomain.GenerateRequest{Month: 10, Year: 2026})
	require.NoError(t, err)
	require.Equal(t, 1, third.CreatedCount)
	assert.Equal(t, "BILL-2026-10-0003", third.Created[0].BillNumber)
	assert.Equal(t, int64(3), testutil.Count(t, h.db, "bills"))
	assert.Equal(t, int64(2), testutil.Count(t, h.db, "billing_audit_entries"))
}

func TestGenerateNumbersRestartPerPeriod(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.customer(t, "Budi", 150000, 0)

	_, err := h.svc.Generate(ctx, billdomain.GenerateRequest{Month: 10, Year: 2026})
	require.NoError(t, err)
	result, err := h.svc.Generate(ctx, billdomain.GenerateRequest{Month: 11, Year: 2026})
	require.NoError(t, err)
	require.Equal(t, 1, result.CreatedCount)
	assert.Equal(t, "BILL-2026-11-0001", result.Created[0].BillNumber)
	assert.Equal(t, "2026-11-30", result.Created[0].DueDate.Format("2006-01-02"))
}

func TestGenerateWithoutCustomers(t *testing.T) {
	h := newHarness(t)

	result, err := h.svc.Generate(context.Background(), billdomain.GenerateRequest{Month: 10, Year: 2026})
	require.NoError(t, err)
	assert.Empty(t, result.Created)
	assert.Equal(t, 0, result.CreatedCount)
	assert.NotEmpty(t, result.Message)
}

func TestGenerateRejectsInvalidPeriod(t *testing.T) {
	h := newHarness(t)
	for _, req := range []billdomain.GenerateRequest{
		{Month: 0, Year: 2026},
		{Month: 13, Year: 2026},
		{Month: 10, Year: 1999},
	} {
		_, err := h.svc.Generate(context.Background(), req)
		require.ErrorIs(t, err, billdomain.ErrInvalidPeriod)
		assert.Equal(t, billingerr.KindValidation, billingerr.KindOf(err))
	}
}

func TestGenerateFixedDueDay(t *testing.T) {
	h := newHarness(t, withBilling(func(cfg *config.BillingConfig) {
		cfg.DueDate = config.DueDatePolicy{Policy: config.DueDateFixedDayNextMonth, Day: 10}
	}))
	h.customer(t, "Budi", 150000, 0)

	result, err := h.svc.Generate(context.Background(), billdomain.GenerateRequest{Month: 12, Year: 2026})
	require.NoError(t, err)
	require.Len(t, result.Created, 1)
	assert.Equal(t, "2027-01-10", result.Created[0].DueDate.Format("2006-01-02"))
}

func TestGenerateIsolatesCustomerFailures(t *testing.T) {
	failFor := map[snowflake.ID]error{}
	h := newHarness(t, withRepo(func(repo billdomain.Repository) billdomain.Repository {
		return &failingInsertRepo{Repository: repo, failFor: failFor}
	}))
	h.customer(t, "Budi", 150000, 0)
	broken := h.customer(t, "Rusak", 100000, 0)
	h.customer(t, "Sari", 120000, 0)
	failFor[broken] = errBoom

	result, err := h.svc.Generate(context.Background(), billdomain.GenerateRequest{Month: 10, Year: 2026})
	require.NoError(t, err)

	assert.Equal(t, 2, result.CreatedCount)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, broken, result.Failures[0].CustomerID)
	assert.Equal(t, "Rusak", result.Failures[0].CustomerName)
	assert.Equal(t, billingerr.KindInternal, result.Failures[0].Kind)
	assert.Equal(t, int64(2), testutil.Count(t, h.db, "bills"))

	// A later run picks up the customer once the store recovers.
	delete(failFor, broken)
	retry, err := h.svc.Generate(context.Background(), billdomain.GenerateRequest{Month: 10, Year: 2026})
	require.NoError(t, err)
	require.Equal(t, 1, retry.CreatedCount)
	assert.Equal(t, broken, retry.Created[0].CustomerID)
}

func TestGenerateReportsSequenceExhaustion(t *testing.T) {
	failFor := map[snowflake.ID]error{}
	h := newHarness(t, withRepo(func(repo billdomain.Repository) billdomain.Repository {
		return &failingInsertRepo{Repository: repo, failFor: failFor}
	}))
	id := h.customer(t, "Budi", 150000, 0)
	failFor[id] = errors.New("UNIQUE constraint failed: bills.bill_number")

	result, err := h.svc.Generate(context.Background(), billdomain.GenerateRequest{Month: 10, Year: 2026})
	require.NoError(t, err)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, billingerr.KindSequenceExhausted, result.Failures[0].Kind)
	assert.Equal(t, 0, result.CreatedCount)
}

func TestGenerateToleratesNotificationFailure(t *testing.T) {
	h := newHarness(t)
	h.notifier.err = errBoom
	h.customer(t, "Budi", 150000, 0)

	result, err := h.svc.Generate(context.Background(), billdomain.GenerateRequest{Month: 10, Year: 2026})
	require.NoError(t, err)
	assert.Equal(t, 1, result.CreatedCount)
	assert.Equal(t, 0, result.Notified)
}

func TestGenerateStopsOnCancelledContext(t *testing.T) {
	h := newHarness(t)
	h.customer(t, "Budi", 150000, 0)

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	_, err := h.svc.Generate(ctx, billdomain.GenerateRequest{Month: 10, Year: 2026})
	require.Error(t, err)
}
