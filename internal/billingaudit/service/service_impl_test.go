package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/netbill/internal/auditcontext"
	"github.com/smallbiznis/netbill/internal/billingaudit/domain"
	"github.com/smallbiznis/netbill/internal/billingaudit/repository"
	"github.com/smallbiznis/netbill/internal/clock"
	"github.com/smallbiznis/netbill/internal/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAppendRecordsActorAndPeriod(t *testing.T) {
	db := testutil.NewDB(t)
	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: testutil.NewNode(t, 3),
		Clock: clock.NewFakeClock(time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC)),
		Repo:  repository.Provide(),
	})

	ctx := auditcontext.WithActor(context.Background(), auditcontext.ActorTypeUser, "operator-1", "operator")
	ctx = auditcontext.WithRequestID(ctx, "req-123")
	billID := snowflake.ID(42)

	err := svc.Append(ctx, domain.AppendRequest{
		Action:       domain.ActionPayment,
		Description:  "Payment PAY-1 of 100000",
		BillID:       &billID,
		BillingMonth: 10,
		BillingYear:  2026,
		Metadata:     map[string]any{"amount": 100000},
	})
	require.NoError(t, err)

	var row struct {
		Action       string
		ActorType    string
		ActorID      string
		BillID       int64
		BillingMonth int
		BillingYear  int
		Metadata     string
	}
	require.NoError(t, db.Raw(`SELECT action, actor_type, actor_id, bill_id, billing_month, billing_year, metadata FROM billing_audit_entries`).Scan(&row).Error)
	require.Equal(t, "payment", row.Action)
	require.Equal(t, "user", row.ActorType)
	require.Equal(t, "operator-1", row.ActorID)
	require.Equal(t, int64(42), row.BillID)
	require.Equal(t, 10, row.BillingMonth)
	require.Equal(t, 2026, row.BillingYear)
	require.Contains(t, row.Metadata, "req-123")
}

func TestAppendDefaultsToSystemActor(t *testing.T) {
	db := testutil.NewDB(t)
	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: testutil.NewNode(t, 3),
		Clock: clock.SystemClock{},
		Repo:  repository.Provide(),
	})

	require.NoError(t, svc.Append(context.Background(), domain.AppendRequest{
		Action:      domain.ActionGeneration,
		Description: "Generated 0 bills",
	}))

	var actorType string
	require.NoError(t, db.Raw(`SELECT actor_type FROM billing_audit_entries`).Scan(&actorType).Error)
	require.Equal(t, "system", actorType)
}
