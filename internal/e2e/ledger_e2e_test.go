package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/netbill/internal/authorization"
	"github.com/smallbiznis/netbill/internal/bill"
	"github.com/smallbiznis/netbill/internal/billingaudit"
	"github.com/smallbiznis/netbill/internal/clock"
	"github.com/smallbiznis/netbill/internal/config"
	"github.com/smallbiznis/netbill/internal/customer"
	"github.com/smallbiznis/netbill/internal/notification"
	"github.com/smallbiznis/netbill/internal/observability"
	"github.com/smallbiznis/netbill/internal/payment"
	"github.com/smallbiznis/netbill/internal/providers"
	"github.com/smallbiznis/netbill/internal/scheduler"
	"github.com/smallbiznis/netbill/internal/server"
	"github.com/smallbiznis/netbill/internal/testutil"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testEnv struct {
	db        *gorm.DB
	clock     *clock.FakeClock
	scheduler *scheduler.Scheduler
	baseURL   string
}

type envelope[T any] struct {
	Data T `json:"data"`
}

type errorBody struct {
	Error struct {
		Type    string         `json:"type"`
		Code    string         `json:"code"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

type billView struct {
	ID              snowflake.ID `json:"id"`
	BillNumber      string       `json:"bill_number"`
	CustomerID      snowflake.ID `json:"customer_id"`
	PreviousDebt    int64        `json:"previous_debt"`
	TotalAmount     int64        `json:"total_amount"`
	PaidAmount      int64        `json:"paid_amount"`
	RemainingAmount int64        `json:"remaining_amount"`
	Status          string       `json:"status"`
}

func startEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dbConn := testutil.NewDB(t)
	fc := clock.NewFakeClock(time.Date(2026, 10, 1, 2, 0, 0, 0, time.UTC))

	var (
		srv   *server.Server
		sched *scheduler.Scheduler
	)
	app := fxtest.New(t,
		fx.Supply(dbConn),
		fx.Supply(config.Config{CompanyName: "NetBill"}),
		fx.Supply(config.NewStaticBillingConfig(config.DefaultBillingConfig())),
		fx.Provide(zap.NewNop),
		fx.Provide(func() clock.Clock { return fc }),
		fx.Provide(func() *snowflake.Node { return testutil.NewNode(t, 1) }),
		fx.Provide(func() *gin.Engine { return server.NewEngine(observability.Config{}, nil) }),

		customer.Module,
		billingaudit.Module,
		bill.Module,
		payment.Module,
		providers.Module,
		notification.Module,
		authorization.Module,

		fx.Provide(server.NewServer),
		fx.Provide(scheduler.ProvideConfig, scheduler.NewLocker, scheduler.New),
		fx.Populate(&srv, &sched),
	)
	app.RequireStart()
	t.Cleanup(app.RequireStop)

	httpSrv := httptest.NewServer(srv.Engine())
	t.Cleanup(httpSrv.Close)

	return &testEnv{db: dbConn, clock: fc, scheduler: sched, baseURL: httpSrv.URL}
}

func (e *testEnv) do(t *testing.T, method, path, role string, payload any) (int, []byte) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.baseURL+path, body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(server.HeaderActorID, role+"-1")
	req.Header.Set(server.HeaderActorRole, role)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, out
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode %s: %v", string(raw), err)
	}
	return out
}

func (e *testEnv) createCustomer(t *testing.T, name string, fee, debt int64) snowflake.ID {
	t.Helper()
	status, body := e.do(t, http.MethodPost, "/api/customers", "operator", map[string]any{
		"name":         name,
		"phone":        "0812000000",
		"package_name": "Home 20 Mbps",
		"monthly_fee":  fee,
		"carried_debt": debt,
	})
	if status != http.StatusCreated {
		t.Fatalf("create customer: expected 201, got %d: %s", status, string(body))
	}
	return decode[envelope[struct {
		ID snowflake.ID `json:"id"`
	}]](t, body).Data.ID
}

func (e *testEnv) billFor(t *testing.T, customerID snowflake.ID) billView {
	t.Helper()
	status, body := e.do(t, http.MethodGet, "/api/bills?month=10&year=2026", "viewer", nil)
	if status != http.StatusOK {
		t.Fatalf("list bills: expected 200, got %d: %s", status, string(body))
	}
	for _, b := range decode[envelope[[]billView]](t, body).Data {
		if b.CustomerID == customerID {
			return b
		}
	}
	t.Fatalf("no bill for customer %s", customerID)
	return billView{}
}

func TestE2E_MonthlyBillingCycle(t *testing.T) {
	env := startEnv(t)

	andi := env.createCustomer(t, "Andi", 150000, 0)
	budi := env.createCustomer(t, "Budi", 300000, 100000)

	// The scheduler generates on the first of the month.
	if err := env.scheduler.RunOnce(context.Background()); err != nil {
		t.Fatalf("scheduler run: %v", err)
	}
	if got := testutil.Count(t, env.db, "bills"); got != 2 {
		t.Fatalf("expected 2 bills after scheduled generation, got %d", got)
	}

	// A manual run for the same period creates nothing new.
	status, body := env.do(t, http.MethodPost, "/api/bills/generate", "operator", map[string]any{"month": 10, "year": 2026})
	if status != http.StatusOK {
		t.Fatalf("generate: expected 200, got %d: %s", status, string(body))
	}
	if created := decode[envelope[struct {
		CreatedCount int `json:"created_count"`
	}]](t, body).Data.CreatedCount; created != 0 {
		t.Fatalf("expected no new bills on rerun, got %d", created)
	}

	andiBill := env.billFor(t, andi)
	if andiBill.TotalAmount != 150000 || andiBill.Status != "unpaid" {
		t.Fatalf("unexpected bill for Andi: %+v", andiBill)
	}
	budiBill := env.billFor(t, budi)
	if budiBill.PreviousDebt != 100000 || budiBill.TotalAmount != 400000 {
		t.Fatalf("unexpected bill for Budi: %+v", budiBill)
	}

	paymentsPath := fmt.Sprintf("/api/bills/%s/payments", andiBill.ID)
	status, body = env.do(t, http.MethodPost, paymentsPath, "collector", map[string]any{"amount": 100000, "method": "cash"})
	if status != http.StatusCreated {
		t.Fatalf("record payment: expected 201, got %d: %s", status, string(body))
	}
	paid := decode[envelope[struct {
		Bill billView `json:"bill"`
	}]](t, body).Data.Bill
	if paid.Status != "partial" || paid.RemainingAmount != 50000 {
		t.Fatalf("unexpected bill after partial payment: %+v", paid)
	}

	status, body = env.do(t, http.MethodPost, paymentsPath, "collector", map[string]any{"amount": 60000, "method": "cash"})
	if status != http.StatusConflict {
		t.Fatalf("overpayment: expected 409, got %d: %s", status, string(body))
	}
	overpay := decode[errorBody](t, body)
	if overpay.Error.Code != "overpayment" || overpay.Error.Details["remaining_amount"] != float64(50000) {
		t.Fatalf("unexpected overpayment error: %s", string(body))
	}

	// Collectors cannot adjust bills.
	compensationPath := fmt.Sprintf("/api/bills/%s/compensation", andiBill.ID)
	status, _ = env.do(t, http.MethodPatch, compensationPath, "collector", map[string]any{"amount": 50000})
	if status != http.StatusForbidden {
		t.Fatalf("collector compensation: expected 403, got %d", status)
	}
	status, body = env.do(t, http.MethodPatch, compensationPath, "operator", map[string]any{"amount": 50000})
	if status != http.StatusOK {
		t.Fatalf("compensation: expected 200, got %d: %s", status, string(body))
	}
	if adjusted := decode[envelope[billView]](t, body).Data; adjusted.Status != "paid" || adjusted.RemainingAmount != 0 {
		t.Fatalf("unexpected bill after compensation: %+v", adjusted)
	}

	status, body = env.do(t, http.MethodGet, "/api/bills/stats?month=10&year=2026", "viewer", nil)
	if status != http.StatusOK {
		t.Fatalf("stats: expected 200, got %d: %s", status, string(body))
	}
	stats := decode[envelope[struct {
		BillCount       int64 `json:"bill_count"`
		PaidCount       int64 `json:"paid_count"`
		UnpaidCount     int64 `json:"unpaid_count"`
		RemainingAmount int64 `json:"remaining_amount"`
	}]](t, body).Data
	if stats.BillCount != 2 || stats.PaidCount != 1 || stats.UnpaidCount != 1 || stats.RemainingAmount != 400000 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	env.clock.Set(time.Date(2026, 11, 5, 2, 0, 0, 0, time.UTC))
	status, body = env.do(t, http.MethodGet, "/api/bills/overdue", "viewer", nil)
	if status != http.StatusOK {
		t.Fatalf("overdue: expected 200, got %d: %s", status, string(body))
	}
	overdue := decode[envelope[[]billView]](t, body).Data
	if len(overdue) != 1 || overdue[0].ID != budiBill.ID {
		t.Fatalf("expected only Budi's bill overdue, got %+v", overdue)
	}

	status, _ = env.do(t, http.MethodPost, "/api/admin/reset", "operator", map[string]any{
		"scope": "period", "month": 10, "year": 2026, "confirmation": "RESET-2026-10",
	})
	if status != http.StatusForbidden {
		t.Fatalf("operator reset: expected 403, got %d", status)
	}
	status, body = env.do(t, http.MethodPost, "/api/admin/reset", "admin", map[string]any{
		"scope": "period", "month": 10, "year": 2026, "confirmation": "RESET-2026-10",
	})
	if status != http.StatusOK {
		t.Fatalf("reset: expected 200, got %d: %s", status, string(body))
	}
	reset := decode[envelope[struct {
		DeletedBills    int64 `json:"deleted_bills"`
		DeletedPayments int64 `json:"deleted_payments"`
	}]](t, body).Data
	if reset.DeletedBills != 2 || reset.DeletedPayments != 1 {
		t.Fatalf("unexpected reset result: %+v", reset)
	}
	if got := testutil.Count(t, env.db, "customers"); got != 2 {
		t.Fatalf("reset must keep customers, got %d", got)
	}
}

func TestE2E_RequiresActor(t *testing.T) {
	env := startEnv(t)

	resp, err := http.Get(env.baseURL + "/api/bills")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without actor headers, got %d", resp.StatusCode)
	}

	resp, err = http.Get(env.baseURL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from health, got %d", resp.StatusCode)
	}
}
