package balance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompute(t *testing.T) {
	cases := []struct {
		name                     string
		amount, debt, comp, paid int64
		wantTotal, wantRemaining int64
		wantStatus               Status
	}{
		{"fee plus debt", 150000, 300000, 0, 0, 450000, 450000, StatusUnpaid},
		{"compensation applied", 150000, 300000, 50000, 0, 400000, 400000, StatusUnpaid},
		{"fully paid", 150000, 300000, 50000, 400000, 400000, 0, StatusPaid},
		{"partial", 150000, 0, 0, 100000, 150000, 50000, StatusPartial},
		{"compensation exceeds total", 100000, 0, 250000, 0, 0, 0, StatusPaid},
		{"paid above lowered total", 150000, 0, 100000, 100000, 50000, 0, StatusPaid},
		{"zero fee with debt", 0, 75000, 0, 0, 75000, 75000, StatusUnpaid},
		{"nothing owed", 0, 0, 0, 0, 0, 0, StatusPaid},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Compute(tc.amount, tc.debt, tc.comp, tc.paid)
			assert.Equal(t, tc.wantTotal, got.Total)
			assert.Equal(t, tc.wantRemaining, got.Remaining)
			assert.Equal(t, tc.wantStatus, got.Status)
		})
	}
}

func TestVerify(t *testing.T) {
	ok := Snapshot{Amount: 150000, PreviousDebt: 300000, Total: 450000, Paid: 100000, Remaining: 350000, Status: StatusPartial}
	assert.Empty(t, Verify(ok))

	badTotal := ok
	badTotal.Total = 400000
	assert.NotEmpty(t, Verify(badTotal))

	badRemaining := ok
	badRemaining.Remaining = 1
	assert.NotEmpty(t, Verify(badRemaining))

	badStatus := ok
	badStatus.Status = StatusUnpaid
	assert.NotEmpty(t, Verify(badStatus))

	negative := ok
	negative.Compensation = -1
	assert.Equal(t, "negative monetary field", Verify(negative))
}

func TestFormatRupiah(t *testing.T) {
	cases := map[int64]string{
		0:       "Rp 0",
		500:     "Rp 500",
		1000:    "Rp 1.000",
		150000:  "Rp 150.000",
		1250000: "Rp 1.250.000",
		-50000:  "-Rp 50.000",
	}
	for amount, want := range cases {
		assert.Equal(t, want, FormatRupiah(amount), "amount %d", amount)
	}
}
