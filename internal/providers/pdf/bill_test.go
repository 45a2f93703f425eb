package pdf

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateBill(t *testing.T) {
	r, err := New().GenerateBill(context.Background(), BillData{
		CompanyName:   "NetBill",
		BillNumber:    "BILL-2026-10-0001",
		BillingPeriod: "Oktober 2026",
		CustomerName:  "Budi",
		PackageName:   "10 Mbps",
		Amount:        "Rp 150.000",
		PreviousDebt:  "Rp 300.000",
		Compensation:  "Rp 50.000",
		Total:         "Rp 400.000",
		Paid:          "Rp 100.000",
		Remaining:     "Rp 300.000",
		Status:        "partial",
		Payments: []PaymentLine{
			{PaymentNumber: "PAY-20261005-01J", Date: "05/10/2026", Method: "cash", Amount: "Rp 100.000"},
		},
	})
	require.NoError(t, err)

	body, err := io.ReadAll(r)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(body, []byte("%PDF")))
}

func TestGenerateBillRequiresNumber(t *testing.T) {
	_, err := New().GenerateBill(context.Background(), BillData{})
	require.ErrorIs(t, err, ErrMissingBillNumber)
}
