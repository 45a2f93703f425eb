package service

import (
	"context"
	"io"
	"strings"

	"github.com/smallbiznis/netbill/internal/balance"
	billdomain "github.com/smallbiznis/netbill/internal/bill/domain"
	customerdomain "github.com/smallbiznis/netbill/internal/customer/domain"
	"github.com/smallbiznis/netbill/internal/notification"
	"github.com/smallbiznis/netbill/internal/providers/pdf"
)

var statusLabels = map[balance.Status]string{
	balance.StatusUnpaid:  "Belum Lunas",
	balance.StatusPartial: "Dibayar Sebagian",
	balance.StatusPaid:    "Lunas",
}

// Document renders the printable bill with its payment history.
func (s *Service) Document(ctx context.Context, id string) (billdomain.Document, error) {
	bill, err := s.GetByID(ctx, id)
	if err != nil {
		return billdomain.Document{}, err
	}

	customer, err := s.customers.GetByID(ctx, customerdomain.GetCustomerRequest{ID: bill.CustomerID.String()})
	if err != nil {
		return billdomain.Document{}, err
	}

	payments, err := s.paymentRepo.ListByBill(ctx, s.db, bill.ID)
	if err != nil {
		return billdomain.Document{}, err
	}

	data := pdf.BillData{
		CompanyName:     s.company,
		BillNumber:      bill.BillNumber,
		IssueDate:       bill.CreatedAt.Format("02/01/2006"),
		DueDate:         notification.DateLabel(bill.DueDate),
		BillingPeriod:   notification.PeriodLabel(bill.BillingMonth, bill.BillingYear),
		Status:          statusLabels[bill.Status],
		CustomerName:    customer.Name,
		CustomerPhone:   customer.Phone,
		CustomerAddress: customer.Address,
		PackageName:     customer.PackageName,
		Amount:          balance.FormatRupiah(bill.Amount),
		PreviousDebt:    balance.FormatRupiah(bill.PreviousDebt),
		Compensation:    balance.FormatRupiah(bill.Compensation),
		Total:           balance.FormatRupiah(bill.TotalAmount),
		Paid:            balance.FormatRupiah(bill.PaidAmount),
		Remaining:       balance.FormatRupiah(bill.RemainingAmount),
	}
	for _, payment := range payments {
		data.Payments = append(data.Payments, pdf.PaymentLine{
			PaymentNumber: payment.PaymentNumber,
			Date:          payment.PaymentDate.Format("02/01/2006"),
			Method:        payment.Method,
			Amount:        balance.FormatRupiah(payment.Amount),
		})
	}

	reader, err := s.pdf.GenerateBill(ctx, data)
	if err != nil {
		return billdomain.Document{}, err
	}
	content, err := io.ReadAll(reader)
	if err != nil {
		return billdomain.Document{}, err
	}

	return billdomain.Document{
		Filename: strings.ToLower(bill.BillNumber) + ".pdf",
		Content:  content,
	}, nil
}
