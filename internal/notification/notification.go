// Package notification tells customers about new bills and received payments.
// Delivery is best effort: callers log failures and carry on.
package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/netbill/internal/balance"
	"github.com/smallbiznis/netbill/internal/config"
	"github.com/smallbiznis/netbill/internal/providers/whatsapp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type BillIssued struct {
	CustomerName  string
	Phone         string
	BillNumber    string
	BillingMonth  int
	BillingYear   int
	Amount        int64
	PreviousDebt  int64
	Compensation  int64
	Total         int64
	DueDate       time.Time
	AlreadyPaidUp bool
}

type PaymentReceived struct {
	CustomerName  string
	Phone         string
	BillNumber    string
	PaymentNumber string
	Amount        int64
	Remaining     int64
	PaidInFull    bool
	PaymentDate   time.Time
}

// PaymentReminder nudges a customer about an unpaid bill. DaysOverdue is
// zero while the bill is not yet past its due date.
type PaymentReminder struct {
	CustomerName string
	Phone        string
	BillNumber   string
	BillingMonth int
	BillingYear  int
	Remaining    int64
	DueDate      time.Time
	DaysOverdue  int
}

type Notifier interface {
	NotifyBillIssued(ctx context.Context, msg BillIssued) error
	NotifyPaymentReceived(ctx context.Context, msg PaymentReceived) error
	NotifyPaymentReminder(ctx context.Context, msg PaymentReminder) error
}

type Params struct {
	fx.In

	Cfg      config.Config
	Log      *zap.Logger
	Provider whatsapp.Provider
}

type Service struct {
	company  string
	log      *zap.Logger
	provider whatsapp.Provider
}

func New(p Params) Notifier {
	company := strings.TrimSpace(p.Cfg.CompanyName)
	if company == "" {
		company = "NetBill"
	}
	return &Service{
		company:  company,
		log:      p.Log.Named("notification.service"),
		provider: p.Provider,
	}
}

var Module = fx.Module("notification.service",
	fx.Provide(New),
)

func (s *Service) NotifyBillIssued(ctx context.Context, msg BillIssued) error {
	return s.send(ctx, "bill_issued", msg.Phone, s.billText(msg))
}

func (s *Service) NotifyPaymentReceived(ctx context.Context, msg PaymentReceived) error {
	return s.send(ctx, "payment_received", msg.Phone, s.paymentText(msg))
}

func (s *Service) NotifyPaymentReminder(ctx context.Context, msg PaymentReminder) error {
	return s.send(ctx, "payment_reminder", msg.Phone, s.reminderText(msg))
}

func (s *Service) send(ctx context.Context, kind, phone, text string) error {
	id, err := s.provider.SendText(ctx, phone, text)
	if err != nil {
		return fmt.Errorf("notify %s: %w", kind, err)
	}
	s.log.Debug("notification sent", zap.String("kind", kind), zap.String("message_id", id))
	return nil
}

var monthNames = [...]string{
	"Januari", "Februari", "Maret", "April", "Mei", "Juni",
	"Juli", "Agustus", "September", "Oktober", "November", "Desember",
}

// PeriodLabel renders a billing period as "Oktober 2026".
func PeriodLabel(month, year int) string {
	if month < 1 || month > 12 {
		return fmt.Sprintf("%02d/%d", month, year)
	}
	return fmt.Sprintf("%s %d", monthNames[month-1], year)
}

// DaysOverdue counts whole calendar days from due to now. It is zero when
// the bill is not yet late.
func DaysOverdue(due, now time.Time) int {
	if due.IsZero() {
		return 0
	}
	d := time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, time.UTC)
	n := now.UTC()
	n = time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
	days := int(n.Sub(d).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// DateLabel renders a date as "31 Oktober 2026".
func DateLabel(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return fmt.Sprintf("%d %s", t.Day(), PeriodLabel(int(t.Month()), t.Year()))
}

func (s *Service) billText(msg BillIssued) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Informasi Tagihan Internet %s*\n\n", s.company)
	fmt.Fprintf(&b, "Pelanggan Yth. %s\n", msg.CustomerName)
	fmt.Fprintf(&b, "No. tagihan: %s\n", msg.BillNumber)
	fmt.Fprintf(&b, "Periode: %s\n\n", PeriodLabel(msg.BillingMonth, msg.BillingYear))
	fmt.Fprintf(&b, "Jumlah tagihan: %s\n", balance.FormatRupiah(msg.Amount))
	fmt.Fprintf(&b, "Tagihan sebelumnya: %s\n", balance.FormatRupiah(msg.PreviousDebt))
	if msg.Compensation > 0 {
		fmt.Fprintf(&b, "Kompensasi gangguan: -%s\n", balance.FormatRupiah(msg.Compensation))
	}
	fmt.Fprintf(&b, "Total tagihan: *%s*\n", balance.FormatRupiah(msg.Total))
	fmt.Fprintf(&b, "Jatuh tempo: %s\n", DateLabel(msg.DueDate))
	if msg.AlreadyPaidUp {
		b.WriteString("Status: Lunas\n")
	} else {
		b.WriteString("Status: Belum Lunas\n")
	}
	b.WriteString("\nMohon kirimkan bukti pembayaran setelah transfer.\n")
	b.WriteString("\n_Pesan ini dikirim otomatis_")
	return b.String()
}

func (s *Service) paymentText(msg PaymentReceived) string {
	var b strings.Builder
	b.WriteString("*Konfirmasi Pembayaran*\n\n")
	fmt.Fprintf(&b, "Pelanggan Yth. %s\n", msg.CustomerName)
	fmt.Fprintf(&b, "No. tagihan: %s\n", msg.BillNumber)
	fmt.Fprintf(&b, "No. pembayaran: %s\n\n", msg.PaymentNumber)
	fmt.Fprintf(&b, "Jumlah dibayar: %s\n", balance.FormatRupiah(msg.Amount))
	fmt.Fprintf(&b, "Tanggal pembayaran: %s\n", DateLabel(msg.PaymentDate))
	if msg.PaidInFull {
		b.WriteString("Status: *Lunas*\n")
	} else {
		fmt.Fprintf(&b, "Sisa tagihan: %s\n", balance.FormatRupiah(msg.Remaining))
	}
	fmt.Fprintf(&b, "\nTerima kasih telah menggunakan layanan %s.\n", s.company)
	b.WriteString("\n_Pesan ini dikirim otomatis_")
	return b.String()
}

func (s *Service) reminderText(msg PaymentReminder) string {
	var b strings.Builder
	if msg.DaysOverdue > 0 {
		b.WriteString("*PERINGATAN TUNGGAKAN*\n\n")
	} else {
		b.WriteString("*PENGINGAT TAGIHAN*\n\n")
	}
	fmt.Fprintf(&b, "Pelanggan Yth. %s\n", msg.CustomerName)
	fmt.Fprintf(&b, "No. tagihan: %s\n", msg.BillNumber)
	fmt.Fprintf(&b, "Periode: %s\n", PeriodLabel(msg.BillingMonth, msg.BillingYear))
	fmt.Fprintf(&b, "Jatuh tempo: %s\n", DateLabel(msg.DueDate))
	fmt.Fprintf(&b, "Sisa tagihan: *%s*\n\n", balance.FormatRupiah(msg.Remaining))
	if msg.DaysOverdue > 0 {
		fmt.Fprintf(&b, "Tagihan Anda sudah terlambat %d hari!\n", msg.DaysOverdue)
		b.WriteString("Segera lakukan pembayaran untuk menghindari pemutusan layanan.\n")
	} else {
		b.WriteString("Tagihan Anda akan segera jatuh tempo.\n")
		b.WriteString("Bayar sekarang untuk menghindari keterlambatan.\n")
	}
	fmt.Fprintf(&b, "\nTerima kasih, %s.\n", s.company)
	b.WriteString("\n_Pesan ini dikirim otomatis_")
	return b.String()
}
