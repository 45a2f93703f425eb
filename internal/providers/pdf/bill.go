package pdf

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// BillData holds the already formatted strings printed on a bill.
type BillData struct {
	CompanyName   string
	BillNumber    string
	IssueDate     string
	DueDate       string
	BillingPeriod string
	Status        string

	CustomerName    string
	CustomerPhone   string
	CustomerAddress string
	PackageName     string

	Amount       string
	PreviousDebt string
	Compensation string
	Total        string
	Paid         string
	Remaining    string

	Payments []PaymentLine
}

type PaymentLine struct {
	PaymentNumber string
	Date          string
	Method        string
	Amount        string
}

var ErrMissingBillNumber = errors.New("pdf: bill number is required")

type PDFProvider struct{}

func New() Provider {
	return &PDFProvider{}
}

func (p *PDFProvider) GenerateBill(ctx context.Context, bill BillData) (io.Reader, error) {
	if bill.BillNumber == "" {
		return nil, ErrMissingBillNumber
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Halaman {current} dari {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(8, bill.CompanyName, props.Text{
			Size:  16,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(4, "TAGIHAN", props.Text{
			Size:  16,
			Style: fontstyle.Bold,
			Align: align.Right,
		}),
	)

	m.AddRow(24,
		col.New(6).Add(
			text.New("No. tagihan: "+bill.BillNumber, props.Text{Top: 0}),
			text.New("Periode: "+bill.BillingPeriod, props.Text{Top: 5}),
			text.New("Tanggal terbit: "+bill.IssueDate, props.Text{Top: 10}),
			text.New("Jatuh tempo: "+bill.DueDate, props.Text{Top: 15}),
		),
		col.New(6).Add(
			text.New("Pelanggan", props.Text{Style: fontstyle.Bold, Align: align.Right}),
			text.New(bill.CustomerName, props.Text{Top: 5, Align: align.Right}),
			text.New(bill.CustomerPhone, props.Text{Top: 10, Align: align.Right}),
			text.New(bill.CustomerAddress, props.Text{Top: 15, Align: align.Right}),
		),
	)

	m.AddRow(4, line.NewCol(12))

	m.AddRow(8,
		text.NewCol(8, "Keterangan", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(4, "Jumlah", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	summary := [][2]string{
		{"Paket " + bill.PackageName, bill.Amount},
		{"Tagihan sebelumnya", bill.PreviousDebt},
		{"Kompensasi gangguan", "-" + bill.Compensation},
	}
	for _, row := range summary {
		m.AddRow(7,
			text.NewCol(8, row[0], props.Text{Size: 9}),
			text.NewCol(4, row[1], props.Text{Size: 9, Align: align.Right}),
		)
	}

	m.AddRow(4, line.NewCol(12))

	totals := [][2]string{
		{"Total tagihan", bill.Total},
		{"Sudah dibayar", bill.Paid},
		{"Sisa tagihan", bill.Remaining},
	}
	for i, row := range totals {
		style := props.Text{Size: 9}
		if i == len(totals)-1 {
			style.Style = fontstyle.Bold
		}
		right := style
		right.Align = align.Right
		m.AddRow(7,
			col.New(6),
			text.NewCol(3, row[0], style),
			text.NewCol(3, row[1], right),
		)
	}

	m.AddRow(10,
		text.NewCol(12, "Status: "+bill.Status, props.Text{Size: 11, Style: fontstyle.Bold, Top: 3}),
	)

	if len(bill.Payments) > 0 {
		m.AddRow(10,
			text.NewCol(12, "Riwayat pembayaran", props.Text{Size: 10, Style: fontstyle.Bold, Top: 3}),
		)
		m.AddRow(7,
			text.NewCol(4, "No. pembayaran", props.Text{Style: fontstyle.Bold, Size: 8}),
			text.NewCol(3, "Tanggal", props.Text{Style: fontstyle.Bold, Size: 8}),
			text.NewCol(2, "Metode", props.Text{Style: fontstyle.Bold, Size: 8}),
			text.NewCol(3, "Jumlah", props.Text{Style: fontstyle.Bold, Size: 8, Align: align.Right}),
		)
		for _, payment := range bill.Payments {
			m.AddRow(6,
				text.NewCol(4, payment.PaymentNumber, props.Text{Size: 8}),
				text.NewCol(3, payment.Date, props.Text{Size: 8}),
				text.NewCol(2, payment.Method, props.Text{Size: 8}),
				text.NewCol(3, payment.Amount, props.Text{Size: 8, Align: align.Right}),
			)
		}
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}

	return bytes.NewReader(doc.GetBytes()), nil
}
