// Package balance holds the bill arithmetic. All amounts are integers in the
// smallest currency unit.
package balance

type Status string

const (
	StatusUnpaid  Status = "unpaid"
	StatusPartial Status = "partial"
	StatusPaid    Status = "paid"
)

type Breakdown struct {
	Total     int64
	Remaining int64
	Status    Status
}

func Compute(amount, previousDebt, compensation, paidAmount int64) Breakdown {
	total := max(0, amount+previousDebt-compensation)
	remaining := max(0, total-paidAmount)

	return Breakdown{
		Total:     total,
		Remaining: remaining,
		Status:    statusOf(remaining, paidAmount),
	}
}

func statusOf(remaining, paid int64) Status {
	switch {
	case remaining == 0:
		return StatusPaid
	case paid > 0:
		return StatusPartial
	default:
		return StatusUnpaid
	}
}

// Snapshot is the stored monetary state of a bill.
type Snapshot struct {
	Amount       int64
	PreviousDebt int64
	Compensation int64
	Total        int64
	Paid         int64
	Remaining    int64
	Status       Status
}

// Verify returns a non-empty reason when s does not satisfy the bill
// invariants.
func Verify(s Snapshot) string {
	if s.Amount < 0 || s.PreviousDebt < 0 || s.Compensation < 0 || s.Paid < 0 {
		return "negative monetary field"
	}

	want := Compute(s.Amount, s.PreviousDebt, s.Compensation, s.Paid)
	switch {
	case s.Total != want.Total:
		return "total_amount does not match amount + previous_debt - compensation"
	case s.Remaining != want.Remaining:
		return "remaining_amount does not match total_amount - paid_amount"
	case s.Status != want.Status:
		return "status does not match amounts"
	}
	return ""
}
