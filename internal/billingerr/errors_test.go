package billingerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"sentinel", ErrInvalidAmount, KindValidation},
		{"wrapped sentinel", fmt.Errorf("record payment: %w", ErrConflict), KindConflict},
		{"overpayment", &OverpaymentError{Amount: 60000, Remaining: 50000}, KindOverpayment},
		{"exhausted wrapping duplicate", &SequenceExhaustedError{Stem: "BILL-2026-10", Attempts: 5, Err: errors.New("duplicate")}, KindSequenceExhausted},
		{"integrity", fmt.Errorf("x: %w", &IntegrityError{BillID: "1", Reason: "mismatch"}), KindIntegrity},
		{"plain", errors.New("boom"), KindInternal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, KindOf(tc.err))
		})
	}
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "amount must be a positive integer", Message(ErrInvalidAmount))
	assert.Equal(t, "internal error", Message(errors.New("db exploded")))
	assert.Equal(t, "sequence BILL-2026-10 exhausted after 5 attempts",
		Message(&SequenceExhaustedError{Stem: "BILL-2026-10", Attempts: 5}))
}
