package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	pgDup := &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "bills_bill_number_key"}

	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"gorm translated", fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey), true},
		{"pg error", fmt.Errorf("insert: %w", pgDup), true},
		{"pg other code", &pgconn.PgError{Code: pgerrcode.SerializationFailure}, false},
		{"sqlite", errors.New("UNIQUE constraint failed: bills.bill_number"), true},
		{"mysql", errors.New("Error 1062 (23000): Duplicate entry"), true},
		{"other", errors.New("connection refused"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsDuplicateKeyErr(tc.err); got != tc.want {
				t.Fatalf("IsDuplicateKeyErr(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}

	if got := DuplicateKeyConstraint(pgDup); got != "bills_bill_number_key" {
		t.Fatalf("unexpected constraint %q", got)
	}
}
