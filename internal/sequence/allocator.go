// Package sequence allocates the human readable identifiers printed on
// bills and payment receipts.
package sequence

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	PrefixBill    = "BILL"
	PrefixPayment = "PAY"
)

// Stem returns the time-bucketed prefix shared by all identifiers of a period,
// e.g. BILL-2026-10.
func Stem(prefix string, year int, month time.Month) string {
	return fmt.Sprintf("%s-%04d-%02d", prefix, year, int(month))
}

// Allocator proposes the next counter for a stem by scanning the identifiers
// already stored in a column. The proposal is only a hint: two allocators can
// return the same value, and the unique constraint on the column decides who
// wins.
type Allocator struct {
	table  string
	column string
}

func NewAllocator(table, column string) *Allocator {
	return &Allocator{table: table, column: column}
}

func (a *Allocator) Next(ctx context.Context, db *gorm.DB, stem string) (string, error) {
	var existing []string
	err := db.WithContext(ctx).
		Table(a.table).
		Where(clause.Like{Column: clause.Column{Name: a.column}, Value: stem + "-%"}).
		Pluck(a.column, &existing).Error
	if err != nil {
		return "", fmt.Errorf("scan %s.%s for %s: %w", a.table, a.column, stem, err)
	}

	next := MaxCounter(stem, existing) + 1
	return Format(stem, next), nil
}

func Format(stem string, counter int) string {
	return fmt.Sprintf("%s-%04d", stem, counter)
}

// MaxCounter returns the highest numeric suffix among values that belong to
// stem, or 0. Values that do not match the stem-NNNN shape are ignored.
func MaxCounter(stem string, values []string) int {
	pattern := regexp.MustCompile(`^` + regexp.QuoteMeta(stem) + `-(\d{4,})$`)

	highest := 0
	for _, value := range values {
		match := pattern.FindStringSubmatch(value)
		if match == nil {
			continue
		}
		n, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		highest = max(highest, n)
	}
	return highest
}
