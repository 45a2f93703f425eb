package service

import (
	"time"

	"github.com/smallbiznis/netbill/internal/config"
)

// DueDate applies the configured due-date policy to a billing period.
// end_of_period is the last day of the billing month; fixed_day_next_period
// is the configured day of the following month.
func DueDate(policy config.DueDatePolicy, year, month int) time.Time {
	if policy.Policy == config.DueDateFixedDayNextMonth {
		day := min(max(policy.Day, 1), 28)
		return time.Date(year, time.Month(month)+1, day, 0, 0, 0, 0, time.UTC)
	}
	// Day 0 of the next month normalizes to the last day of this one.
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC)
}
