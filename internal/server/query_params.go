package server

import (
	"strconv"
	"strings"
	"time"
)

const dateOnlyLayout = "2006-01-02"

func parseOptionalInt(value string) (int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, nil
	}
	return strconv.Atoi(trimmed)
}

// parsePeriod reads month and year query parameters. Missing values stay zero
// and are rejected by the ledger where a period is required.
func parsePeriod(month, year string) (int, int, error) {
	m, err := parseOptionalInt(month)
	if err != nil {
		return 0, 0, newValidationError("month", "invalid_month", "month must be a number")
	}
	y, err := parseOptionalInt(year)
	if err != nil {
		return 0, 0, newValidationError("year", "invalid_year", "year must be a number")
	}
	return m, y, nil
}

func parseOptionalTime(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, nil
	}
	if parsed, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return parsed, nil
	}
	parsed, err := time.Parse(dateOnlyLayout, trimmed)
	if err != nil {
		return time.Time{}, err
	}
	return parsed, nil
}
