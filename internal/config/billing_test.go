package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestValidateBillingConfig(t *testing.T) {
	require.NoError(t, ValidateBillingConfig(DefaultBillingConfig()))

	cfg := DefaultBillingConfig()
	cfg.DueDate = DueDatePolicy{Policy: DueDateFixedDayNextMonth, Day: 31}
	require.Error(t, ValidateBillingConfig(cfg))

	cfg.DueDate.Day = 10
	require.NoError(t, ValidateBillingConfig(cfg))

	cfg = DefaultBillingConfig()
	cfg.DueDate.Policy = "whenever"
	require.Error(t, ValidateBillingConfig(cfg))

	cfg = DefaultBillingConfig()
	cfg.Sequence.MaxAttempts = 0
	require.Error(t, ValidateBillingConfig(cfg))

	cfg = DefaultBillingConfig()
	cfg.Schedule.Timezone = "Mars/Olympus"
	require.Error(t, ValidateBillingConfig(cfg))
}

func TestScheduleLocation(t *testing.T) {
	require.Equal(t, time.UTC, DefaultBillingConfig().Schedule.Location())
	require.Equal(t, time.UTC, SchedulePolicy{Timezone: "Mars/Olympus"}.Location())

	jakarta := SchedulePolicy{Timezone: "Asia/Jakarta"}.Location()
	local := time.Date(2026, 9, 30, 18, 0, 0, 0, time.UTC).In(jakarta)
	require.Equal(t, 1, local.Day())
	require.Equal(t, time.October, local.Month())
}

func TestNewBillingConfigHolderReadsFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`billing:
  dueDate:
    policy: fixed_day_next_period
    day: 10
  sequence:
    maxAttempts: 3
    baseDelay: 50ms
  reset:
    enabled: false
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "billing.yml"), content, 0o600))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	holder, err := NewBillingConfigHolder(zap.NewNop())
	require.NoError(t, err)

	cfg := holder.Get()
	require.Equal(t, DueDateFixedDayNextMonth, cfg.DueDate.Policy)
	require.Equal(t, 10, cfg.DueDate.Day)
	require.Equal(t, 3, cfg.Sequence.MaxAttempts)
	require.Equal(t, 50*time.Millisecond, cfg.Sequence.BaseDelay)
	require.Equal(t, 2*time.Second, cfg.Sequence.MaxDelay)
	require.False(t, cfg.Reset.Enabled)
	require.Equal(t, 1, cfg.Schedule.GenerateDay)
	require.Equal(t, "UTC", cfg.Schedule.Timezone)
}
