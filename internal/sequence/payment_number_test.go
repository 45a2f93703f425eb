package sequence

import (
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPaymentNumberFormat(t *testing.T) {
	now := time.Date(2026, time.October, 19, 8, 30, 0, 0, time.UTC)
	number := PaymentNumber(now)
	require.Regexp(t, regexp.MustCompile(`^PAY-20261019-[0-9A-HJKMNP-TV-Z]{26}$`), number)
}

func TestPaymentNumberUniqueUnderConcurrency(t *testing.T) {
	now := time.Date(2026, time.October, 19, 8, 30, 0, 0, time.UTC)

	var (
		mu   sync.Mutex
		seen = make(map[string]struct{})
		wg   sync.WaitGroup
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 250; i++ {
				n := PaymentNumber(now)
				mu.Lock()
				seen[n] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Len(t, seen, 2000)
}
