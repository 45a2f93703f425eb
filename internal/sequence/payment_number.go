package sequence

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// PaymentNumber returns PAY-YYYYMMDD-<ULID>. The ULID embeds a millisecond
// timestamp and monotonic entropy, so numbers sort by creation time and do
// not depend on scanning existing rows.
func PaymentNumber(now time.Time) string {
	now = now.UTC()
	id := ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy())
	return PrefixPayment + "-" + now.Format("20060102") + "-" + id.String()
}
