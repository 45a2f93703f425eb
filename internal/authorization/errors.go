package authorization

import (
	"github.com/smallbiznis/netbill/internal/billingerr"
)

var (
	// ErrForbidden is the shared billing sentinel so callers map it by kind.
	ErrForbidden   = billingerr.ErrForbidden
	ErrInvalidRole = billingerr.New(billingerr.KindForbidden, "invalid_role", "actor role is missing or unknown")
)
