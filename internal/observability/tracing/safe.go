package tracing

import (
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

var blockedAttributeFragments = []string{"phone", "address", "notes", "token", "confirmation"}

// SafeAttributes drops attributes whose keys look like they carry customer data.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		key := strings.ToLower(string(attr.Key))
		blocked := false
		for _, fragment := range blockedAttributeFragments {
			if strings.Contains(key, fragment) {
				blocked = true
				break
			}
		}
		if !blocked {
			out = append(out, attr)
		}
	}
	return out
}

// SafeError returns an error safe to attach to a span: only the outermost
// message, truncated.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if len(msg) > 256 {
		msg = msg[:256]
	}
	return errors.New(msg)
}
