package whatsapp

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrDisabled     = errors.New("whatsapp: provider not configured")
	ErrInvalidPhone = errors.New("whatsapp: phone number is empty")
)

type Provider interface {
	// SendText delivers a plain text message and returns the gateway message id.
	SendText(ctx context.Context, phone string, text string) (string, error)
}

type NoOpProvider struct{}

func (p *NoOpProvider) SendText(ctx context.Context, phone string, text string) (string, error) {
	return "", ErrDisabled
}

// ChatID converts a local or international phone number into a WhatsApp
// chat id, e.g. 0812-3456-789 becomes 628123456789@c.us.
func ChatID(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	switch {
	case digits == "":
		return ""
	case strings.HasPrefix(digits, "0"):
		digits = "62" + digits[1:]
	case !strings.HasPrefix(digits, "62"):
		digits = "62" + digits
	}
	return digits + "@c.us"
}
