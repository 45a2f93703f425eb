package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type Config struct {
	BaseURL string
	APIKey  string
	Session string
	Timeout time.Duration
}

// WAHAProvider talks to a WAHA (WhatsApp HTTP API) gateway.
type WAHAProvider struct {
	cfg    Config
	client *http.Client
}

func NewWAHA(cfg Config, client *http.Client) *WAHAProvider {
	if client == nil {
		client = &http.Client{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if strings.TrimSpace(cfg.Session) == "" {
		cfg.Session = "default"
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	return &WAHAProvider{cfg: cfg, client: client}
}

type sendTextRequest struct {
	Session string `json:"session"`
	ChatID  string `json:"chatId"`
	Text    string `json:"text"`
}

type sendTextResponse struct {
	ID      json.RawMessage `json:"id"`
	Message string          `json:"message"`
}

func (p *WAHAProvider) SendText(ctx context.Context, phone string, text string) (string, error) {
	chatID := ChatID(phone)
	if chatID == "" {
		return "", ErrInvalidPhone
	}

	body, err := json.Marshal(sendTextRequest{
		Session: p.cfg.Session,
		ChatID:  chatID,
		Text:    text,
	})
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/api/sendText", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if p.cfg.APIKey != "" {
		req.Header.Set("X-Api-Key", p.cfg.APIKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("whatsapp: send text: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("whatsapp: read response: %w", err)
	}

	var payload sendTextResponse
	_ = json.Unmarshal(raw, &payload)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(payload.Message)
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return "", fmt.Errorf("whatsapp: send text: status %d: %s", resp.StatusCode, msg)
	}

	return messageID(payload.ID), nil
}

// messageID accepts both the plain string id and the {"_serialized": ...}
// object returned by different WAHA engines.
func messageID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return id
	}
	var obj struct {
		Serialized string `json:"_serialized"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Serialized
	}
	return ""
}
