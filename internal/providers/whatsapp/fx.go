package whatsapp

import (
	"net/http"

	"github.com/smallbiznis/netbill/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.whatsapp",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config, log *zap.Logger) Provider {
	if !cfg.WhatsApp.Enabled() {
		log.Info("whatsapp notifications disabled, WAHA_BASE_URL not set")
		return &NoOpProvider{}
	}
	return NewWAHA(Config{
		BaseURL: cfg.WhatsApp.BaseURL,
		APIKey:  cfg.WhatsApp.APIKey,
		Session: cfg.WhatsApp.Session,
		Timeout: cfg.WhatsApp.Timeout,
	}, http.DefaultClient)
}
