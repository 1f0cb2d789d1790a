package gateway

import (
	"github.com/drivelane/paycore/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("gateway",
	fx.Provide(NewClient),
)

func NewClient(cfg config.Config, log *zap.Logger) Client {
	if cfg.StripeAPIKey != "" {
		return NewStripeClient(cfg.StripeAPIKey)
	}
	log.Warn("no payment processor configured, using offline gateway")
	return NewOfflineClient()
}
