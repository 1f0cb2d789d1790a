package signals

import (
	"github.com/drivelane/paycore/internal/config"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

var Module = fx.Module("signals",
	fx.Provide(NewRedisClient),
	fx.Provide(NewService),
)

// NewRedisClient returns nil when no address is configured; the
// service degrades to database-backed lookups.
func NewRedisClient(cfg config.Config) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
}
