package ratelimit

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/tech-arch1tect/inkpress/config"
	"github.com/tech-arch1tect/inkpress/services/logging"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type StoreParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    *config.Config
	Logger    *logging.Service
	Redis     *redis.Client `optional:"true"`
}

func ProvideRateLimitStore(p StoreParams) Store {
	if p.Config.RateLimit.Store == "redis" {
		if p.Redis != nil {
			p.Logger.Info("rate limit counters stored in redis")
			return NewRedisStore(p.Redis)
		}
		p.Logger.Warn("rate limit store set to redis but redis is disabled, using memory",
			zap.String("store", p.Config.RateLimit.Store))
	}

	store := NewMemoryStore()
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error {
			store.Close()
			return nil
		},
	})
	return store
}

var Module = fx.Options(
	fx.Provide(ProvideRateLimitStore),
)
