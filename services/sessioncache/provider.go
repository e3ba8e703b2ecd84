package sessioncache

import (
	"github.com/redis/go-redis/v9"
	"github.com/tech-arch1tect/inkpress/services/logging"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type OptionalRedis struct {
	fx.In
	Client *redis.Client `optional:"true"`
}

func ProvideCache(logger *logging.Service, opt OptionalRedis) Cache {
	if opt.Client == nil {
		logger.Info("redis unavailable, using in-process session cache")
		return NewMemoryCache()
	}

	logger.Info("using redis session cache", zap.String("addr", opt.Client.Options().Addr))
	return NewRedisCache(opt.Client, logger)
}

var Module = fx.Options(
	fx.Provide(ProvideCache),
)
