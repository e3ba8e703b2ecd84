package geo

import (
	"github.com/tech-arch1tect/inkpress/config"
	"github.com/tech-arch1tect/inkpress/services/logging"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func ProvideResolver(cfg *config.Config, logger *logging.Service) Resolver {
	if !cfg.Geo.Enabled {
		logger.Info("geolocation disabled, sessions record an unknown location")
		return StaticResolver{}
	}

	logger.Info("geolocation enabled",
		zap.String("base_url", cfg.Geo.BaseURL),
		zap.Duration("timeout", cfg.Geo.Timeout))
	return NewHTTPResolver(&cfg.Geo, nil, logger)
}

var Module = fx.Options(
	fx.Provide(ProvideResolver),
)
