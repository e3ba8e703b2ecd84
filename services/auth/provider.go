package auth

import (
	"github.com/tech-arch1tect/inkpress/config"
	"github.com/tech-arch1tect/inkpress/services/logging"
	"github.com/tech-arch1tect/inkpress/services/user"
	"go.uber.org/fx"
)

func ProvideAuthService(cfg *config.Config, users user.Directory, logger *logging.Service) *Service {
	return NewService(&cfg.Auth, users, logger)
}

var Module = fx.Options(
	fx.Provide(ProvideAuthService),
)
