package token

import (
	"github.com/tech-arch1tect/inkpress/config"
	"github.com/tech-arch1tect/inkpress/services/logging"
	"go.uber.org/fx"
)

func ProvideCodec(cfg *config.Config, logger *logging.Service) *Codec {
	return NewCodec(&cfg.JWT, logger)
}

var Module = fx.Options(
	fx.Provide(ProvideCodec),
)
