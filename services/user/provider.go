package user

import (
	"github.com/tech-arch1tect/inkpress/services/logging"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideDirectory(db *gorm.DB, logger *logging.Service) Directory {
	return NewGormDirectory(db, logger)
}

var Module = fx.Options(
	fx.Provide(ProvideDirectory),
)
