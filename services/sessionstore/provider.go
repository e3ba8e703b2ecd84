package sessionstore

import (
	"github.com/tech-arch1tect/inkpress/services/logging"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideStore(db *gorm.DB, logger *logging.Service) Store {
	return NewGormStore(db, logger)
}

var Module = fx.Options(
	fx.Provide(ProvideStore),
)
