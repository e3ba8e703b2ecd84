package api

import (
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(PublicRoutes),
	fx.Provide(NewDocument),
	fx.Provide(NewAuthHandler),
	fx.Invoke(RegisterRoutes),
)
