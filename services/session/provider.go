package session

import (
	"github.com/tech-arch1tect/inkpress/config"
	"github.com/tech-arch1tect/inkpress/services/auth"
	"github.com/tech-arch1tect/inkpress/services/geo"
	"github.com/tech-arch1tect/inkpress/services/logging"
	"github.com/tech-arch1tect/inkpress/services/sessioncache"
	"github.com/tech-arch1tect/inkpress/services/sessionstore"
	"github.com/tech-arch1tect/inkpress/services/token"
	"go.uber.org/fx"
)

type ManagerParams struct {
	fx.In

	Config   *config.Config
	Logger   *logging.Service
	Codec    *token.Codec
	Store    sessionstore.Store
	Cache    sessioncache.Cache
	Geo      geo.Resolver
	Verifier CredentialVerifier
	Notifier LoginNotifier `optional:"true"`
}

func ProvideManager(lc fx.Lifecycle, p ManagerParams) *Manager {
	m := NewManager(Dependencies{
		Codec:    p.Codec,
		Store:    p.Store,
		Cache:    p.Cache,
		Geo:      p.Geo,
		Verifier: p.Verifier,
		Notifier: p.Notifier,
	}, &p.Config.Session, p.Logger)

	lc.Append(fx.Hook{OnStop: m.Wait})
	return m
}

func ProvideVerifier(svc *auth.Service) CredentialVerifier {
	return svc
}

var Module = fx.Options(
	fx.Provide(ProvideVerifier),
	fx.Provide(ProvideManager),
)
