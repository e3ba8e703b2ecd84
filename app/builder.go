package app

import (
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/tech-arch1tect/inkpress/api"
	"github.com/tech-arch1tect/inkpress/config"
	"github.com/tech-arch1tect/inkpress/database"
	"github.com/tech-arch1tect/inkpress/middleware/ratelimit"
	"github.com/tech-arch1tect/inkpress/server"
	"github.com/tech-arch1tect/inkpress/services/auth"
	"github.com/tech-arch1tect/inkpress/services/geo"
	"github.com/tech-arch1tect/inkpress/services/logging"
	"github.com/tech-arch1tect/inkpress/services/mail"
	"github.com/tech-arch1tect/inkpress/services/session"
	"github.com/tech-arch1tect/inkpress/services/sessioncache"
	"github.com/tech-arch1tect/inkpress/services/sessionstore"
	"github.com/tech-arch1tect/inkpress/services/token"
	"github.com/tech-arch1tect/inkpress/services/user"
	"go.uber.org/fx"
)

type AppBuilder struct {
	config    *config.Config
	fxOptions []fx.Option
	errors    []error
}

func NewApp() *AppBuilder {
	return &AppBuilder{}
}

func (b *AppBuilder) WithConfig(cfg *config.Config) *AppBuilder {
	if cfg == nil {
		b.addError("config cannot be nil")
		return b
	}
	b.config = cfg
	return b
}

func (b *AppBuilder) WithAutoConfig() *AppBuilder {
	cfg := &config.Config{}
	if err := config.LoadConfig(cfg); err != nil {
		b.addError(fmt.Sprintf("failed to load config: %v", err))
		return b
	}
	b.config = cfg
	return b
}

// WithFxOptions appends options after the built-in modules, so fx.Decorate
// and fx.Replace can swap any of them.
func (b *AppBuilder) WithFxOptions(opts ...fx.Option) *AppBuilder {
	b.fxOptions = append(b.fxOptions, opts...)
	return b
}

// WithRedisClient replaces the configured client. With Redis.Enabled=false
// the configured address is never dialed.
func (b *AppBuilder) WithRedisClient(client *redis.Client) *AppBuilder {
	b.fxOptions = append(b.fxOptions, fx.Replace(client))
	return b
}

func (b *AppBuilder) Build() (*App, error) {
	if b.config == nil && len(b.errors) == 0 {
		b.WithAutoConfig()
	}

	if err := b.validate(); err != nil {
		return nil, err
	}

	app := &App{config: b.config}

	options := append(b.modules(),
		fx.Populate(&app.logger, &app.server, &app.db, &app.sessions),
	)
	app.fx = fx.New(options...)

	if err := app.fx.Err(); err != nil {
		return nil, fmt.Errorf("failed to build application: %w", err)
	}

	return app, nil
}

func (b *AppBuilder) modules() []fx.Option {
	options := []fx.Option{
		fx.NopLogger,
		config.NewProvider(b.config),
		logging.Module,
		fx.Supply(database.WithModels(&user.User{}, &sessionstore.Session{})),
		database.Module,
		server.NewProvider(),
		token.Module,
		user.Module,
		auth.Module,
		geo.Module,
		sessionstore.Module,
		sessioncache.Module,
		mail.Module,
		session.Module,
		ratelimit.Module,
		api.Module,
	}

	return append(options, b.fxOptions...)
}

func (b *AppBuilder) addError(msg string) {
	b.errors = append(b.errors, errors.New(msg))
}

func (b *AppBuilder) validate() error {
	if len(b.errors) > 0 {
		return fmt.Errorf("configuration errors: %w", errors.Join(b.errors...))
	}
	return nil
}
