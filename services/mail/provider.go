package mail

import (
	"github.com/tech-arch1tect/inkpress/config"
	"github.com/tech-arch1tect/inkpress/services/logging"
	"github.com/tech-arch1tect/inkpress/services/session"
	"go.uber.org/fx"
)

// ProvideNotifier returns a nil notifier when mail is disabled so the session
// manager skips notifications entirely.
func ProvideNotifier(cfg *config.Config, logger *logging.Service) (session.LoginNotifier, error) {
	if !cfg.Mail.Enabled {
		logger.Info("mail disabled, new device notifications are off")
		return nil, nil
	}

	svc, err := NewService(&cfg.Mail, cfg.App.Name, logger)
	if err != nil {
		return nil, err
	}
	return svc, nil
}

var Module = fx.Options(
	fx.Provide(ProvideNotifier),
)
