package testutils

import (
	"strings"
	"time"

	"github.com/tech-arch1tect/inkpress/config"
	"golang.org/x/crypto/bcrypt"
)

func GetTestConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name:    "Inkpress Test",
			URL:     "http://localhost:8080",
			Version: "test",
		},
		Server: config.ServerConfig{
			Host:           "localhost",
			Port:           "8080",
			RequestTimeout: 5 * time.Second,
		},
		Log: config.LogConfig{
			Level:  "debug",
			Format: "console",
			Output: "stdout",
		},
		Database: config.DatabaseConfig{
			Driver:      "sqlite",
			DSN:         ":memory:",
			AutoMigrate: true,
		},
		Redis: config.RedisConfig{
			Enabled: false,
			Timeout: 500 * time.Millisecond,
		},
		JWT: config.JWTConfig{
			AccessSecret:  "access-signing-key-32-chars-long!!",
			RefreshSecret: "refresh-signing-key-32-chars-long!",
			AccessExpiry:  15 * time.Minute,
			RefreshExpiry: 7 * 24 * time.Hour,
			Issuer:        "inkpress-test",
		},
		Auth: config.AuthConfig{
			MinLength:      8,
			RequireUpper:   true,
			RequireLower:   true,
			RequireNumber:  true,
			RequireSpecial: true,
			BcryptCost:     bcrypt.MinCost,
		},
		Session: config.SessionConfig{
			TrustCache:      true,
			NotifyNewDevice: false,
		},
		Geo: config.GeoConfig{
			Enabled: false,
			Timeout: 200 * time.Millisecond,
		},
		Mail: config.MailConfig{
			Enabled: false,
		},
		RateLimit: config.RateLimitConfig{
			Enabled:   false,
			Store:     "memory",
			Rate:      5,
			Period:    time.Minute,
			CountMode: config.CountAll,
		},
		Metrics: config.MetricsConfig{
			Enabled: false,
			Path:    "/metrics",
		},
	}
}

var TestPasswords = struct {
	Valid     string
	TooShort  string
	NoUpper   string
	NoLower   string
	NoNumber  string
	NoSpecial string
	TooLong   string
}{
	Valid:     "Password123!",
	TooShort:  "Pa1!",
	NoUpper:   "password123!",
	NoLower:   "PASSWORD123!",
	NoNumber:  "Password!!",
	NoSpecial: "Password123",
	TooLong:   "Password123!" + strings.Repeat("a", 61),
}

const (
	TestEmail     = "a@x.com"
	TestFirstname = "Ada"
	TestDeviceID  = "dev-AAAA1111"
	TestUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	TestIP        = "203.0.113.7"
	TestLocation  = "Lagos, Lagos, Nigeria"
)
