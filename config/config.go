package config

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig       `envPrefix:"APP_"`
	Server    ServerConfig    `envPrefix:"SERVER_"`
	Log       LogConfig       `envPrefix:"LOG_"`
	Database  DatabaseConfig  `envPrefix:"DATABASE_"`
	Redis     RedisConfig     `envPrefix:"REDIS_"`
	JWT       JWTConfig       `envPrefix:"JWT_"`
	Auth      AuthConfig      `envPrefix:"AUTH_"`
	Session   SessionConfig   `envPrefix:"SESSION_"`
	Geo       GeoConfig       `envPrefix:"GEO_"`
	Mail      MailConfig      `envPrefix:"MAIL_"`
	RateLimit RateLimitConfig `envPrefix:"RATE_LIMIT_"`
	Metrics   MetricsConfig   `envPrefix:"METRICS_"`
}

type AppConfig struct {
	Name    string `env:"NAME" envDefault:"Inkpress"`
	URL     string `env:"URL" envDefault:"http://localhost:8080"`
	Version string `env:"VERSION" envDefault:"1.0.0"`
}

type ServerConfig struct {
	Port           string        `env:"PORT" envDefault:"8080"`
	Host           string        `env:"HOST" envDefault:"localhost"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`
}

type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
	Output string `env:"OUTPUT" envDefault:"stdout"`
}

type DatabaseConfig struct {
	Driver      string `env:"DRIVER" envDefault:"sqlite"`
	DSN         string `env:"DSN" envDefault:"app.db"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"true"`
}

// RedisConfig drives the session cache and, optionally, the rate limit store.
// Enabled=false keeps both in process memory.
type RedisConfig struct {
	Enabled  bool          `env:"ENABLED" envDefault:"true"`
	Addr     string        `env:"ADDR" envDefault:"localhost:6379"`
	Password string        `env:"PASSWORD"`
	DB       int           `env:"DB" envDefault:"0"`
	Timeout  time.Duration `env:"TIMEOUT" envDefault:"500ms"`
}

type JWTConfig struct {
	AccessSecret  string        `env:"ACCESS_SECRET,required"`
	RefreshSecret string        `env:"REFRESH_SECRET,required"`
	AccessExpiry  time.Duration `env:"ACCESS_EXPIRY" envDefault:"15m"`
	RefreshExpiry time.Duration `env:"REFRESH_EXPIRY" envDefault:"168h"`
	Issuer        string        `env:"ISSUER" envDefault:"inkpress"`
}

type AuthConfig struct {
	MinLength      int  `env:"MIN_LENGTH" envDefault:"8"`
	RequireUpper   bool `env:"REQUIRE_UPPER" envDefault:"true"`
	RequireLower   bool `env:"REQUIRE_LOWER" envDefault:"true"`
	RequireNumber  bool `env:"REQUIRE_NUMBER" envDefault:"true"`
	RequireSpecial bool `env:"REQUIRE_SPECIAL" envDefault:"true"`
	BcryptCost     int  `env:"BCRYPT_COST" envDefault:"10"`
}

type SessionConfig struct {
	// TrustCache lets a cache entry that agrees with the token admit a request
	// without a store read. Disagreement or a miss always goes to the store.
	TrustCache      bool `env:"TRUST_CACHE" envDefault:"true"`
	NotifyNewDevice bool `env:"NOTIFY_NEW_DEVICE" envDefault:"true"`
}

type GeoConfig struct {
	Enabled bool          `env:"ENABLED" envDefault:"true"`
	BaseURL string        `env:"BASE_URL" envDefault:"http://ip-api.com/json"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"2s"`
}

type MailConfig struct {
	Enabled     bool   `env:"ENABLED" envDefault:"false"`
	Host        string `env:"HOST" envDefault:"localhost"`
	Port        int    `env:"PORT" envDefault:"587"`
	Username    string `env:"USERNAME"`
	Password    string `env:"PASSWORD"`
	Encryption  string `env:"ENCRYPTION" envDefault:"starttls"`
	FromAddress string `env:"FROM_ADDRESS"`
	FromName    string `env:"FROM_NAME" envDefault:"Inkpress"`
}

type CountingMode string

const (
	CountAll      CountingMode = "all"
	CountFailures CountingMode = "failures"
	CountSuccess  CountingMode = "success"
)

type RateLimitConfig struct {
	Enabled   bool          `env:"ENABLED" envDefault:"true"`
	Store     string        `env:"STORE" envDefault:"memory"`
	Rate      int           `env:"RATE" envDefault:"10"`
	Period    time.Duration `env:"PERIOD" envDefault:"1m"`
	CountMode CountingMode  `env:"COUNT_MODE" envDefault:"all"`
}

type MetricsConfig struct {
	Enabled bool   `env:"ENABLED" envDefault:"true"`
	Path    string `env:"PATH" envDefault:"/metrics"`
}

const minSecretLength = 32

var (
	ErrMissingSecrets = errors.New("JWT access and refresh secrets are required")
	ErrShortSecret    = fmt.Errorf("JWT secrets must be at least %d characters long", minSecretLength)
	ErrSharedSecret   = errors.New("JWT access and refresh secrets must differ")
	ErrNonPositiveTTL = errors.New("JWT access and refresh expiry must be positive")
)

func LoadConfig(cfg *Config) error {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	if err := env.Parse(cfg); err != nil {
		return err
	}

	return cfg.Validate()
}

func (c *Config) Validate() error {
	return validateJWTConfig(&c.JWT)
}

func validateJWTConfig(cfg *JWTConfig) error {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return ErrMissingSecrets
	}
	if len(cfg.AccessSecret) < minSecretLength || len(cfg.RefreshSecret) < minSecretLength {
		return ErrShortSecret
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return ErrSharedSecret
	}
	if cfg.AccessExpiry <= 0 || cfg.RefreshExpiry <= 0 {
		return ErrNonPositiveTTL
	}
	return nil
}
