package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	Env      string `env:"ENV"       envDefault:"local" validate:"required,oneof=local staging production"`
	Port     string `env:"PORT"      envDefault:"8080"  validate:"required"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"  validate:"oneof=debug info warn error"`

	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`
	DBMaxConns  int32  `env:"DB_MAX_CONNS" envDefault:"10" validate:"min=1"`
	DBMinConns  int32  `env:"DB_MIN_CONNS" envDefault:"2"  validate:"min=0,ltefield=DBMaxConns"`
	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`

	JWTSecret    string `env:"JWT_SECRET,required" validate:"required,min=32"`
	ResendAPIKey string `env:"RESEND_API_KEY"       validate:"required_if=Env production,required_if=Env staging"`
	ResendFrom   string `env:"RESEND_FROM"          validate:"required_if=Env production,required_if=Env staging"`

	OTPStore           string        `env:"OTP_STORE"            envDefault:"memory" validate:"oneof=memory redis"`
	RedisAddr          string        `env:"REDIS_ADDR"                               validate:"required_if=OTPStore redis"`
	RedisPassword      string        `env:"REDIS_PASSWORD"`
	OTPCooldown        time.Duration `env:"OTP_COOLDOWN"         envDefault:"60s"    validate:"min=0"`
	OTPRegistrationTTL time.Duration `env:"OTP_REGISTRATION_TTL" envDefault:"5m"     validate:"gt=0"`
	OTPResetTTL        time.Duration `env:"OTP_RESET_TTL"        envDefault:"10m"    validate:"gt=0"`
	OTPSweepSpec       string        `env:"OTP_SWEEP_SPEC"       envDefault:"@every 1m"`

	// ClientURL is where OAuth callbacks send the browser afterwards.
	ClientURL string `env:"CLIENT_URL" envDefault:"http://localhost:3000" validate:"required,url"`

	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET" validate:"required_with=GoogleClientID"`
	GoogleCallbackURL  string `env:"GOOGLE_CALLBACK_URL"  validate:"required_with=GoogleClientID"`

	GitHubClientID     string `env:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string `env:"GITHUB_CLIENT_SECRET" validate:"required_with=GitHubClientID"`
	GitHubCallbackURL  string `env:"GITHUB_CALLBACK_URL"  validate:"required_with=GitHubClientID"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) SlogLevel() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return slog.LevelInfo
	}
	return l
}

func (c *Config) GoogleEnabled() bool { return c.GoogleClientID != "" }

func (c *Config) GitHubEnabled() bool { return c.GitHubClientID != "" }
