package config

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	AppEnv   string `env:"APP_ENV" envDefault:"dev"`
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	// sqlite DSNs are used by local profiles and tests; prod runs postgres.
	DatabaseDriver string `env:"DATABASE_DRIVER" envDefault:"sqlite"`
	DatabaseDSN    string `env:"DATABASE_DSN" envDefault:"file:auth.db?_pragma=foreign_keys(1)"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	JWTIssuer          string        `env:"JWT_ISSUER" envDefault:"otp-auth-backend"`
	JWTAudience        string        `env:"JWT_AUDIENCE" envDefault:"otp-auth-backend"`
	JWTAccessSecret    string        `env:"JWT_ACCESS_SECRET"`
	JWTRefreshSecret   string        `env:"JWT_REFRESH_SECRET"`
	TokenPepper        string        `env:"TOKEN_PEPPER"`
	AccessTokenTTL     time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTokenTTL    time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`
	RotateRefreshOnUse bool          `env:"AUTH_ROTATE_REFRESH" envDefault:"false"`

	OTPValidityMinutes int `env:"OTP_VALIDITY_MINUTES" envDefault:"10"`

	APIRateLimitRPM  int `env:"API_RATE_LIMIT_RPM" envDefault:"300"`
	AuthRateLimitRPM int `env:"AUTH_RATE_LIMIT_RPM" envDefault:"30"`
	OTPRateLimitRPM  int `env:"OTP_RATE_LIMIT_RPM" envDefault:"5"`

	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:","`

	AppName       string        `env:"APP_NAME" envDefault:"otp-auth-backend"`
	SenderName    string        `env:"SENDER_NAME"`
	SenderEmail   string        `env:"SENDER_EMAIL"`
	BrevoAPIKey   string        `env:"BREVO_API_KEY"`
	BrevoBaseURL  string        `env:"BREVO_BASE_URL" envDefault:"https://api.brevo.com"`
	SMSEnabled    bool          `env:"SMS_ENABLED" envDefault:"false"`
	AWSRegion     string        `env:"AWS_REGION" envDefault:"us-east-1"`
	NotifyTimeout time.Duration `env:"NOTIFY_TIMEOUT" envDefault:"5s"`

	OTELServiceName           string        `env:"OTEL_SERVICE_NAME" envDefault:"otp-auth-backend"`
	OTELEnvironment           string        `env:"OTEL_ENVIRONMENT" envDefault:"dev"`
	OTELExporterOTLPEndpoint  string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	OTELExporterOTLPInsecure  bool          `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	OTELMetricsEnabled        bool          `env:"OTEL_METRICS_ENABLED" envDefault:"false"`
	OTELTracesEnabled         bool          `env:"OTEL_TRACES_ENABLED" envDefault:"false"`
	OTELLogsEnabled           bool          `env:"OTEL_LOGS_ENABLED" envDefault:"false"`
	OTELMetricsExportInterval time.Duration `env:"OTEL_METRICS_EXPORT_INTERVAL" envDefault:"15s"`
}

func Load(ctx context.Context) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		recordConfigValidationEvent(ctx, cfg.AppEnv, "failure", classifyConfigLoadError(err))
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		recordConfigValidationEvent(ctx, cfg.AppEnv, "failure", classifyConfigLoadError(err))
		return nil, err
	}
	recordConfigValidationEvent(ctx, cfg.AppEnv, "success", "none")
	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWTAccessSecret == "" || c.JWTRefreshSecret == "" {
		return fmt.Errorf("validate config: JWT_ACCESS_SECRET and JWT_REFRESH_SECRET are required")
	}
	if c.TokenPepper == "" {
		return fmt.Errorf("validate config: TOKEN_PEPPER is required")
	}
	switch c.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("validate config: unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return fmt.Errorf("validate config: token TTLs must be positive")
	}
	if c.AccessTokenTTL >= c.RefreshTokenTTL {
		return fmt.Errorf("validate config: ACCESS_TOKEN_TTL must be shorter than REFRESH_TOKEN_TTL")
	}
	if c.OTPValidityMinutes <= 0 {
		return fmt.Errorf("validate config: OTP_VALIDITY_MINUTES must be positive")
	}
	return nil
}
