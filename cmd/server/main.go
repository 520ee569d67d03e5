package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"otp-auth-backend/internal/app"
	"otp-auth-backend/internal/config"
	"otp-auth-backend/internal/domain"
	"otp-auth-backend/internal/health"
	"otp-auth-backend/internal/http/handler"
	"otp-auth-backend/internal/http/middleware"
	"otp-auth-backend/internal/http/router"
	"otp-auth-backend/internal/notify"
	"otp-auth-backend/internal/observability"
	"otp-auth-backend/internal/repository"
	"otp-auth-backend/internal/security"
	"otp-auth-backend/internal/service"
	"otp-auth-backend/internal/tools/common"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	if err := common.LoadEnvFile(".env"); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	logger, loggerProvider, err := observability.InitLogging(ctx, cfg)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	runtime, err := observability.InitRuntime(ctx, cfg, logger, loggerProvider)
	if err != nil {
		return err
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(&domain.User{}, &domain.OTPCode{}, &domain.Session{}); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}

	var redisClient redis.UniversalClient
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		defer redisClient.Close()
	}

	users := repository.NewUserRepository(db)
	codes := repository.NewOTPRepository(db)
	sessions := repository.NewSessionRepository(db)

	jwtMgr := security.NewJWTManager(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTAccessSecret, cfg.JWTRefreshSecret)

	var emailSender notify.EmailSender = notify.LogEmailSender{}
	if cfg.BrevoAPIKey != "" {
		emailSender = notify.NewBrevoEmailSender(cfg.BrevoBaseURL, cfg.BrevoAPIKey,
			notify.Recipient{Email: cfg.SenderEmail, Name: cfg.SenderName}, cfg.NotifyTimeout)
	}

	otpOpts := []service.OTPServiceOption{}
	if redisClient != nil {
		otpOpts = append(otpOpts, service.WithEmailShield(service.NewRedisEmailShield(redisClient, "email_shield"), 2*time.Minute))
	}
	if cfg.SMSEnabled {
		smsSender, smsErr := notify.NewSNSSMSSender(ctx, cfg.AWSRegion)
		if smsErr != nil {
			return smsErr
		}
		otpOpts = append(otpOpts, service.WithSMSSender(smsSender))
	}

	otpSvc := service.NewOTPService(users, codes, emailSender, cfg.AppName, cfg.OTPValidityMinutes, cfg.NotifyTimeout, otpOpts...)
	tokenSvc := service.NewTokenService(jwtMgr, sessions, users, cfg.TokenPepper, cfg.AccessTokenTTL, cfg.RefreshTokenTTL, cfg.RotateRefreshOnUse)
	authSvc := service.NewAuthService(users, otpSvc, tokenSvc)

	readiness := health.NewProbeRunner(2 * time.Second)
	readiness.Register("database", func(ctx context.Context) error {
		sqlDB, dbErr := db.DB()
		if dbErr != nil {
			return dbErr
		}
		return sqlDB.PingContext(ctx)
	})
	if redisClient != nil {
		readiness.Register("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	minute := time.Minute
	apiLimiter := middleware.NewRateLimiter(cfg.APIRateLimitRPM, minute, "api")
	authLimiter := middleware.NewRateLimiter(cfg.AuthRateLimitRPM, minute, "auth")
	otpLimiter := middleware.NewRateLimiter(cfg.OTPRateLimitRPM, minute, "otp")
	if redisClient != nil {
		// Shared counters keep limits meaningful across replicas.
		backend := middleware.NewRedisFixedWindowLimiter(redisClient, "ratelimit")
		apiLimiter = middleware.NewDistributedRateLimiter(backend, cfg.APIRateLimitRPM, minute, "api")
		authLimiter = middleware.NewDistributedRateLimiter(backend, cfg.AuthRateLimitRPM, minute, "auth")
		otpLimiter = middleware.NewDistributedRateLimiter(backend, cfg.OTPRateLimitRPM, minute, "otp")
	}

	mux := router.New(router.Dependencies{
		AuthHandler:    handler.NewAuthHandler(authSvc),
		JWTManager:     jwtMgr,
		Readiness:      readiness,
		CORSOrigins:    cfg.CORSOrigins,
		APILimiter:     apiLimiter.Middleware(),
		AuthLimiter:    authLimiter.Middleware(),
		OTPLimiter:     otpLimiter.Middleware(),
		EnableOTelHTTP: cfg.OTELTracesEnabled,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app.New(cfg, logger, server, runtime).Run(ctx)
}

func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DatabaseDriver {
	case "postgres":
		dialector = postgres.Open(cfg.DatabaseDSN)
	default:
		dialector = sqlite.Open(cfg.DatabaseDSN)
	}
	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}
