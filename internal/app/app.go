package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"otp-auth-backend/internal/config"
	"otp-auth-backend/internal/observability"
)

type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Server        *http.Server
	Observability *observability.Runtime
}

func New(cfg *config.Config, logger *slog.Logger, server *http.Server, runtime *observability.Runtime) *App {
	return &App{Config: cfg, Logger: logger, Server: server, Observability: runtime}
}

// Run serves until ctx is cancelled, then drains in-flight requests and
// flushes telemetry before returning.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.Info("http server starting", "addr", a.Server.Addr, "env", a.Config.AppEnv)
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.Logger.Info("http server shutting down")
		return a.Server.Shutdown(shutdownCtx)
	})

	err := g.Wait()

	if a.Observability != nil {
		flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if shutdownErr := a.Observability.Shutdown(flushCtx); shutdownErr != nil {
			a.Logger.Warn("telemetry shutdown", "error", shutdownErr)
		}
	}
	return err
}
