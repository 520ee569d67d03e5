package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"otp-auth-backend/internal/health"
	"otp-auth-backend/internal/http/handler"
	"otp-auth-backend/internal/http/middleware"
	"otp-auth-backend/internal/http/response"
	"otp-auth-backend/internal/security"
)

const maxBodyBytes = 1 << 20

// Dependencies carries everything the router mounts. Rate limiters are
// middleware factories so callers choose local or Redis-backed windows.
type Dependencies struct {
	AuthHandler *handler.AuthHandler
	JWTManager  *security.JWTManager
	Readiness   *health.ProbeRunner

	CORSOrigins []string

	APILimiter  func(http.Handler) http.Handler
	AuthLimiter func(http.Handler) http.Handler
	OTPLimiter  func(http.Handler) http.Handler

	EnableOTelHTTP bool
}

func New(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.StructuredRequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(deps.CORSOrigins))
	r.Use(middleware.BodyLimit(maxBodyBytes))
	r.Use(chimiddleware.Timeout(30 * time.Second))
	if deps.APILimiter != nil {
		r.Use(deps.APILimiter)
	}

	r.Get("/health/live", func(w http.ResponseWriter, req *http.Request) {
		response.JSON(w, req, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		ready, checks := deps.Readiness.Ready(req.Context())
		status := http.StatusOK
		state := "ready"
		if !ready {
			status = http.StatusServiceUnavailable
			state = "degraded"
		}
		response.JSON(w, req, status, map[string]any{"status": state, "checks": checks})
	})

	r.Route("/auth", func(r chi.Router) {
		withAuthLimit := func(r chi.Router) chi.Router {
			if deps.AuthLimiter != nil {
				return r.With(deps.AuthLimiter)
			}
			return r
		}
		withOTPLimit := func(r chi.Router) chi.Router {
			if deps.OTPLimiter != nil {
				return r.With(deps.OTPLimiter)
			}
			return r
		}

		withAuthLimit(r).Post("/login/", deps.AuthHandler.Login)
		withAuthLimit(r).Post("/token/refresh/", deps.AuthHandler.Refresh)
		withAuthLimit(r).Post("/token/verify/", deps.AuthHandler.VerifyToken)
		withOTPLimit(r).Post("/otp/send/", deps.AuthHandler.SendOTP)
		withAuthLimit(r).Post("/otp/login/", deps.AuthHandler.LoginOTP)
		withAuthLimit(r).Post("/logout/", deps.AuthHandler.Logout)
		withAuthLimit(r).With(middleware.AuthMiddleware(deps.JWTManager)).
			Post("/logout_all/", deps.AuthHandler.LogoutAll)
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		response.Error(w, req, http.StatusNotFound, "NOT_FOUND", "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		response.Error(w, req, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
	})

	if deps.EnableOTelHTTP {
		return otelhttp.NewHandler(r, "http.server")
	}
	return r
}
