package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"otp-auth-backend/internal/domain"
	"otp-auth-backend/internal/health"
	"otp-auth-backend/internal/http/handler"
	"otp-auth-backend/internal/http/router"
	"otp-auth-backend/internal/notify"
	"otp-auth-backend/internal/repository"
	"otp-auth-backend/internal/security"
	"otp-auth-backend/internal/service"
)

type testStack struct {
	BaseURL string
	Client  *http.Client
	DB      *gorm.DB
	Users   repository.UserRepository
	JWTMgr  *security.JWTManager
}

type stackOptions struct {
	rotateRefresh bool
	otpLimiter    func(http.Handler) http.Handler
}

// newTestStack boots the full HTTP stack on sqlite, the same wiring the
// server entrypoint performs, minus external transports.
func newTestStack(t *testing.T, opts stackOptions) *testStack {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.User{}, &domain.OTPCode{}, &domain.Session{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	users := repository.NewUserRepository(db)
	codes := repository.NewOTPRepository(db)
	sessions := repository.NewSessionRepository(db)

	jwtMgr := security.NewJWTManager("issuer-it", "audience-it", "it-access-secret", "it-refresh-secret")
	otpSvc := service.NewOTPService(users, codes, notify.LogEmailSender{}, "Test App", 10, time.Second)
	tokenSvc := service.NewTokenService(jwtMgr, sessions, users, "it-pepper", time.Minute, time.Hour, opts.rotateRefresh)
	authSvc := service.NewAuthService(users, otpSvc, tokenSvc)

	readiness := health.NewProbeRunner(time.Second)
	readiness.Register("database", func(ctx context.Context) error {
		sqlDB, dbErr := db.DB()
		if dbErr != nil {
			return dbErr
		}
		return sqlDB.PingContext(ctx)
	})

	mux := router.New(router.Dependencies{
		AuthHandler: handler.NewAuthHandler(authSvc),
		JWTManager:  jwtMgr,
		Readiness:   readiness,
		OTPLimiter:  opts.otpLimiter,
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &testStack{
		BaseURL: srv.URL,
		Client:  srv.Client(),
		DB:      db,
		Users:   users,
		JWTMgr:  jwtMgr,
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Status  int             `json:"status"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("decode envelope from %s: %v\n%s", url, err, raw)
		}
	}
	return resp, env
}

func (s *testStack) seedUser(t *testing.T, email, password string) *domain.User {
	t.Helper()
	hash, err := security.HashPassword(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := &domain.User{
		Email:        email,
		FirstName:    "Inte",
		LastName:     "Gration",
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := s.Users.Create(context.Background(), user); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

// latestCodeFor reads the newest issued code straight from storage; the HTTP
// surface never exposes it.
func (s *testStack) latestCodeFor(t *testing.T, userID uint) string {
	t.Helper()
	var row domain.OTPCode
	err := s.DB.Where("user_id = ?", userID).Order("created_at DESC, id DESC").First(&row).Error
	if err != nil {
		t.Fatalf("load issued code: %v", err)
	}
	return row.Code
}
