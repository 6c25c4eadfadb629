package auth_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/forge-club/forge/internal/auth"
	"github.com/forge-club/forge/internal/shared"
	_ "github.com/forge-club/forge/testing"
)

type stubRepo struct {
	user *auth.User
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

func newAuthRouter(t *testing.T, repo auth.Repository) (chi.Router, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	csrfManager := shared.NewCSRFManager("csrfsecret")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := auth.NewHandler(logger, auth.NewService(repo), sessionManager, csrfManager)

	r := chi.NewRouter()
	r.Route("/auth", handler.MountRoutes)
	return r, sessionManager
}

func activeUser(t *testing.T, password string) *auth.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return &auth.User{ID: "op-1", Email: "op@club.test", Name: "Operator", PasswordHash: string(hashed), IsActive: true}
}

func doLogin(t *testing.T, router http.Handler, sessionManager *shared.SessionManager, body string) (*httptest.ResponseRecorder, *shared.Session) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	sess, err := sessionManager.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	return res, sess
}

func TestLoginSuccess(t *testing.T) {
	router, sessionManager := newAuthRouter(t, &stubRepo{user: activeUser(t, "correcthorse")})

	res, sess := doLogin(t, router, sessionManager, `{"email":"op@club.test","password":"correcthorse"}`)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if sess.Principal() != "op-1" {
		t.Fatalf("expected principal op-1, got %q", sess.Principal())
	}
	if !strings.Contains(res.Body.String(), "csrfToken") {
		t.Fatalf("expected csrf token in body: %s", res.Body.String())
	}
}

func TestLoginWrongPassword(t *testing.T) {
	router, sessionManager := newAuthRouter(t, &stubRepo{user: activeUser(t, "correcthorse")})

	res, sess := doLogin(t, router, sessionManager, `{"email":"op@club.test","password":"wrong"}`)

	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
	if sess.Principal() != "" {
		t.Fatalf("principal must not be set on failed login")
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	router, sessionManager := newAuthRouter(t, &stubRepo{user: activeUser(t, "correcthorse")})

	res, _ := doLogin(t, router, sessionManager, `{"email":"nobody@club.test","password":"correcthorse"}`)

	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
}

func TestLoginInactiveUser(t *testing.T) {
	user := activeUser(t, "correcthorse")
	user.IsActive = false
	router, sessionManager := newAuthRouter(t, &stubRepo{user: user})

	res, _ := doLogin(t, router, sessionManager, `{"email":"op@club.test","password":"correcthorse"}`)

	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
}

func TestLoginRejectsMalformedBody(t *testing.T) {
	router, sessionManager := newAuthRouter(t, &stubRepo{})

	res, _ := doLogin(t, router, sessionManager, `{"email":`)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestCurrentSession(t *testing.T) {
	router, sessionManager := newAuthRouter(t, &stubRepo{user: activeUser(t, "correcthorse")})

	req := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	sess, err := sessionManager.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	sess.SetPrincipal("op-1")
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "op-1") {
		t.Fatalf("expected principal in body: %s", res.Body.String())
	}
}

func TestCurrentSessionAnonymous(t *testing.T) {
	router, sessionManager := newAuthRouter(t, &stubRepo{})

	req := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	sess, err := sessionManager.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
}
