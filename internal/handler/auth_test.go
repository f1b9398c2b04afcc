package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/germed/backend/internal/cache"
	"github.com/germed/backend/internal/config"
	"github.com/germed/backend/internal/model"
	"github.com/germed/backend/internal/service"
)

type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User
}

func (f *memUserRepo) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user, ok := f.users[email]; ok {
		copied := *user
		return &copied, nil
	}
	return nil, pgx.ErrNoRows
}

func (f *memUserRepo) GetUserByID(ctx context.Context, userID string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.ID == userID {
			copied := *user
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *memUserRepo) CreateUser(ctx context.Context, id, email, passwordHash, region string, roles []string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user := &model.User{ID: id, Email: email, PasswordHash: passwordHash, Roles: roles, Region: region}
	f.users[email] = user
	copied := *user
	return &copied, nil
}

type memTokenStore struct {
	mu      sync.Mutex
	records map[string]model.TokenRecord
}

func (f *memTokenStore) Put(ctx context.Context, tokenID string, record model.TokenRecord, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[tokenID] = record
	return nil
}

func (f *memTokenStore) Get(ctx context.Context, tokenID string) (*model.TokenRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[tokenID]
	if !ok {
		return nil, cache.ErrNotFound
	}
	copied := record
	return &copied, nil
}

func (f *memTokenStore) Revoke(ctx context.Context, tokenID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[tokenID]
	if !ok {
		return cache.ErrNotFound
	}
	if record.Revoked {
		return cache.ErrAlreadyRevoked
	}
	record.Revoked = true
	f.records[tokenID] = record
	return nil
}

type noopGeo struct{}

func (noopGeo) RegionFromIP(ctx context.Context, ip string) string { return "unknown" }

func setupAuthRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	users := &memUserRepo{users: map[string]*model.User{}}
	hash, err := bcrypt.GenerateFromPassword([]byte("password1"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	if _, err := users.CreateUser(context.Background(), "user_1", "a@x.com", string(hash), "unknown", []string{"user"}); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	svc, err := service.NewAuthService(
		users,
		&memTokenStore{records: map[string]model.TokenRecord{}},
		noopGeo{},
		config.AuthConfig{JWTSecret: "test-secret", JWTAccessTTL: "15m", JWTRefreshTTL: "1h", AllowSignup: "true"},
		zap.NewNop(),
	)
	if err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}

	h := NewAuthHandler(svc, false, "")
	r := gin.New()
	auth := r.Group("/v1/auth")
	auth.POST("/register", h.Register)
	auth.POST("/login", h.Login)
	auth.POST("/refresh_token", h.Refresh)
	auth.POST("/logout", h.Logout)
	auth.GET("/config", h.Config)

	protected := r.Group("/v1")
	protected.Use(AuthMiddleware(svc))
	protected.GET("/auth/me", h.Me)
	return r
}

func postJSON(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func loginPair(t *testing.T, r *gin.Engine) model.TokenPairResponse {
	t.Helper()
	w := postJSON(r, "/v1/auth/login", `{"email":"a@x.com","password":"password1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	var pair model.TokenPairResponse
	if err := json.Unmarshal(w.Body.Bytes(), &pair); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return pair
}

func TestLoginEndpoint(t *testing.T) {
	r := setupAuthRouter(t)
	pair := loginPair(t, r)
	if pair.AccessToken == "" || pair.RefreshToken == "" || pair.ExpiresIn == 0 {
		t.Fatalf("incomplete token pair: %+v", pair)
	}
}

func TestLoginEndpointValidation(t *testing.T) {
	r := setupAuthRouter(t)
	w := postJSON(r, "/v1/auth/login", `{"email":"a@x.com"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestLoginEndpointGenericUnauthorized(t *testing.T) {
	r := setupAuthRouter(t)
	w := postJSON(r, "/v1/auth/login", `{"email":"a@x.com","password":"wrongpass"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	var resp model.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if resp.Error != "unauthorized" {
		t.Fatalf("auth failures must not leak detail, got %q", resp.Error)
	}
}

func TestRefreshEndpointRotation(t *testing.T) {
	r := setupAuthRouter(t)
	pair := loginPair(t, r)

	body := fmt.Sprintf(`{"refresh_token":%q}`, pair.RefreshToken)
	w := postJSON(r, "/v1/auth/refresh_token", body)
	if w.Code != http.StatusOK {
		t.Fatalf("refresh: expected 200, got %d (%s)", w.Code, w.Body.String())
	}

	// Reusing the rotated-out token is a generic 401.
	w = postJSON(r, "/v1/auth/refresh_token", body)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("reused refresh: expected 401, got %d", w.Code)
	}
}

func TestRefreshEndpointMissingToken(t *testing.T) {
	r := setupAuthRouter(t)
	w := postJSON(r, "/v1/auth/refresh_token", `{}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestLogoutEndpointAlways204(t *testing.T) {
	r := setupAuthRouter(t)
	pair := loginPair(t, r)

	for _, body := range []string{
		fmt.Sprintf(`{"refresh_token":%q}`, pair.RefreshToken),
		fmt.Sprintf(`{"refresh_token":%q}`, pair.RefreshToken), // already revoked
		`{"refresh_token":"not-a-jwt"}`,
		`{}`,
	} {
		w := postJSON(r, "/v1/auth/logout", body)
		if w.Code != http.StatusNoContent {
			t.Fatalf("logout with body %s: expected 204, got %d", body, w.Code)
		}
	}

	// A logged-out refresh token is dead.
	w := postJSON(r, "/v1/auth/refresh_token", fmt.Sprintf(`{"refresh_token":%q}`, pair.RefreshToken))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("refresh after logout: expected 401, got %d", w.Code)
	}
}

func TestProtectedRouteRequiresBearer(t *testing.T) {
	r := setupAuthRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	pair := loginPair(t, r)
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d (%s)", w.Code, w.Body.String())
	}

	var me model.AuthMeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &me); err != nil {
		t.Fatalf("decode me response: %v", err)
	}
	if me.UserID != "user_1" || me.Email != "a@x.com" {
		t.Fatalf("unexpected identity: %+v", me)
	}
}

func TestRegisterEndpointThenLogin(t *testing.T) {
	r := setupAuthRouter(t)

	w := postJSON(r, "/v1/auth/register", `{"email":"new@x.com","password":"password1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("register: expected 200, got %d (%s)", w.Code, w.Body.String())
	}

	w = postJSON(r, "/v1/auth/login", `{"email":"new@x.com","password":"password1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("login after register: expected 200, got %d", w.Code)
	}
}
