package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"auth-api/internal/domain"
	"auth-api/internal/repository"
	"auth-api/internal/service"
)

type mockUserRepo struct {
	mu           sync.Mutex
	usersByID    map[string]domain.User
	usersByEmail map[string]string
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		usersByID:    make(map[string]domain.User),
		usersByEmail: make(map[string]string),
	}
}

func (m *mockUserRepo) Create(_ context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.usersByEmail[user.Email]; exists {
		return repository.ErrDuplicateEmail
	}
	m.usersByID[user.ID] = user
	m.usersByEmail[user.Email] = user.ID
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.usersByID[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return user, nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.usersByEmail[email]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return m.usersByID[id], nil
}

func (m *mockUserRepo) SetResetCode(_ context.Context, email, code string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.usersByEmail[email]
	if !ok {
		return 0, nil
	}
	user := m.usersByID[id]
	user.PasswordResetCode = code
	m.usersByID[id] = user
	return 1, nil
}

func (m *mockUserRepo) CompletePasswordReset(_ context.Context, email, code, passwordHash string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.usersByEmail[email]
	if !ok {
		return 0, nil
	}
	user := m.usersByID[id]
	if user.PasswordResetCode == "" || user.PasswordResetCode != code {
		return 0, nil
	}
	user.PasswordHash = passwordHash
	user.PasswordResetCode = ""
	m.usersByID[id] = user
	return 1, nil
}

type mockEmailSender struct {
	sent chan string
}

func newMockEmailSender() *mockEmailSender {
	return &mockEmailSender{sent: make(chan string, 8)}
}

func (m *mockEmailSender) SendPasswordReset(_ context.Context, _ string, _ string, code string) error {
	m.sent <- code
	return nil
}

func newTestRouter(repo repository.UserRepository, sender *mockEmailSender) (*gin.Engine, *service.TokenService) {
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()
	tokenSvc := service.NewTokenService("secret", 7*24*time.Hour)
	hasher := service.NewPasswordHasher(bcrypt.MinCost)
	authSvc := service.NewAuthService(logger, repo, sender, tokenSvc, hasher)
	handler := NewAuthHandler(logger, authSvc)
	return NewRouter(logger, handler, tokenSvc, nil), tokenSvc
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestAuthHandlerRegister_Created(t *testing.T) {
	r, _ := newTestRouter(newMockUserRepo(), newMockEmailSender())

	rec := doJSON(t, r, http.MethodPost, "/auth/register", gin.H{
		"name":     "Ana",
		"email":    "ana@x.com",
		"password": "secret1",
	}, nil)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAuthHandlerRegister_ShortPassword(t *testing.T) {
	r, _ := newTestRouter(newMockUserRepo(), newMockEmailSender())

	rec := doJSON(t, r, http.MethodPost, "/auth/register", gin.H{
		"name":     "Ana",
		"email":    "ana@x.com",
		"password": "12345",
	}, nil)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAuthHandlerRegister_DuplicateEmail(t *testing.T) {
	r, _ := newTestRouter(newMockUserRepo(), newMockEmailSender())

	body := gin.H{"name": "Ana", "email": "ana@x.com", "password": "secret1"}
	if rec := doJSON(t, r, http.MethodPost, "/auth/register", body, nil); rec.Code != http.StatusCreated {
		t.Fatalf("first register: expected 201, got %d", rec.Code)
	}
	rec := doJSON(t, r, http.MethodPost, "/auth/register", body, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestAuthHandlerLogin_ReturnsTokenWithoutHash(t *testing.T) {
	r, tokenSvc := newTestRouter(newMockUserRepo(), newMockEmailSender())

	doJSON(t, r, http.MethodPost, "/auth/register", gin.H{
		"name": "Ana", "email": "ana@x.com", "password": "secret1",
	}, nil)

	rec := doJSON(t, r, http.MethodPost, "/auth/login", gin.H{
		"email": "ana@x.com", "password": "secret1",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		User  map[string]any `json:"user"`
		Token string         `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Token == "" {
		t.Fatalf("expected token in response")
	}
	if _, leaked := resp.User["password_hash"]; leaked {
		t.Fatalf("password hash leaked across the boundary")
	}

	claims, err := tokenSvc.Parse(resp.Token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.UserID != resp.User["id"] {
		t.Fatalf("expected token subject %v, got %s", resp.User["id"], claims.UserID)
	}
}

func TestAuthHandlerLogin_WrongPassword(t *testing.T) {
	r, _ := newTestRouter(newMockUserRepo(), newMockEmailSender())

	doJSON(t, r, http.MethodPost, "/auth/register", gin.H{
		"name": "Ana", "email": "ana@x.com", "password": "secret1",
	}, nil)

	rec := doJSON(t, r, http.MethodPost, "/auth/login", gin.H{
		"email": "ana@x.com", "password": "wrong",
	}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAuthHandlerLogin_UnknownEmail(t *testing.T) {
	r, _ := newTestRouter(newMockUserRepo(), newMockEmailSender())

	rec := doJSON(t, r, http.MethodPost, "/auth/login", gin.H{
		"email": "nobody@x.com", "password": "secret1",
	}, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestAuthHandlerLogout(t *testing.T) {
	r, _ := newTestRouter(newMockUserRepo(), newMockEmailSender())

	rec := doJSON(t, r, http.MethodPost, "/auth/logout", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAuthHandlerCurrentUser(t *testing.T) {
	r, _ := newTestRouter(newMockUserRepo(), newMockEmailSender())

	doJSON(t, r, http.MethodPost, "/auth/register", gin.H{
		"name": "Ana", "email": "ana@x.com", "password": "secret1",
	}, nil)
	login := doJSON(t, r, http.MethodPost, "/auth/login", gin.H{
		"email": "ana@x.com", "password": "secret1",
	}, nil)

	var loginResp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(login.Body.Bytes(), &loginResp); err != nil {
		t.Fatalf("decode login: %v", err)
	}

	rec := doJSON(t, r, http.MethodGet, "/users/me", nil, map[string]string{
		"Authorization": "Bearer " + loginResp.Token,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		User map[string]any `json:"user"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.User["email"] != "ana@x.com" {
		t.Fatalf("expected ana@x.com, got %v", resp.User["email"])
	}
	if _, leaked := resp.User["password_hash"]; leaked {
		t.Fatalf("password hash leaked across the boundary")
	}
}

func TestAuthHandlerCurrentUser_MissingToken(t *testing.T) {
	r, _ := newTestRouter(newMockUserRepo(), newMockEmailSender())

	rec := doJSON(t, r, http.MethodGet, "/users/me", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAuthHandlerForgotPassword_UnknownEmail(t *testing.T) {
	r, _ := newTestRouter(newMockUserRepo(), newMockEmailSender())

	rec := doJSON(t, r, http.MethodPost, "/auth/forgot-password", gin.H{
		"email": "nobody@x.com",
	}, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestAuthHandlerResetFlow(t *testing.T) {
	repo := newMockUserRepo()
	sender := newMockEmailSender()
	r, _ := newTestRouter(repo, sender)

	doJSON(t, r, http.MethodPost, "/auth/register", gin.H{
		"name": "Ana", "email": "ana@x.com", "password": "secret1",
	}, nil)

	rec := doJSON(t, r, http.MethodPost, "/auth/forgot-password", gin.H{
		"email": "ana@x.com",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("forgot password: expected 200, got %d", rec.Code)
	}

	var code string
	select {
	case code = <-sender.sent:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected reset email dispatched")
	}

	rec = doJSON(t, r, http.MethodPost, "/auth/reset-password", gin.H{
		"email": "ana@x.com", "code": code, "new_password": "newpass9",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("reset password: expected 200, got %d", rec.Code)
	}

	login := doJSON(t, r, http.MethodPost, "/auth/login", gin.H{
		"email": "ana@x.com", "password": "newpass9",
	}, nil)
	if login.Code != http.StatusOK {
		t.Fatalf("expected login with new password, got %d", login.Code)
	}
}

func TestAuthHandlerResetPassword_MismatchStillOK(t *testing.T) {
	r, _ := newTestRouter(newMockUserRepo(), newMockEmailSender())

	rec := doJSON(t, r, http.MethodPost, "/auth/reset-password", gin.H{
		"email": "nobody@x.com", "code": "K3F9QZ", "new_password": "newpass9",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on mismatch, got %d", rec.Code)
	}
}
