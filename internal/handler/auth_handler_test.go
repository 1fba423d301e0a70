package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/aiportal/internal/middleware"
	"github.com/hitoshi/aiportal/internal/model"
)

// --- テストヘルパー ---

// withUserID は認証済みユーザーIDをリクエストコンテキストに注入する。
func withUserID(req *http.Request, userID int64) *http.Request {
	return req.WithContext(middleware.ContextWithUserID(req.Context(), userID))
}

// decodeErrorBody はレスポンスボディを統一エラーフォーマットとしてデコードする。
func decodeErrorBody(t *testing.T, resp *http.Response) apiErrorResponse {
	t.Helper()
	var body apiErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body
}

// --- モック定義 ---

// mockAuthService はAuthServiceInterfaceのモック実装。
type mockAuthService struct {
	registerFn    func(ctx context.Context, email, password string) (*model.User, error)
	loginFn       func(ctx context.Context, email, password string) (string, error)
	currentUserFn func(ctx context.Context, userID int64) (*model.User, error)
}

func (m *mockAuthService) Register(ctx context.Context, email, password string) (*model.User, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, email, password)
	}
	return nil, nil
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (string, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return "", nil
}

func (m *mockAuthService) CurrentUser(ctx context.Context, userID int64) (*model.User, error) {
	if m.currentUserFn != nil {
		return m.currentUserFn(ctx, userID)
	}
	return nil, nil
}

// --- POST /api/auth/register テスト ---

func TestAuthHandler_Register_Success(t *testing.T) {
	svc := &mockAuthService{
		registerFn: func(ctx context.Context, email, password string) (*model.User, error) {
			if email != "alice@example.com" {
				t.Errorf("email = %q, want %q", email, "alice@example.com")
			}
			if password != "correct horse battery" {
				t.Errorf("password = %q, want %q", password, "correct horse battery")
			}
			return &model.User{
				ID:           42,
				Email:        email,
				PasswordHash: "$2a$10$secret",
				Role:         model.RoleUser,
				CreatedAt:    time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC),
			}, nil
		},
	}

	h := NewAuthHandler(svc)

	body := `{"email":"alice@example.com","password":"correct horse battery"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Register(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	var got userResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.ID != 42 {
		t.Errorf("id = %d, want 42", got.ID)
	}
	if got.Email != "alice@example.com" {
		t.Errorf("email = %q, want %q", got.Email, "alice@example.com")
	}
	if got.Role != "user" {
		t.Errorf("role = %q, want %q", got.Role, "user")
	}
}

// パスワードハッシュがレスポンスに漏れないことを検証する。
func TestAuthHandler_Register_ResponseOmitsPasswordHash(t *testing.T) {
	svc := &mockAuthService{
		registerFn: func(ctx context.Context, email, password string) (*model.User, error) {
			return &model.User{ID: 1, Email: email, PasswordHash: "$2a$10$secret", Role: model.RoleUser}, nil
		},
	}

	h := NewAuthHandler(svc)

	body := `{"email":"a@example.com","password":"longenoughpassword"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Register(w, req)

	raw := w.Body.String()
	if strings.Contains(raw, "secret") || strings.Contains(raw, "password") {
		t.Errorf("response leaks password material: %s", raw)
	}
}

func TestAuthHandler_Register_InvalidJSON(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader("{not json"))
	w := httptest.NewRecorder()

	h.Register(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	body := decodeErrorBody(t, resp)
	if body.Code != model.ErrCodeInvalidRequest {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeInvalidRequest)
	}
}

func TestAuthHandler_Register_DuplicateEmail(t *testing.T) {
	svc := &mockAuthService{
		registerFn: func(ctx context.Context, email, password string) (*model.User, error) {
			return nil, model.NewDuplicateEmailError()
		},
	}

	h := NewAuthHandler(svc)

	body := `{"email":"dup@example.com","password":"longenoughpassword"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Register(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}

	if got := decodeErrorBody(t, resp).Code; got != model.ErrCodeDuplicateEmail {
		t.Errorf("code = %q, want %q", got, model.ErrCodeDuplicateEmail)
	}
}

func TestAuthHandler_Register_WeakPassword(t *testing.T) {
	svc := &mockAuthService{
		registerFn: func(ctx context.Context, email, password string) (*model.User, error) {
			return nil, model.NewWeakPasswordError(8)
		},
	}

	h := NewAuthHandler(svc)

	body := `{"email":"a@example.com","password":"short"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Register(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	if got := decodeErrorBody(t, resp).Code; got != model.ErrCodeWeakPassword {
		t.Errorf("code = %q, want %q", got, model.ErrCodeWeakPassword)
	}
}

// --- POST /api/auth/login テスト ---

func TestAuthHandler_Login_Success(t *testing.T) {
	svc := &mockAuthService{
		loginFn: func(ctx context.Context, email, password string) (string, error) {
			if email != "alice@example.com" {
				t.Errorf("email = %q, want %q", email, "alice@example.com")
			}
			if password != "correct horse battery" {
				t.Errorf("password = %q, want %q", password, "correct horse battery")
			}
			return "signed.jwt.token", nil
		},
	}

	h := NewAuthHandler(svc)

	form := url.Values{}
	form.Set("username", "alice@example.com")
	form.Set("password", "correct horse battery")
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()

	h.Login(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var got loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.AccessToken != "signed.jwt.token" {
		t.Errorf("access_token = %q, want %q", got.AccessToken, "signed.jwt.token")
	}
	if got.TokenType != "bearer" {
		t.Errorf("token_type = %q, want %q", got.TokenType, "bearer")
	}
}

func TestAuthHandler_Login_MissingFields(t *testing.T) {
	tests := []struct {
		name string
		form url.Values
	}{
		{"username_missing", url.Values{"password": {"secretpassword"}}},
		{"password_missing", url.Values{"username": {"a@example.com"}}},
		{"both_missing", url.Values{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewAuthHandler(&mockAuthService{
				loginFn: func(ctx context.Context, email, password string) (string, error) {
					t.Error("Login should not be called")
					return "", nil
				},
			})

			req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(tt.form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			w := httptest.NewRecorder()

			h.Login(w, req)

			resp := w.Result()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
			}
		})
	}
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	svc := &mockAuthService{
		loginFn: func(ctx context.Context, email, password string) (string, error) {
			return "", model.NewInvalidCredentialsError()
		},
	}

	h := NewAuthHandler(svc)

	form := url.Values{}
	form.Set("username", "alice@example.com")
	form.Set("password", "wrongpassword")
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()

	h.Login(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}

	if got := decodeErrorBody(t, resp).Code; got != model.ErrCodeInvalidCredentials {
		t.Errorf("code = %q, want %q", got, model.ErrCodeInvalidCredentials)
	}
}

// --- GET /api/auth/me テスト ---

func TestAuthHandler_Me_Success(t *testing.T) {
	svc := &mockAuthService{
		currentUserFn: func(ctx context.Context, userID int64) (*model.User, error) {
			if userID != 42 {
				t.Errorf("userID = %d, want 42", userID)
			}
			return &model.User{ID: 42, Email: "alice@example.com", Role: model.RoleAdmin}, nil
		},
	}

	h := NewAuthHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req = withUserID(req, 42)
	w := httptest.NewRecorder()

	h.Me(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var got userResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.ID != 42 {
		t.Errorf("id = %d, want 42", got.ID)
	}
	if got.Role != "admin" {
		t.Errorf("role = %q, want %q", got.Role, "admin")
	}
}

func TestAuthHandler_Me_NoUserID_ReturnsUnauthorized(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{})

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	// ユーザーIDを注入しない
	w := httptest.NewRecorder()

	h.Me(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}

// トークンが有効でもユーザーがDBから削除済みなら401を返す。
func TestAuthHandler_Me_DeletedUser(t *testing.T) {
	svc := &mockAuthService{
		currentUserFn: func(ctx context.Context, userID int64) (*model.User, error) {
			return nil, model.NewUnauthorizedError()
		},
	}

	h := NewAuthHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req = withUserID(req, 99)
	w := httptest.NewRecorder()

	h.Me(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}
