package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/noteit/internal/auth"
)

func newTestTokenService(t *testing.T) *auth.TokenService {
	t.Helper()
	return auth.NewTokenService(
		[]byte("access-secret"),
		[]byte("refresh-secret"),
		auth.TokenServiceConfig{
			AccessTokenTTL:  5 * time.Minute,
			RefreshTokenTTL: 7 * 24 * time.Hour,
			VerificationTTL: 1 * time.Hour,
		},
	)
}

// TestMiddlewareChain_Auth_ValidToken は
// 認証ミドルウェアで有効なアクセストークン付きリクエストが通ることを検証する。
func TestMiddlewareChain_Auth_ValidToken(t *testing.T) {
	tokens := newTestTokenService(t)
	accessToken, err := tokens.IssueAccessToken("user-chain-test")
	if err != nil {
		t.Fatalf("IssueAccessToken() error = %v", err)
	}

	authMW := NewAuthMiddleware(tokens)

	var capturedUserID string
	handler := authMW(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, _ := UserIDFromContext(r.Context())
		capturedUserID = userID
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/notes", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if capturedUserID != "user-chain-test" {
		t.Errorf("userID = %q, want %q", capturedUserID, "user-chain-test")
	}
}

// TestMiddlewareChain_Auth_NoToken_Returns401 は
// Authorizationヘッダーがない場合に401が返されることを検証する。
func TestMiddlewareChain_Auth_NoToken_Returns401(t *testing.T) {
	tokens := newTestTokenService(t)
	authMW := NewAuthMiddleware(tokens)

	handler := authMW(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/notes", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

// TestMiddlewareChain_Auth_InvalidToken_Returns401 は
// 不正なトークンの場合に401が返されることを検証する。
func TestMiddlewareChain_Auth_InvalidToken_Returns401(t *testing.T) {
	tokens := newTestTokenService(t)
	authMW := NewAuthMiddleware(tokens)

	handler := authMW(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/notes", nil)
	req.Header.Set("Authorization", "Bearer not-a-valid-token")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

// TestMiddlewareChain_Auth_RefreshTokenRejected は
// リフレッシュトークンをアクセストークンとして使えないことを検証する。
func TestMiddlewareChain_Auth_RefreshTokenRejected(t *testing.T) {
	tokens := newTestTokenService(t)
	refreshToken, err := tokens.IssueRefreshToken("user-refresh-test")
	if err != nil {
		t.Fatalf("IssueRefreshToken() error = %v", err)
	}

	authMW := NewAuthMiddleware(tokens)

	handler := authMW(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/notes", nil)
	req.Header.Set("Authorization", "Bearer "+refreshToken)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

// TestMiddlewareChain_Auth_MalformedHeader_Returns401 は
// Bearerスキーム以外のAuthorizationヘッダーが拒否されることを検証する。
func TestMiddlewareChain_Auth_MalformedHeader_Returns401(t *testing.T) {
	tokens := newTestTokenService(t)
	authMW := NewAuthMiddleware(tokens)

	handler := authMW(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	for _, header := range []string{"Basic dXNlcjpwYXNz", "Bearer", "token-without-scheme"} {
		req := httptest.NewRequest(http.MethodGet, "/api/notes", nil)
		req.Header.Set("Authorization", header)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		if w.Result().StatusCode != http.StatusUnauthorized {
			t.Errorf("header %q: status = %d, want %d", header, w.Result().StatusCode, http.StatusUnauthorized)
		}
	}
}
