// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/noteit/internal/auth"
	"github.com/hitoshi/noteit/internal/model"
)

// jwtCookieName はリフレッシュトークンを保持するCookieの名前。
const jwtCookieName = "jwt"

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, username, email, password string) (*model.PendingRegistration, error)
	VerifyEmail(ctx context.Context, token string) (*model.User, error)
	Login(ctx context.Context, email, password string) (*auth.LoginResult, error)
	Logout(ctx context.Context, refreshToken string) error
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain       string
	CookieSecure       bool
	RefreshTokenMaxAge int // jwt Cookieの有効期間（秒）
}

// AuthHandler は登録・メール確認・ログイン関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

// registerRequest は登録リクエストのボディ。
type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// verifyEmailRequest はメール確認リクエストのボディ（POSTの場合）。
type verifyEmailRequest struct {
	Token string `json:"token"`
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// userResponse はユーザー情報のAPIレスポンス。
// パスワードハッシュとリフレッシュトークンは絶対に含めない。
type userResponse struct {
	ID          string            `json:"id"`
	Username    string            `json:"username"`
	Email       string            `json:"email"`
	Avatar      string            `json:"avatar,omitempty"`
	Preferences model.Preferences `json:"preferences"`
	IsVerified  bool              `json:"isVerified"`
	CreatedAt   string            `json:"createdAt"`
}

// Register は確認待ち登録を受け付ける。
// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}

	pending, err := h.service.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"message": "確認メールを送信しました。メール内のリンクから登録を完了してください。",
		"user": map[string]string{
			"username": pending.Username,
			"email":    pending.Email,
		},
	})
}

// VerifyEmail は確認トークンを検証してユーザー登録を確定する。
// GET /api/auth/verify-email?token=xxx
// POST /api/auth/verify-email {"token": "xxx"}
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" && r.Method == http.MethodPost {
		var req verifyEmailRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeInvalidBodyResponse(w)
			return
		}
		token = req.Token
	}

	user, err := h.service.VerifyEmail(r.Context(), token)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"message": "メールアドレスの確認が完了しました。ログインしてください。",
		"user":    toUserResponse(user),
	})
}

// Login は認証してアクセストークンとjwt Cookie（リフレッシュトークン）を発行する。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	// リフレッシュトークンはHttpOnly Cookieにのみ載せる
	http.SetCookie(w, &http.Cookie{
		Name:     jwtCookieName,
		Value:    result.RefreshToken,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.RefreshTokenMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteNoneMode,
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"accessToken": result.AccessToken,
		"user":        toUserResponse(result.User),
	})
}

// Logout は保存済みリフレッシュトークンを破棄してCookieをクリアする。
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(jwtCookieName)
	if err == nil && cookie.Value != "" {
		if logoutErr := h.service.Logout(r.Context(), cookie.Value); logoutErr != nil {
			slog.Error("failed to logout", slog.String("error", logoutErr.Error()))
			// ログアウト失敗してもCookieはクリアする
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     jwtCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteNoneMode,
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "ログアウトしました。",
	})
}

// --- ヘルパー関数 ---

// toUserResponse はmodel.UserからAPIレスポンスに変換する。
func toUserResponse(user *model.User) userResponse {
	return userResponse{
		ID:          user.ID,
		Username:    user.Username,
		Email:       user.Email,
		Avatar:      user.Avatar,
		Preferences: user.Preferences,
		IsVerified:  user.IsVerified,
		CreatedAt:   user.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

// apiErrorResponse は統一エラーフォーマットのレスポンスボディ。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// writeInvalidBodyResponse はリクエストボディ解析失敗のレスポンスを書き込む。
func writeInvalidBodyResponse(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusBadRequest,
		model.NewValidationError("リクエストボディの解析に失敗しました。"))
}

// writeUnauthorizedResponse は認証切れのレスポンスを書き込む。
func writeUnauthorizedResponse(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeValidation, model.ErrCodeFolderNotEmpty, model.ErrCodePasswordMismatch:
		return http.StatusBadRequest
	case model.ErrCodeUnauthorized, model.ErrCodeTokenExpired, model.ErrCodeTokenInvalid:
		return http.StatusUnauthorized
	case model.ErrCodeEmailNotVerified:
		return http.StatusForbidden
	case model.ErrCodeTokenNotFound, model.ErrCodeUserNotFound,
		model.ErrCodeNoteNotFound, model.ErrCodeVersionNotFound,
		model.ErrCodeFolderNotFound, model.ErrCodeTagNotFound:
		return http.StatusNotFound
	case model.ErrCodeEmailInUse, model.ErrCodeDuplicateName:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
