// Package auth は登録・メール確認・ログインの認証フローを提供する。
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// トークン検証の失敗種別。
// 期限切れと署名・構造の不正は呼び出し側で区別して扱う。
var (
	// ErrTokenExpired はトークンが有効期限を過ぎていることを示す。
	ErrTokenExpired = errors.New("token is expired")
	// ErrTokenInvalid は署名または構造が不正であることを示す。
	ErrTokenInvalid = errors.New("token is invalid")
)

// AccessClaims はアクセストークンとリフレッシュトークンのクレーム。
type AccessClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// VerificationClaims はメール確認トークンのクレーム。
// 確認待ち登録レコードとの突合に使用する。
type VerificationClaims struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// TokenServiceConfig はトークンサービスの設定。
type TokenServiceConfig struct {
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	VerificationTTL time.Duration
}

// TokenService は署名付きトークンの発行と検証を提供する。
// 秘密鍵は2系統: アクセス用（アクセス+確認トークン）とリフレッシュ用。
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	config        TokenServiceConfig
}

// NewTokenService はTokenServiceを生成する。
func NewTokenService(accessSecret, refreshSecret []byte, config TokenServiceConfig) *TokenService {
	return &TokenService{
		accessSecret:  accessSecret,
		refreshSecret: refreshSecret,
		config:        config,
	}
}

// IssueAccessToken はユーザーIDを埋め込んだアクセストークンを発行する。
func (ts *TokenService) IssueAccessToken(userID string) (string, error) {
	return ts.signAccessClaims(userID, ts.accessSecret, ts.config.AccessTokenTTL)
}

// IssueRefreshToken はユーザーIDを埋め込んだリフレッシュトークンを発行する。
func (ts *TokenService) IssueRefreshToken(userID string) (string, error) {
	return ts.signAccessClaims(userID, ts.refreshSecret, ts.config.RefreshTokenTTL)
}

// IssueVerificationToken はメール確認トークンを発行する。
// 確認トークンはアクセストークンと同じ秘密鍵で署名する。
func (ts *TokenService) IssueVerificationToken(email, username string) (string, error) {
	now := time.Now()
	claims := &VerificationClaims{
		Email:    email,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.config.VerificationTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ts.accessSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign verification token: %w", err)
	}
	return signed, nil
}

// ValidateAccessToken はアクセストークンを検証してクレームを返す。
func (ts *TokenService) ValidateAccessToken(tokenString string) (*AccessClaims, error) {
	return ts.parseAccessClaims(tokenString, ts.accessSecret)
}

// ValidateRefreshToken はリフレッシュトークンを検証してクレームを返す。
func (ts *TokenService) ValidateRefreshToken(tokenString string) (*AccessClaims, error) {
	return ts.parseAccessClaims(tokenString, ts.refreshSecret)
}

// ValidateVerificationToken はメール確認トークンを検証してクレームを返す。
// 期限切れはErrTokenExpired、署名・構造の不正はErrTokenInvalidを返す。
func (ts *TokenService) ValidateVerificationToken(tokenString string) (*VerificationClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &VerificationClaims{}, ts.keyFunc(ts.accessSecret))
	if err != nil {
		return nil, classifyTokenError(err)
	}

	claims, ok := token.Claims.(*VerificationClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// signAccessClaims はユーザーIDクレームを指定の秘密鍵で署名する。
func (ts *TokenService) signAccessClaims(userID string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &AccessClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// parseAccessClaims はトークンを検証しAccessClaimsを返す。
func (ts *TokenService) parseAccessClaims(tokenString string, secret []byte) (*AccessClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, ts.keyFunc(secret))
	if err != nil {
		return nil, classifyTokenError(err)
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// keyFunc はHMAC以外の署名アルゴリズムを拒否する鍵解決関数を返す。
func (ts *TokenService) keyFunc(secret []byte) jwt.Keyfunc {
	return func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	}
}

// classifyTokenError はjwtライブラリのエラーを期限切れ/不正の2種別に分類する。
func classifyTokenError(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return ErrTokenExpired
	}
	return ErrTokenInvalid
}
