// Package model はドメインモデルを定義する。
package model

import "time"

// テーマ設定の取りうる値。
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
	ThemeAuto  = "auto"
)

// User はサービス利用ユーザーを表す。
// PasswordHashとRefreshTokenはAPIレスポンスに含めてはならない。
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Avatar       string
	Preferences  Preferences
	RefreshToken string
	IsVerified   bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Preferences はユーザーの表示設定を表す。
type Preferences struct {
	Theme           string `json:"theme"`
	DefaultFolderID string `json:"default_folder_id,omitempty"`
}

// PendingRegistration はメール確認待ちの仮登録を表す。
// 耐久ストアには書き込まず、確認トークンをキーとして
// 一時ストアにTTL付きで保持する。
type PendingRegistration struct {
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// PendingIndex はメールアドレスをキーとした確認待ち登録の逆引きレコード。
// 同一メールアドレスの二重登録チェックに使用する。
type PendingIndex struct {
	VerificationToken string `json:"verification_token"`
}
