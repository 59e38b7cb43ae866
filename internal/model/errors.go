// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, note, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeEmailInUse       = "EMAIL_ALREADY_IN_USE"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeEmailNotVerified = "EMAIL_NOT_VERIFIED"
	ErrCodeTokenExpired     = "TOKEN_EXPIRED"
	ErrCodeTokenInvalid     = "TOKEN_INVALID"
	ErrCodeTokenNotFound    = "TOKEN_NOT_FOUND"
	ErrCodeUserNotFound     = "USER_NOT_FOUND"
	ErrCodeNoteNotFound     = "NOTE_NOT_FOUND"
	ErrCodeVersionNotFound  = "VERSION_NOT_FOUND"
	ErrCodeFolderNotFound   = "FOLDER_NOT_FOUND"
	ErrCodeFolderNotEmpty   = "FOLDER_NOT_EMPTY"
	ErrCodeTagNotFound      = "TAG_NOT_FOUND"
	ErrCodeDuplicateName    = "DUPLICATE_NAME"
	ErrCodePasswordMismatch = "PASSWORD_MISMATCH"
	ErrCodeInternal         = "INTERNAL_ERROR"
)

// NewValidationError は入力不備エラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewEmailInUseError はメールアドレス重複エラーを生成する。
// 登録済みユーザーと確認待ち登録のどちらの場合も同じエラーを返す。
func NewEmailInUseError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailInUse,
		Message:  "このメールアドレスは既に使用されています。",
		Category: "auth",
		Action:   "別のメールアドレスを使用するか、ログインしてください。",
	}
}

// NewUnauthorizedError は認証失敗エラーを生成する。
// ユーザー不存在とパスワード不一致を区別しない（アカウント列挙対策）。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewEmailNotVerifiedError はメール未確認エラーを生成する。
// 確認待ち登録が存在する場合に限り、未確認であることを意図的に開示する。
func NewEmailNotVerifiedError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailNotVerified,
		Message:  "メールアドレスが確認されていません。",
		Category: "auth",
		Action:   "登録時に送信された確認メールのリンクをクリックしてください。",
	}
}

// NewTokenExpiredError は確認トークン期限切れエラーを生成する。
func NewTokenExpiredError() *APIError {
	return &APIError{
		Code:     ErrCodeTokenExpired,
		Message:  "確認トークンの有効期限が切れています。",
		Category: "auth",
		Action:   "再度登録して新しい確認リンクを受け取ってください。",
	}
}

// NewTokenInvalidError は不正トークンエラーを生成する。
func NewTokenInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeTokenInvalid,
		Message:  "トークンが不正です。",
		Category: "auth",
		Action:   "確認メールのリンクを正しくコピーしているか確認してください。",
	}
}

// NewTokenNotFoundError は確認待ち登録が見つからない場合のエラーを生成する。
// トークンが使用済み、または期限切れで破棄された場合に返る。
func NewTokenNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeTokenNotFound,
		Message:  "無効または期限切れの確認トークンです。",
		Category: "auth",
		Action:   "再度登録して新しい確認リンクを受け取ってください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewPasswordMismatchError は現在のパスワード不一致エラーを生成する。
func NewPasswordMismatchError() *APIError {
	return &APIError{
		Code:     ErrCodePasswordMismatch,
		Message:  "現在のパスワードが正しくありません。",
		Category: "auth",
		Action:   "現在のパスワードを確認して再度お試しください。",
	}
}

// NewNoteNotFoundError はノート未検出エラーを生成する。
func NewNoteNotFoundError(noteID string) *APIError {
	return &APIError{
		Code:     ErrCodeNoteNotFound,
		Message:  fmt.Sprintf("指定されたノートが見つかりません: %s", noteID),
		Category: "note",
		Action:   "ノートIDを確認してください。",
	}
}

// NewVersionNotFoundError はノートバージョン未検出エラーを生成する。
func NewVersionNotFoundError(version int) *APIError {
	return &APIError{
		Code:     ErrCodeVersionNotFound,
		Message:  fmt.Sprintf("指定されたバージョンが見つかりません: %d", version),
		Category: "note",
		Action:   "バージョン番号を確認してください。",
	}
}

// NewFolderNotFoundError はフォルダ未検出エラーを生成する。
func NewFolderNotFoundError(folderID string) *APIError {
	return &APIError{
		Code:     ErrCodeFolderNotFound,
		Message:  fmt.Sprintf("指定されたフォルダが見つかりません: %s", folderID),
		Category: "note",
		Action:   "フォルダIDを確認してください。",
	}
}

// NewFolderNotEmptyError はノートが残っているフォルダの削除エラーを生成する。
func NewFolderNotEmptyError(noteCount int) *APIError {
	return &APIError{
		Code:     ErrCodeFolderNotEmpty,
		Message:  fmt.Sprintf("ノートが残っているフォルダは削除できません（%d件）。", noteCount),
		Category: "note",
		Action:   "フォルダ内のノートを移動または削除してから再度お試しください。",
	}
}

// NewTagNotFoundError はタグ未検出エラーを生成する。
func NewTagNotFoundError(tagID string) *APIError {
	return &APIError{
		Code:     ErrCodeTagNotFound,
		Message:  fmt.Sprintf("指定されたタグが見つかりません: %s", tagID),
		Category: "note",
		Action:   "タグIDを確認してください。",
	}
}

// NewDuplicateNameError は名前重複エラーを生成する。
// フォルダ名・タグ名はユーザーごとに一意である必要がある。
func NewDuplicateNameError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateName,
		Message:  fmt.Sprintf("この名前は既に使用されています: %s", name),
		Category: "validation",
		Action:   "別の名前を指定してください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
