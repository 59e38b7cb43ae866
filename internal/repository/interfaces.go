// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/noteit/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
// email/usernameの一意性はストア側で強制され、違反は
// ErrDuplicateEmail / ErrDuplicateUsername として返る。
type UserRepository interface {
	// FindByEmail は指定メールアドレスのユーザーを取得する。見つからない場合はnilを返す。
	// パスワードハッシュを含む全フィールドを返すため、レスポンスへの流出に注意すること。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// Create はユーザーを作成する。単一レコードのアトミックな操作。
	Create(ctx context.Context, user *model.User) error

	// UpdateRefreshToken は保存中のリフレッシュトークンを置き換える。
	// 空文字列を渡すとトークンをクリアする。
	UpdateRefreshToken(ctx context.Context, userID, refreshToken string) error

	// UpdateProfile はusername/avatar/preferencesを更新する。
	UpdateProfile(ctx context.Context, user *model.User) error

	// UpdatePasswordHash はパスワードハッシュを置き換える。
	UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error
}

// NoteRepository はノートデータの永続化インターフェース。
// 全操作はauthorIDでスコープされる。
type NoteRepository interface {
	// FindByID は指定IDのノートを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id, authorID string) (*model.Note, error)

	// List は絞り込み・ソート・ページネーション付きでノート一覧と総件数を返す。
	// 一覧取得ではHTMLContentを読み込まない。
	List(ctx context.Context, authorID string, filter model.NoteFilter, page, limit int) ([]*model.Note, int, error)

	// Create はノートとタグ関連を同一トランザクションで作成する。
	Create(ctx context.Context, note *model.Note) error

	// Update はノート本体とタグ関連を同一トランザクションで更新する。
	Update(ctx context.Context, note *model.Note) error

	// Delete は指定IDのノートを削除する。関連するnote_tags、note_versionsは
	// CASCADE削除される。見つからない場合はErrNotFoundを返す。
	Delete(ctx context.Context, id, authorID string) error

	// CountByFolder は指定フォルダ内のノート件数を返す。
	CountByFolder(ctx context.Context, authorID, folderID string) (int, error)

	// CountsByFolder はフォルダIDごとのノート件数を返す。
	CountsByFolder(ctx context.Context, authorID string) (map[string]int, error)

	// CountByTag は指定タグが付与されたノート件数を返す。
	CountByTag(ctx context.Context, authorID, tagID string) (int, error)
}

// NoteVersionRepository はノートの過去バージョンの永続化インターフェース。
type NoteVersionRepository interface {
	// Create はバージョンスナップショットを作成する。
	Create(ctx context.Context, version *model.NoteVersion) error

	// ListByNoteID は指定ノートのバージョン一覧をversion降順で返す。
	// 一覧ではContentを読み込まない。
	ListByNoteID(ctx context.Context, noteID string) ([]*model.NoteVersion, error)

	// FindByNoteAndVersion は指定ノートの特定バージョンを取得する。
	// 見つからない場合はnilを返す。
	FindByNoteAndVersion(ctx context.Context, noteID string, version int) (*model.NoteVersion, error)

	// PruneOldVersions は各ノートで新しい方からkeep件を超える
	// 古いバージョンを削除し、削除件数を返す。
	PruneOldVersions(ctx context.Context, keep int) (int64, error)
}

// FolderRepository はフォルダデータの永続化インターフェース。
type FolderRepository interface {
	// FindByID は指定IDのフォルダを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id, authorID string) (*model.Folder, error)

	// ListByAuthor はユーザーのフォルダ一覧をposition昇順・作成日時昇順で返す。
	ListByAuthor(ctx context.Context, authorID string) ([]*model.Folder, error)

	// Create はフォルダを作成する。名前重複はErrDuplicateNameを返す。
	Create(ctx context.Context, folder *model.Folder) error

	// Update はフォルダを更新する。名前重複はErrDuplicateNameを返す。
	Update(ctx context.Context, folder *model.Folder) error

	// Delete は指定IDのフォルダを削除する。見つからない場合はErrNotFoundを返す。
	Delete(ctx context.Context, id, authorID string) error

	// UpdatePositions はfolderIDsの並び順どおりにpositionを振り直す。
	UpdatePositions(ctx context.Context, authorID string, folderIDs []string) error
}

// TagRepository はタグデータの永続化インターフェース。
type TagRepository interface {
	// FindByID は指定IDのタグを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id, authorID string) (*model.Tag, error)

	// ListByAuthor はユーザーのタグ一覧を使用数降順・名前昇順で返す。
	// UsageCountはnote_tagsから算出した実数を含む。
	ListByAuthor(ctx context.Context, authorID string) ([]*model.Tag, error)

	// Create はタグを作成する。名前重複はErrDuplicateNameを返す。
	Create(ctx context.Context, tag *model.Tag) error

	// Update はタグを更新する。名前重複はErrDuplicateNameを返す。
	Update(ctx context.Context, tag *model.Tag) error

	// Delete は指定IDのタグを削除する。note_tagsの関連はCASCADE削除され、
	// ノートからタグが外れる。見つからない場合はErrNotFoundを返す。
	Delete(ctx context.Context, id, authorID string) error

	// Autocomplete は名前の部分一致でタグを検索し、使用数降順で返す。
	Autocomplete(ctx context.Context, authorID, query string, limit int) ([]*model.Tag, error)
}
