package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/noteit/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const userColumns = `id, username, email, password_hash, avatar, theme,
	COALESCE(default_folder_id::text, ''), COALESCE(refresh_token, ''),
	is_verified, created_at, updated_at`

// scanUser は1行をmodel.Userに読み込む。
func scanUser(row *sql.Row) (*model.User, error) {
	user := &model.User{}
	err := row.Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash,
		&user.Avatar, &user.Preferences.Theme, &user.Preferences.DefaultFolderID,
		&user.RefreshToken, &user.IsVerified, &user.CreatedAt, &user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return user, nil
}

// FindByEmail は指定メールアドレスのユーザーを取得する。見つからない場合はnilを返す。
// パスワードハッシュを含む。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`,
		email,
	)
	return scanUser(row)
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	)
	return scanUser(row)
}

// Create はユーザーを作成する。
// email/usernameの一意制約違反はErrDuplicateEmail/ErrDuplicateUsernameに変換される。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password_hash, avatar, theme, is_verified, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		user.ID, user.Username, user.Email, user.PasswordHash,
		user.Avatar, themeOrDefault(user.Preferences.Theme), user.IsVerified,
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return classifyUniqueViolation(err)
	}
	return nil
}

// UpdateRefreshToken は保存中のリフレッシュトークンを置き換える。
// 空文字列を渡すとNULLにクリアする。
func (r *PostgresUserRepo) UpdateRefreshToken(ctx context.Context, userID, refreshToken string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET refresh_token = NULLIF($2, ''), updated_at = now() WHERE id = $1`,
		userID, refreshToken,
	)
	if err != nil {
		return fmt.Errorf("failed to update refresh token: %w", err)
	}
	return requireRowsAffected(result)
}

// UpdateProfile はusername/avatar/preferencesを更新する。
// usernameの一意制約違反はErrDuplicateUsernameに変換される。
func (r *PostgresUserRepo) UpdateProfile(ctx context.Context, user *model.User) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET username = $2, avatar = $3, theme = $4,
		 default_folder_id = NULLIF($5, '')::uuid, updated_at = now()
		 WHERE id = $1`,
		user.ID, user.Username, user.Avatar,
		themeOrDefault(user.Preferences.Theme), user.Preferences.DefaultFolderID,
	)
	if err != nil {
		return classifyUniqueViolation(err)
	}
	return requireRowsAffected(result)
}

// UpdatePasswordHash はパスワードハッシュを置き換える。
func (r *PostgresUserRepo) UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`,
		userID, passwordHash,
	)
	if err != nil {
		return fmt.Errorf("failed to update password hash: %w", err)
	}
	return requireRowsAffected(result)
}

// themeOrDefault は未指定のテーマをデフォルト値に補完する。
func themeOrDefault(theme string) string {
	if theme == "" {
		return model.ThemeAuto
	}
	return theme
}

// requireRowsAffected は更新対象が存在しない場合にErrNotFoundを返す。
func requireRowsAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
