package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/noteit/internal/model"
)

// PostgresFolderRepo はPostgreSQLを使用したフォルダリポジトリ。
type PostgresFolderRepo struct {
	db *sql.DB
}

// NewPostgresFolderRepo はPostgresFolderRepoを生成する。
func NewPostgresFolderRepo(db *sql.DB) *PostgresFolderRepo {
	return &PostgresFolderRepo{db: db}
}

const folderColumns = `id, name, description, author_id, COALESCE(parent_id::text, ''),
	color, is_default, position, created_at, updated_at`

func scanFolder(row interface{ Scan(...any) error }) (*model.Folder, error) {
	folder := &model.Folder{}
	err := row.Scan(
		&folder.ID, &folder.Name, &folder.Description, &folder.AuthorID,
		&folder.ParentID, &folder.Color, &folder.IsDefault, &folder.Position,
		&folder.CreatedAt, &folder.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return folder, nil
}

// FindByID は指定IDのフォルダを取得する。見つからない場合はnilを返す。
func (r *PostgresFolderRepo) FindByID(ctx context.Context, id, authorID string) (*model.Folder, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+folderColumns+` FROM folders WHERE id = $1 AND author_id = $2`,
		id, authorID,
	)
	folder, err := scanFolder(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find folder by ID: %w", err)
	}
	return folder, nil
}

// ListByAuthor はユーザーの全フォルダをposition昇順・作成日時昇順で返す。
func (r *PostgresFolderRepo) ListByAuthor(ctx context.Context, authorID string) ([]*model.Folder, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+folderColumns+` FROM folders
		 WHERE author_id = $1 ORDER BY position ASC, created_at ASC`,
		authorID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	defer rows.Close()

	var folders []*model.Folder
	for rows.Next() {
		folder, err := scanFolder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan folder: %w", err)
		}
		folders = append(folders, folder)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate folders: %w", err)
	}
	return folders, nil
}

// Create はフォルダを作成する。positionは同一ユーザー内の最大値+1を割り当てる。
func (r *PostgresFolderRepo) Create(ctx context.Context, folder *model.Folder) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO folders (id, name, description, author_id, parent_id,
		                      color, is_default, position, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, NULLIF($5, '')::uuid, $6, $7,
		         (SELECT COALESCE(MAX(position), -1) + 1 FROM folders WHERE author_id = $4),
		         $8, $9)
		 RETURNING position`,
		folder.ID, folder.Name, folder.Description, folder.AuthorID,
		folder.ParentID, folder.Color, folder.IsDefault,
		folder.CreatedAt, folder.UpdatedAt,
	).Scan(&folder.Position)
	if err != nil {
		return classifyUniqueViolation(err)
	}
	return nil
}

// Update はフォルダの名前・説明・色・親フォルダを更新する。
func (r *PostgresFolderRepo) Update(ctx context.Context, folder *model.Folder) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE folders SET name = $3, description = $4, color = $5,
		        parent_id = NULLIF($6, '')::uuid, updated_at = now()
		 WHERE id = $1 AND author_id = $2`,
		folder.ID, folder.AuthorID, folder.Name, folder.Description,
		folder.Color, folder.ParentID,
	)
	if err != nil {
		return classifyUniqueViolation(err)
	}
	return requireRowsAffected(result)
}

// Delete は指定IDのフォルダを削除する。中のノートの扱いはサービス層で判断する。
func (r *PostgresFolderRepo) Delete(ctx context.Context, id, authorID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM folders WHERE id = $1 AND author_id = $2`,
		id, authorID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete folder: %w", err)
	}
	return requireRowsAffected(result)
}

// UpdatePositions はfolderIDsの並び順どおりにpositionを振り直す。
func (r *PostgresFolderRepo) UpdatePositions(ctx context.Context, authorID string, folderIDs []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for position, id := range folderIDs {
		if _, err := tx.ExecContext(ctx,
			`UPDATE folders SET position = $3, updated_at = now()
			 WHERE id = $1 AND author_id = $2`,
			id, authorID, position,
		); err != nil {
			return fmt.Errorf("failed to update folder position: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// compile-time interface check
var _ FolderRepository = (*PostgresFolderRepo)(nil)
