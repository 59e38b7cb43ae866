package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/noteit/internal/model"
)

// PostgresNoteVersionRepo はPostgreSQLを使用したノート履歴リポジトリ。
type PostgresNoteVersionRepo struct {
	db *sql.DB
}

// NewPostgresNoteVersionRepo はPostgresNoteVersionRepoを生成する。
func NewPostgresNoteVersionRepo(db *sql.DB) *PostgresNoteVersionRepo {
	return &PostgresNoteVersionRepo{db: db}
}

// Create はバージョンスナップショットを作成する。
func (r *PostgresNoteVersionRepo) Create(ctx context.Context, version *model.NoteVersion) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO note_versions (id, note_id, title, content, version,
		                            author_id, change_description, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		version.ID, version.NoteID, version.Title, version.Content,
		version.Version, version.AuthorID, version.ChangeDescription,
		version.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create note version: %w", err)
	}
	return nil
}

// ListByNoteID は指定ノートの履歴をversion降順で返す。Contentは読み込まない。
func (r *PostgresNoteVersionRepo) ListByNoteID(ctx context.Context, noteID string) ([]*model.NoteVersion, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, note_id, title, version, author_id, change_description, created_at
		 FROM note_versions WHERE note_id = $1 ORDER BY version DESC`,
		noteID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list note versions: %w", err)
	}
	defer rows.Close()

	var versions []*model.NoteVersion
	for rows.Next() {
		v := &model.NoteVersion{}
		if err := rows.Scan(
			&v.ID, &v.NoteID, &v.Title, &v.Version,
			&v.AuthorID, &v.ChangeDescription, &v.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan note version: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate note versions: %w", err)
	}
	return versions, nil
}

// FindByNoteAndVersion は指定ノートの特定バージョンを取得する。見つからない場合はnilを返す。
func (r *PostgresNoteVersionRepo) FindByNoteAndVersion(ctx context.Context, noteID string, version int) (*model.NoteVersion, error) {
	v := &model.NoteVersion{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, note_id, title, content, version, author_id, change_description, created_at
		 FROM note_versions WHERE note_id = $1 AND version = $2`,
		noteID, version,
	).Scan(
		&v.ID, &v.NoteID, &v.Title, &v.Content, &v.Version,
		&v.AuthorID, &v.ChangeDescription, &v.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find note version: %w", err)
	}
	return v, nil
}

// PruneOldVersions は各ノートで新しい方からkeep件を残して古い履歴を削除し、削除件数を返す。
func (r *PostgresNoteVersionRepo) PruneOldVersions(ctx context.Context, keep int) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM note_versions WHERE id IN (
		   SELECT id FROM (
		     SELECT id, ROW_NUMBER() OVER (PARTITION BY note_id ORDER BY version DESC) AS rank
		     FROM note_versions
		   ) ranked WHERE ranked.rank > $1
		 )`,
		keep,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune note versions: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return deleted, nil
}

// compile-time interface check
var _ NoteVersionRepository = (*PostgresNoteVersionRepo)(nil)
