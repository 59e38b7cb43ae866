package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/noteit/internal/model"
)

// PostgresTagRepo はPostgreSQLを使用したタグリポジトリ。
type PostgresTagRepo struct {
	db *sql.DB
}

// NewPostgresTagRepo はPostgresTagRepoを生成する。
func NewPostgresTagRepo(db *sql.DB) *PostgresTagRepo {
	return &PostgresTagRepo{db: db}
}

// tagColumns はJOIN付きクエリで選択するタグのカラムと使用数。
const tagColumns = `t.id, t.name, t.author_id, t.color, t.description,
	t.created_at, t.updated_at, COUNT(nt.note_id)`

// FindByID は指定IDのタグを使用数付きで取得する。見つからない場合はnilを返す。
func (r *PostgresTagRepo) FindByID(ctx context.Context, id, authorID string) (*model.Tag, error) {
	tag := &model.Tag{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+tagColumns+`
		 FROM tags t
		 LEFT JOIN note_tags nt ON nt.tag_id = t.id
		 WHERE t.id = $1 AND t.author_id = $2
		 GROUP BY t.id`,
		id, authorID,
	).Scan(
		&tag.ID, &tag.Name, &tag.AuthorID, &tag.Color, &tag.Description,
		&tag.CreatedAt, &tag.UpdatedAt, &tag.UsageCount,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find tag by ID: %w", err)
	}
	return tag, nil
}

// ListByAuthor はユーザーの全タグを使用数降順・名前昇順で返す。
func (r *PostgresTagRepo) ListByAuthor(ctx context.Context, authorID string) ([]*model.Tag, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+tagColumns+`
		 FROM tags t
		 LEFT JOIN note_tags nt ON nt.tag_id = t.id
		 WHERE t.author_id = $1
		 GROUP BY t.id
		 ORDER BY COUNT(nt.note_id) DESC, t.name ASC`,
		authorID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer rows.Close()

	return scanTags(rows)
}

// Create はタグを作成する。
func (r *PostgresTagRepo) Create(ctx context.Context, tag *model.Tag) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tags (id, name, author_id, color, description, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		tag.ID, tag.Name, tag.AuthorID, tag.Color, tag.Description,
		tag.CreatedAt, tag.UpdatedAt,
	)
	if err != nil {
		return classifyUniqueViolation(err)
	}
	return nil
}

// Update はタグの名前・色・説明を更新する。
func (r *PostgresTagRepo) Update(ctx context.Context, tag *model.Tag) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE tags SET name = $3, color = $4, description = $5, updated_at = now()
		 WHERE id = $1 AND author_id = $2`,
		tag.ID, tag.AuthorID, tag.Name, tag.Color, tag.Description,
	)
	if err != nil {
		return classifyUniqueViolation(err)
	}
	return requireRowsAffected(result)
}

// Delete は指定IDのタグを削除する。note_tagsの関連行はCASCADE削除される。
func (r *PostgresTagRepo) Delete(ctx context.Context, id, authorID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM tags WHERE id = $1 AND author_id = $2`,
		id, authorID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete tag: %w", err)
	}
	return requireRowsAffected(result)
}

// Autocomplete は名前の部分一致でタグを検索し、使用数降順で最大limit件返す。
func (r *PostgresTagRepo) Autocomplete(ctx context.Context, authorID, query string, limit int) ([]*model.Tag, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+tagColumns+`
		 FROM tags t
		 LEFT JOIN note_tags nt ON nt.tag_id = t.id
		 WHERE t.author_id = $1 AND t.name ILIKE '%' || $2 || '%'
		 GROUP BY t.id
		 ORDER BY COUNT(nt.note_id) DESC, t.name ASC
		 LIMIT $3`,
		authorID, query, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to autocomplete tags: %w", err)
	}
	defer rows.Close()

	return scanTags(rows)
}

func scanTags(rows *sql.Rows) ([]*model.Tag, error) {
	var tags []*model.Tag
	for rows.Next() {
		tag := &model.Tag{}
		if err := rows.Scan(
			&tag.ID, &tag.Name, &tag.AuthorID, &tag.Color, &tag.Description,
			&tag.CreatedAt, &tag.UpdatedAt, &tag.UsageCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tags: %w", err)
	}
	return tags, nil
}

// compile-time interface check
var _ TagRepository = (*PostgresTagRepo)(nil)
