package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/hitoshi/noteit/internal/model"
)

// PostgresNoteRepo はPostgreSQLを使用したノートリポジトリ。
type PostgresNoteRepo struct {
	db *sql.DB
}

// NewPostgresNoteRepo はPostgresNoteRepoを生成する。
func NewPostgresNoteRepo(db *sql.DB) *PostgresNoteRepo {
	return &PostgresNoteRepo{db: db}
}

// sortFieldWhitelist はソート指定に使用できるカラム名。
// SQLへの直接埋め込みを防ぐため、ここにないフィールドはcreated_atに落とす。
var sortFieldWhitelist = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"title":      "title",
}

// FindByID は指定IDのノートをタグID付きで取得する。見つからない場合はnilを返す。
func (r *PostgresNoteRepo) FindByID(ctx context.Context, id, authorID string) (*model.Note, error) {
	note := &model.Note{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, title, content, html_content, excerpt, author_id,
		        COALESCE(folder_id::text, ''), is_pinned, is_archived, is_favorite,
		        version, word_count, reading_time, created_at, updated_at
		 FROM notes WHERE id = $1 AND author_id = $2`,
		id, authorID,
	).Scan(
		&note.ID, &note.Title, &note.Content, &note.HTMLContent, &note.Excerpt,
		&note.AuthorID, &note.FolderID, &note.IsPinned, &note.IsArchived,
		&note.IsFavorite, &note.Version, &note.WordCount, &note.ReadingTime,
		&note.CreatedAt, &note.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find note by ID: %w", err)
	}

	tagsByNote, err := r.loadTagIDs(ctx, []string{note.ID})
	if err != nil {
		return nil, err
	}
	note.TagIDs = tagsByNote[note.ID]

	return note, nil
}

// List は絞り込み・ソート・ページネーション付きでノート一覧と総件数を返す。
// HTMLContentは一覧では読み込まない。ピン留めフィルタ未指定時はピン留めを先頭に並べる。
func (r *PostgresNoteRepo) List(ctx context.Context, authorID string, filter model.NoteFilter, page, limit int) ([]*model.Note, int, error) {
	where := []string{"author_id = $1"}
	args := []any{authorID}

	addArg := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if filter.FolderID != "" {
		addArg("folder_id = $%d", filter.FolderID)
	}
	if filter.TagID != "" {
		addArg("EXISTS (SELECT 1 FROM note_tags nt WHERE nt.note_id = notes.id AND nt.tag_id = $%d)", filter.TagID)
	}
	if filter.IsPinned != nil {
		addArg("is_pinned = $%d", *filter.IsPinned)
	}
	if filter.IsArchived != nil {
		addArg("is_archived = $%d", *filter.IsArchived)
	}
	if filter.IsFavorite != nil {
		addArg("is_favorite = $%d", *filter.IsFavorite)
	}

	whereClause := strings.Join(where, " AND ")

	// 総件数
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notes WHERE `+whereClause, args...,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count notes: %w", err)
	}

	// ソート順の構築
	sortField, ok := sortFieldWhitelist[filter.SortField]
	if !ok {
		sortField = "created_at"
	}
	direction := "ASC"
	if filter.SortDesc {
		direction = "DESC"
	}
	orderBy := fmt.Sprintf("%s %s", sortField, direction)
	if filter.IsPinned == nil {
		orderBy = "is_pinned DESC, " + orderBy
	}

	offset := (page - 1) * limit
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx,
		fmt.Sprintf(
			`SELECT id, title, content, excerpt, author_id,
			        COALESCE(folder_id::text, ''), is_pinned, is_archived, is_favorite,
			        version, word_count, reading_time, created_at, updated_at
			 FROM notes WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d`,
			whereClause, orderBy, len(args)-1, len(args),
		),
		args...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	var notes []*model.Note
	var noteIDs []string
	for rows.Next() {
		note := &model.Note{}
		if err := rows.Scan(
			&note.ID, &note.Title, &note.Content, &note.Excerpt, &note.AuthorID,
			&note.FolderID, &note.IsPinned, &note.IsArchived, &note.IsFavorite,
			&note.Version, &note.WordCount, &note.ReadingTime,
			&note.CreatedAt, &note.UpdatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, note)
		noteIDs = append(noteIDs, note.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate notes: %w", err)
	}

	tagsByNote, err := r.loadTagIDs(ctx, noteIDs)
	if err != nil {
		return nil, 0, err
	}
	for _, note := range notes {
		note.TagIDs = tagsByNote[note.ID]
	}

	return notes, total, nil
}

// Create はノートとタグ関連を同一トランザクションで作成する。
func (r *PostgresNoteRepo) Create(ctx context.Context, note *model.Note) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO notes (id, title, content, html_content, excerpt, author_id,
		                    folder_id, is_pinned, is_archived, is_favorite,
		                    version, word_count, reading_time, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, '')::uuid, $8, $9, $10, $11, $12, $13, $14, $15)`,
		note.ID, note.Title, note.Content, note.HTMLContent, note.Excerpt,
		note.AuthorID, note.FolderID, note.IsPinned, note.IsArchived,
		note.IsFavorite, note.Version, note.WordCount, note.ReadingTime,
		note.CreatedAt, note.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert note: %w", err)
	}

	if err := replaceNoteTags(ctx, tx, note.ID, note.TagIDs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Update はノート本体とタグ関連を同一トランザクションで更新する。
func (r *PostgresNoteRepo) Update(ctx context.Context, note *model.Note) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE notes SET title = $3, content = $4, html_content = $5, excerpt = $6,
		        folder_id = NULLIF($7, '')::uuid, is_pinned = $8, is_archived = $9,
		        is_favorite = $10, version = $11, word_count = $12, reading_time = $13,
		        updated_at = now()
		 WHERE id = $1 AND author_id = $2`,
		note.ID, note.AuthorID, note.Title, note.Content, note.HTMLContent,
		note.Excerpt, note.FolderID, note.IsPinned, note.IsArchived,
		note.IsFavorite, note.Version, note.WordCount, note.ReadingTime,
	)
	if err != nil {
		return fmt.Errorf("failed to update note: %w", err)
	}
	if err := requireRowsAffected(result); err != nil {
		return err
	}

	if err := replaceNoteTags(ctx, tx, note.ID, note.TagIDs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Delete は指定IDのノートを削除する。note_tags、note_versionsはCASCADE削除される。
func (r *PostgresNoteRepo) Delete(ctx context.Context, id, authorID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM notes WHERE id = $1 AND author_id = $2`,
		id, authorID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	return requireRowsAffected(result)
}

// CountByFolder は指定フォルダ内のノート件数を返す。
func (r *PostgresNoteRepo) CountByFolder(ctx context.Context, authorID, folderID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notes WHERE author_id = $1 AND folder_id = $2`,
		authorID, folderID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count notes by folder: %w", err)
	}
	return count, nil
}

// CountsByFolder はフォルダIDごとのノート件数を返す。
func (r *PostgresNoteRepo) CountsByFolder(ctx context.Context, authorID string) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT folder_id::text, COUNT(*) FROM notes
		 WHERE author_id = $1 AND folder_id IS NOT NULL
		 GROUP BY folder_id`,
		authorID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count notes by folder: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var folderID string
		var count int
		if err := rows.Scan(&folderID, &count); err != nil {
			return nil, fmt.Errorf("failed to scan folder count: %w", err)
		}
		counts[folderID] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate folder counts: %w", err)
	}
	return counts, nil
}

// CountByTag は指定タグが付与されたノート件数を返す。
func (r *PostgresNoteRepo) CountByTag(ctx context.Context, authorID, tagID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM note_tags nt
		 JOIN notes n ON n.id = nt.note_id
		 WHERE n.author_id = $1 AND nt.tag_id = $2`,
		authorID, tagID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count notes by tag: %w", err)
	}
	return count, nil
}

// loadTagIDs は複数ノートのタグIDをまとめて取得する。
func (r *PostgresNoteRepo) loadTagIDs(ctx context.Context, noteIDs []string) (map[string][]string, error) {
	tagsByNote := make(map[string][]string)
	if len(noteIDs) == 0 {
		return tagsByNote, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT note_id, tag_id FROM note_tags WHERE note_id = ANY($1)`,
		pq.Array(noteIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load note tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var noteID, tagID string
		if err := rows.Scan(&noteID, &tagID); err != nil {
			return nil, fmt.Errorf("failed to scan note tag: %w", err)
		}
		tagsByNote[noteID] = append(tagsByNote[noteID], tagID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate note tags: %w", err)
	}
	return tagsByNote, nil
}

// replaceNoteTags はノートのタグ関連を洗い替える。
func replaceNoteTags(ctx context.Context, tx *sql.Tx, noteID string, tagIDs []string) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM note_tags WHERE note_id = $1`, noteID,
	); err != nil {
		return fmt.Errorf("failed to clear note tags: %w", err)
	}

	for _, tagID := range tagIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO note_tags (note_id, tag_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			noteID, tagID,
		); err != nil {
			return fmt.Errorf("failed to insert note tag: %w", err)
		}
	}
	return nil
}

// compile-time interface check
var _ NoteRepository = (*PostgresNoteRepo)(nil)
