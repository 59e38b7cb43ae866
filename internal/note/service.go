// Package note はノート管理のドメインロジックを提供する。
package note

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/noteit/internal/markdown"
	"github.com/hitoshi/noteit/internal/model"
	"github.com/hitoshi/noteit/internal/repository"
)

// ページネーションの既定値と上限。
const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// CreateNoteInput はノート作成の入力。
type CreateNoteInput struct {
	Title    string
	Content  string
	FolderID string
	TagIDs   []string
}

// UpdateNoteInput はノート更新の入力。nilのフィールドは変更しない。
type UpdateNoteInput struct {
	Title    *string
	Content  *string
	FolderID *string
	TagIDs   *[]string
}

// ListResult はノート一覧とページネーション情報。
type ListResult struct {
	Notes      []*model.Note
	Pagination model.Pagination
}

// Service はノートのビジネスロジックを提供する。
// 本文の更新時はMarkdownを再レンダリングし、旧内容を履歴として保存する。
type Service struct {
	noteRepo    repository.NoteRepository
	versionRepo repository.NoteVersionRepository
	folderRepo  repository.FolderRepository
	tagRepo     repository.TagRepository
	renderer    markdown.RendererService
}

// NewService はServiceを生成する。
func NewService(
	noteRepo repository.NoteRepository,
	versionRepo repository.NoteVersionRepository,
	folderRepo repository.FolderRepository,
	tagRepo repository.TagRepository,
	renderer markdown.RendererService,
) *Service {
	return &Service{
		noteRepo:    noteRepo,
		versionRepo: versionRepo,
		folderRepo:  folderRepo,
		tagRepo:     tagRepo,
		renderer:    renderer,
	}
}

// CreateNote はノートを作成する。
// フォルダとタグは本人が所有するものだけを参照できる。
func (s *Service) CreateNote(ctx context.Context, authorID string, input CreateNoteInput) (*model.Note, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, model.NewValidationError("タイトルは必須です。")
	}

	if err := s.validateFolder(ctx, authorID, input.FolderID); err != nil {
		return nil, err
	}
	if err := s.validateTags(ctx, authorID, input.TagIDs); err != nil {
		return nil, err
	}

	rendered, err := s.renderer.Render(input.Content)
	if err != nil {
		return nil, fmt.Errorf("本文のレンダリングに失敗しました: %w", err)
	}

	now := time.Now()
	note := &model.Note{
		ID:          uuid.NewString(),
		Title:       title,
		Content:     input.Content,
		HTMLContent: rendered.HTML,
		Excerpt:     rendered.Excerpt,
		AuthorID:    authorID,
		FolderID:    input.FolderID,
		TagIDs:      input.TagIDs,
		Version:     1,
		WordCount:   rendered.WordCount,
		ReadingTime: rendered.ReadingTime,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.noteRepo.Create(ctx, note); err != nil {
		return nil, fmt.Errorf("ノートの作成に失敗しました: %w", err)
	}
	return note, nil
}

// GetNote は指定IDのノートを取得する。
func (s *Service) GetNote(ctx context.Context, authorID, noteID string) (*model.Note, error) {
	note, err := s.noteRepo.FindByID(ctx, noteID, authorID)
	if err != nil {
		return nil, fmt.Errorf("ノートの取得に失敗しました: %w", err)
	}
	if note == nil {
		return nil, model.NewNoteNotFoundError(noteID)
	}
	return note, nil
}

// ListNotes は絞り込み・ソート・ページネーション付きでノート一覧を返す。
func (s *Service) ListNotes(ctx context.Context, authorID string, filter model.NoteFilter, page, limit int) (*ListResult, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	notes, total, err := s.noteRepo.List(ctx, authorID, filter, page, limit)
	if err != nil {
		return nil, fmt.Errorf("ノート一覧の取得に失敗しました: %w", err)
	}

	totalPages := (total + limit - 1) / limit
	if totalPages < 1 {
		totalPages = 1
	}

	return &ListResult{
		Notes: notes,
		Pagination: model.Pagination{
			CurrentPage: page,
			TotalPages:  totalPages,
			TotalNotes:  total,
			HasNext:     page < totalPages,
			HasPrev:     page > 1,
		},
	}, nil
}

// UpdateNote はノートを更新する。
// タイトルまたは本文が変わる場合、更新前の内容を履歴として保存し
// バージョン番号をインクリメントする。
func (s *Service) UpdateNote(ctx context.Context, authorID, noteID string, input UpdateNoteInput) (*model.Note, error) {
	note, err := s.GetNote(ctx, authorID, noteID)
	if err != nil {
		return nil, err
	}

	contentChanged := false

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, model.NewValidationError("タイトルは必須です。")
		}
		if title != note.Title {
			contentChanged = true
			note.Title = title
		}
	}
	if input.Content != nil && *input.Content != note.Content {
		contentChanged = true
	}
	if input.FolderID != nil {
		if err := s.validateFolder(ctx, authorID, *input.FolderID); err != nil {
			return nil, err
		}
		note.FolderID = *input.FolderID
	}
	if input.TagIDs != nil {
		if err := s.validateTags(ctx, authorID, *input.TagIDs); err != nil {
			return nil, err
		}
		note.TagIDs = *input.TagIDs
	}

	if contentChanged {
		if err := s.snapshotVersion(ctx, authorID, noteID); err != nil {
			return nil, err
		}
		note.Version++
	}

	if input.Content != nil && *input.Content != note.Content {
		rendered, err := s.renderer.Render(*input.Content)
		if err != nil {
			return nil, fmt.Errorf("本文のレンダリングに失敗しました: %w", err)
		}
		note.Content = *input.Content
		note.HTMLContent = rendered.HTML
		note.Excerpt = rendered.Excerpt
		note.WordCount = rendered.WordCount
		note.ReadingTime = rendered.ReadingTime
	}

	note.UpdatedAt = time.Now()
	if err := s.noteRepo.Update(ctx, note); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewNoteNotFoundError(noteID)
		}
		return nil, fmt.Errorf("ノートの更新に失敗しました: %w", err)
	}
	return note, nil
}

// DeleteNote はノートを削除する。履歴とタグ関連も同時に消える。
func (s *Service) DeleteNote(ctx context.Context, authorID, noteID string) error {
	if err := s.noteRepo.Delete(ctx, noteID, authorID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewNoteNotFoundError(noteID)
		}
		return fmt.Errorf("ノートの削除に失敗しました: %w", err)
	}
	return nil
}

// TogglePin はピン留め状態を反転する。
func (s *Service) TogglePin(ctx context.Context, authorID, noteID string) (*model.Note, error) {
	return s.toggleFlag(ctx, authorID, noteID, func(n *model.Note) {
		n.IsPinned = !n.IsPinned
	})
}

// ToggleFavorite はお気に入り状態を反転する。
func (s *Service) ToggleFavorite(ctx context.Context, authorID, noteID string) (*model.Note, error) {
	return s.toggleFlag(ctx, authorID, noteID, func(n *model.Note) {
		n.IsFavorite = !n.IsFavorite
	})
}

// ToggleArchive はアーカイブ状態を反転する。
func (s *Service) ToggleArchive(ctx context.Context, authorID, noteID string) (*model.Note, error) {
	return s.toggleFlag(ctx, authorID, noteID, func(n *model.Note) {
		n.IsArchived = !n.IsArchived
	})
}

func (s *Service) toggleFlag(ctx context.Context, authorID, noteID string, flip func(*model.Note)) (*model.Note, error) {
	note, err := s.GetNote(ctx, authorID, noteID)
	if err != nil {
		return nil, err
	}

	flip(note)
	note.UpdatedAt = time.Now()
	if err := s.noteRepo.Update(ctx, note); err != nil {
		return nil, fmt.Errorf("ノートの更新に失敗しました: %w", err)
	}
	return note, nil
}

// DuplicateNote はノートの複製を作成する。
// 複製はタイトルに「 (Copy)」が付き、バージョン1・ピン留めなしで作られる。
func (s *Service) DuplicateNote(ctx context.Context, authorID, noteID string) (*model.Note, error) {
	original, err := s.GetNote(ctx, authorID, noteID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	copied := &model.Note{
		ID:          uuid.NewString(),
		Title:       original.Title + " (Copy)",
		Content:     original.Content,
		HTMLContent: original.HTMLContent,
		Excerpt:     original.Excerpt,
		AuthorID:    authorID,
		FolderID:    original.FolderID,
		TagIDs:      original.TagIDs,
		IsFavorite:  original.IsFavorite,
		Version:     1,
		WordCount:   original.WordCount,
		ReadingTime: original.ReadingTime,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.noteRepo.Create(ctx, copied); err != nil {
		return nil, fmt.Errorf("ノートの複製に失敗しました: %w", err)
	}
	return copied, nil
}

// ListVersions はノートの履歴一覧を返す。
func (s *Service) ListVersions(ctx context.Context, authorID, noteID string) ([]*model.NoteVersion, error) {
	if _, err := s.GetNote(ctx, authorID, noteID); err != nil {
		return nil, err
	}

	versions, err := s.versionRepo.ListByNoteID(ctx, noteID)
	if err != nil {
		return nil, fmt.Errorf("履歴一覧の取得に失敗しました: %w", err)
	}
	return versions, nil
}

// GetVersion は指定バージョンのスナップショットを本文付きで返す。
func (s *Service) GetVersion(ctx context.Context, authorID, noteID string, version int) (*model.NoteVersion, error) {
	if _, err := s.GetNote(ctx, authorID, noteID); err != nil {
		return nil, err
	}

	target, err := s.versionRepo.FindByNoteAndVersion(ctx, noteID, version)
	if err != nil {
		return nil, fmt.Errorf("履歴の取得に失敗しました: %w", err)
	}
	if target == nil {
		return nil, model.NewVersionNotFoundError(version)
	}
	return target, nil
}

// RestoreVersion は指定バージョンの内容でノートを巻き戻す。
// 巻き戻し自体も新しいバージョンとして記録される。
func (s *Service) RestoreVersion(ctx context.Context, authorID, noteID string, version int) (*model.Note, error) {
	note, err := s.GetNote(ctx, authorID, noteID)
	if err != nil {
		return nil, err
	}

	target, err := s.versionRepo.FindByNoteAndVersion(ctx, noteID, version)
	if err != nil {
		return nil, fmt.Errorf("履歴の取得に失敗しました: %w", err)
	}
	if target == nil {
		return nil, model.NewVersionNotFoundError(version)
	}

	if err := s.snapshotVersion(ctx, authorID, noteID); err != nil {
		return nil, err
	}

	rendered, err := s.renderer.Render(target.Content)
	if err != nil {
		return nil, fmt.Errorf("本文のレンダリングに失敗しました: %w", err)
	}

	note.Title = target.Title
	note.Content = target.Content
	note.HTMLContent = rendered.HTML
	note.Excerpt = rendered.Excerpt
	note.WordCount = rendered.WordCount
	note.ReadingTime = rendered.ReadingTime
	note.Version++
	note.UpdatedAt = time.Now()

	if err := s.noteRepo.Update(ctx, note); err != nil {
		return nil, fmt.Errorf("ノートの更新に失敗しました: %w", err)
	}
	return note, nil
}

// snapshotVersion は現在のノート内容を履歴として保存する。
func (s *Service) snapshotVersion(ctx context.Context, authorID, noteID string) error {
	note, err := s.noteRepo.FindByID(ctx, noteID, authorID)
	if err != nil {
		return fmt.Errorf("ノートの取得に失敗しました: %w", err)
	}
	if note == nil {
		return model.NewNoteNotFoundError(noteID)
	}

	snapshot := &model.NoteVersion{
		ID:        uuid.NewString(),
		NoteID:    note.ID,
		Title:     note.Title,
		Content:   note.Content,
		Version:   note.Version,
		AuthorID:  authorID,
		CreatedAt: time.Now(),
	}
	if err := s.versionRepo.Create(ctx, snapshot); err != nil {
		return fmt.Errorf("履歴の保存に失敗しました: %w", err)
	}
	return nil
}

// validateFolder はフォルダIDが本人のフォルダを指していることを確認する。
func (s *Service) validateFolder(ctx context.Context, authorID, folderID string) error {
	if folderID == "" {
		return nil
	}
	folder, err := s.folderRepo.FindByID(ctx, folderID, authorID)
	if err != nil {
		return fmt.Errorf("フォルダの取得に失敗しました: %w", err)
	}
	if folder == nil {
		return model.NewFolderNotFoundError(folderID)
	}
	return nil
}

// validateTags はタグIDが全て本人のタグを指していることを確認する。
func (s *Service) validateTags(ctx context.Context, authorID string, tagIDs []string) error {
	for _, tagID := range tagIDs {
		tag, err := s.tagRepo.FindByID(ctx, tagID, authorID)
		if err != nil {
			return fmt.Errorf("タグの取得に失敗しました: %w", err)
		}
		if tag == nil {
			return model.NewTagNotFoundError(tagID)
		}
	}
	return nil
}
