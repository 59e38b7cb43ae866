// Package folder はフォルダ管理のドメインロジックを提供する。
package folder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/noteit/internal/model"
	"github.com/hitoshi/noteit/internal/repository"
)

// defaultColor は色指定がない場合のフォルダの色。
const defaultColor = "#6366f1"

// FolderInfo はフォルダとその中のノート数を結合したドメインオブジェクト。
type FolderInfo struct {
	*model.Folder
	NoteCount int
}

// CreateFolderInput はフォルダ作成の入力。
type CreateFolderInput struct {
	Name        string
	Description string
	Color       string
	ParentID    string
}

// UpdateFolderInput はフォルダ更新の入力。nilのフィールドは変更しない。
type UpdateFolderInput struct {
	Name        *string
	Description *string
	Color       *string
	ParentID    *string
}

// Service はフォルダのビジネスロジックを提供する。
type Service struct {
	folderRepo repository.FolderRepository
	noteRepo   repository.NoteRepository
}

// NewService はServiceを生成する。
func NewService(folderRepo repository.FolderRepository, noteRepo repository.NoteRepository) *Service {
	return &Service{
		folderRepo: folderRepo,
		noteRepo:   noteRepo,
	}
}

// ListFolders はユーザーのフォルダ一覧をノート数付きで返す。
func (s *Service) ListFolders(ctx context.Context, authorID string) ([]FolderInfo, error) {
	folders, err := s.folderRepo.ListByAuthor(ctx, authorID)
	if err != nil {
		return nil, fmt.Errorf("フォルダ一覧の取得に失敗しました: %w", err)
	}

	counts, err := s.noteRepo.CountsByFolder(ctx, authorID)
	if err != nil {
		return nil, fmt.Errorf("ノート数の取得に失敗しました: %w", err)
	}

	infos := make([]FolderInfo, len(folders))
	for i, f := range folders {
		infos[i] = FolderInfo{
			Folder:    f,
			NoteCount: counts[f.ID],
		}
	}
	return infos, nil
}

// GetFolder は指定IDのフォルダをノート数付きで取得する。
func (s *Service) GetFolder(ctx context.Context, authorID, folderID string) (*FolderInfo, error) {
	folder, err := s.folderRepo.FindByID(ctx, folderID, authorID)
	if err != nil {
		return nil, fmt.Errorf("フォルダの取得に失敗しました: %w", err)
	}
	if folder == nil {
		return nil, model.NewFolderNotFoundError(folderID)
	}

	count, err := s.noteRepo.CountByFolder(ctx, authorID, folderID)
	if err != nil {
		return nil, fmt.Errorf("ノート数の取得に失敗しました: %w", err)
	}
	return &FolderInfo{Folder: folder, NoteCount: count}, nil
}

// CreateFolder はフォルダを作成する。名前はユーザーごとに一意。
func (s *Service) CreateFolder(ctx context.Context, authorID string, input CreateFolderInput) (*model.Folder, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, model.NewValidationError("フォルダ名は必須です。")
	}

	color := input.Color
	if color == "" {
		color = defaultColor
	}

	now := time.Now()
	folder := &model.Folder{
		ID:          uuid.NewString(),
		Name:        name,
		Description: input.Description,
		AuthorID:    authorID,
		ParentID:    input.ParentID,
		Color:       color,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.folderRepo.Create(ctx, folder); err != nil {
		if errors.Is(err, repository.ErrDuplicateName) {
			return nil, model.NewDuplicateNameError(name)
		}
		return nil, fmt.Errorf("フォルダの作成に失敗しました: %w", err)
	}
	return folder, nil
}

// UpdateFolder はフォルダを更新する。
func (s *Service) UpdateFolder(ctx context.Context, authorID, folderID string, input UpdateFolderInput) (*model.Folder, error) {
	folder, err := s.folderRepo.FindByID(ctx, folderID, authorID)
	if err != nil {
		return nil, fmt.Errorf("フォルダの取得に失敗しました: %w", err)
	}
	if folder == nil {
		return nil, model.NewFolderNotFoundError(folderID)
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, model.NewValidationError("フォルダ名は必須です。")
		}
		folder.Name = name
	}
	if input.Description != nil {
		folder.Description = *input.Description
	}
	if input.Color != nil {
		folder.Color = *input.Color
	}
	if input.ParentID != nil {
		if *input.ParentID == folderID {
			return nil, model.NewValidationError("フォルダを自身の中に移動することはできません。")
		}
		folder.ParentID = *input.ParentID
	}

	if err := s.folderRepo.Update(ctx, folder); err != nil {
		if errors.Is(err, repository.ErrDuplicateName) {
			return nil, model.NewDuplicateNameError(folder.Name)
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewFolderNotFoundError(folderID)
		}
		return nil, fmt.Errorf("フォルダの更新に失敗しました: %w", err)
	}
	return folder, nil
}

// DeleteFolder はフォルダを削除する。
// ノートが残っているフォルダは削除できない。
func (s *Service) DeleteFolder(ctx context.Context, authorID, folderID string) error {
	folder, err := s.folderRepo.FindByID(ctx, folderID, authorID)
	if err != nil {
		return fmt.Errorf("フォルダの取得に失敗しました: %w", err)
	}
	if folder == nil {
		return model.NewFolderNotFoundError(folderID)
	}

	count, err := s.noteRepo.CountByFolder(ctx, authorID, folderID)
	if err != nil {
		return fmt.Errorf("ノート数の取得に失敗しました: %w", err)
	}
	if count > 0 {
		return model.NewFolderNotEmptyError(count)
	}

	if err := s.folderRepo.Delete(ctx, folderID, authorID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewFolderNotFoundError(folderID)
		}
		return fmt.Errorf("フォルダの削除に失敗しました: %w", err)
	}
	return nil
}

// ReorderFolders はfolderIDsの並び順どおりにフォルダを並び替える。
func (s *Service) ReorderFolders(ctx context.Context, authorID string, folderIDs []string) error {
	if len(folderIDs) == 0 {
		return model.NewValidationError("並び替えるフォルダIDを指定してください。")
	}

	if err := s.folderRepo.UpdatePositions(ctx, authorID, folderIDs); err != nil {
		return fmt.Errorf("フォルダの並び替えに失敗しました: %w", err)
	}
	return nil
}
