// Package tag はタグ管理のドメインロジックを提供する。
package tag

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

// defaultColor は色指定がない場合のタグの色。
const defaultColor = "#10b981"

// autocompleteLimit は補完候補の最大件数。
const autocompleteLimit = 10

// CreateTagInput はタグ作成の入力。
type CreateTagInput struct {
	Name        string
	Color       string
	Description string
}

// UpdateTagInput はタグ更新の入力。nilのフィールドは変更しない。
type UpdateTagInput struct {
	Name        *string
	Color       *string
	Description *string
}

// Service はタグのビジネスロジックを提供する。
type Service struct {
	tagRepo repository.TagRepository
}

// NewService はServiceを生成する。
func NewService(tagRepo repository.TagRepository) *Service {
	return &Service{tagRepo: tagRepo}
}

// ListTags はユーザーのタグ一覧を使用数付きで返す。
func (s *Service) ListTags(ctx context.Context, authorID string) ([]*model.Tag, error) {
	tags, err := s.tagRepo.ListByAuthor(ctx, authorID)
	if err != nil {
		return nil, fmt.Errorf("タグ一覧の取得に失敗しました: %w", err)
	}
	return tags, nil
}

// GetTag は指定IDのタグを取得する。
func (s *Service) GetTag(ctx context.Context, authorID, tagID string) (*model.Tag, error) {
	tag, err := s.tagRepo.FindByID(ctx, tagID, authorID)
	if err != nil {
		return nil, fmt.Errorf("タグの取得に失敗しました: %w", err)
	}
	if tag == nil {
		return nil, model.NewTagNotFoundError(tagID)
	}
	return tag, nil
}

// CreateTag はタグを作成する。名前はユーザーごとに一意で、小文字に正規化される。
func (s *Service) CreateTag(ctx context.Context, authorID string, input CreateTagInput) (*model.Tag, error) {
	name := normalizeTagName(input.Name)
	if name == "" {
		return nil, model.NewValidationError("タグ名は必須です。")
	}

	color := input.Color
	if color == "" {
		color = defaultColor
	}

	now := time.Now()
	tag := &model.Tag{
		ID:          uuid.NewString(),
		Name:        name,
		AuthorID:    authorID,
		Color:       color,
		Description: input.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.tagRepo.Create(ctx, tag); err != nil {
		if errors.Is(err, repository.ErrDuplicateName) {
			return nil, model.NewDuplicateNameError(name)
		}
		return nil, fmt.Errorf("タグの作成に失敗しました: %w", err)
	}
	return tag, nil
}

// UpdateTag はタグを更新する。
func (s *Service) UpdateTag(ctx context.Context, authorID, tagID string, input UpdateTagInput) (*model.Tag, error) {
	tag, err := s.GetTag(ctx, authorID, tagID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := normalizeTagName(*input.Name)
		if name == "" {
			return nil, model.NewValidationError("タグ名は必須です。")
		}
		tag.Name = name
	}
	if input.Color != nil {
		tag.Color = *input.Color
	}
	if input.Description != nil {
		tag.Description = *input.Description
	}

	if err := s.tagRepo.Update(ctx, tag); err != nil {
		if errors.Is(err, repository.ErrDuplicateName) {
			return nil, model.NewDuplicateNameError(tag.Name)
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewTagNotFoundError(tagID)
		}
		return nil, fmt.Errorf("タグの更新に失敗しました: %w", err)
	}
	return tag, nil
}

// DeleteTag はタグを削除する。付与先のノートからはタグだけが外れる。
func (s *Service) DeleteTag(ctx context.Context, authorID, tagID string) error {
	if err := s.tagRepo.Delete(ctx, tagID, authorID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewTagNotFoundError(tagID)
		}
		return fmt.Errorf("タグの削除に失敗しました: %w", err)
	}
	return nil
}

// Autocomplete は入力にマッチするタグを使用数降順で返す。
// 空のクエリには空の結果を返す。
func (s *Service) Autocomplete(ctx context.Context, authorID, query string) ([]*model.Tag, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []*model.Tag{}, nil
	}

	tags, err := s.tagRepo.Autocomplete(ctx, authorID, query, autocompleteLimit)
	if err != nil {
		return nil, fmt.Errorf("タグ補完の検索に失敗しました: %w", err)
	}
	return tags, nil
}

// normalizeTagName はタグ名を小文字化して前後の空白を除去する。
func normalizeTagName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
