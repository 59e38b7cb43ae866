// Package user はユーザープロフィール管理のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/noteit/internal/auth"
	"github.com/hitoshi/noteit/internal/model"
	"github.com/hitoshi/noteit/internal/repository"
)

const (
	minUsernameLength = 3
	minPasswordLength = 6
)

// UpdateProfileInput はプロフィール更新の入力。nilのフィールドは変更しない。
// メールアドレスとパスワードはこの経路では変更できない。
type UpdateProfileInput struct {
	Username        *string
	Avatar          *string
	Theme           *string
	DefaultFolderID *string
}

// Service はユーザープロフィールのビジネスロジックを提供する。
type Service struct {
	userRepo   repository.UserRepository
	folderRepo repository.FolderRepository
}

// NewService はServiceを生成する。
func NewService(userRepo repository.UserRepository, folderRepo repository.FolderRepository) *Service {
	return &Service{
		userRepo:   userRepo,
		folderRepo: folderRepo,
	}
}

// GetProfile は指定IDのユーザーを取得する。
func (s *Service) GetProfile(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// UpdateProfile は許可されたフィールドのみプロフィールを更新する。
func (s *Service) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*model.User, error) {
	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	if input.Username != nil {
		username := strings.TrimSpace(*input.Username)
		if len(username) < minUsernameLength {
			return nil, model.NewValidationError(fmt.Sprintf("ユーザー名は%d文字以上で入力してください。", minUsernameLength))
		}
		user.Username = username
	}
	if input.Avatar != nil {
		user.Avatar = *input.Avatar
	}
	if input.Theme != nil {
		theme := *input.Theme
		if theme != model.ThemeLight && theme != model.ThemeDark && theme != model.ThemeAuto {
			return nil, model.NewValidationError("テーマはlight, dark, autoのいずれかを指定してください。")
		}
		user.Preferences.Theme = theme
	}
	if input.DefaultFolderID != nil {
		if *input.DefaultFolderID != "" {
			folder, err := s.folderRepo.FindByID(ctx, *input.DefaultFolderID, userID)
			if err != nil {
				return nil, fmt.Errorf("フォルダの取得に失敗しました: %w", err)
			}
			if folder == nil {
				return nil, model.NewFolderNotFoundError(*input.DefaultFolderID)
			}
		}
		user.Preferences.DefaultFolderID = *input.DefaultFolderID
	}

	if err := s.userRepo.UpdateProfile(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateUsername) {
			return nil, model.NewValidationError("このユーザー名は既に使用されています。")
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewUserNotFoundError()
		}
		return nil, fmt.Errorf("プロフィールの更新に失敗しました: %w", err)
	}
	return user, nil
}

// ChangePassword は現在のパスワードを検証した上でパスワードを変更する。
func (s *Service) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if currentPassword == "" || newPassword == "" {
		return model.NewValidationError("現在のパスワードと新しいパスワードを入力してください。")
	}
	if len(newPassword) < minPasswordLength {
		return model.NewValidationError(fmt.Sprintf("パスワードは%d文字以上で入力してください。", minPasswordLength))
	}

	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return err
	}

	if err := auth.ComparePasswordAndHash(currentPassword, user.PasswordHash); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return model.NewPasswordMismatchError()
		}
		return fmt.Errorf("パスワードの検証に失敗しました: %w", err)
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
	}

	if err := s.userRepo.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return fmt.Errorf("パスワードの更新に失敗しました: %w", err)
	}

	slog.Info("password changed", slog.String("user_id", userID))
	return nil
}
