// Package user は管理者によるユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/picshelf/internal/auth"
	"github.com/hitoshi/picshelf/internal/model"
	"github.com/hitoshi/picshelf/internal/repository"
)

// ImageCleaner はユーザー削除時に画像をカスケード削除するインターフェース。
type ImageCleaner interface {
	DeleteAllByOwner(ctx context.Context, ownerEmail string) error
}

// Service はユーザー管理のサービス層。
type Service struct {
	users  repository.UserRepository
	images ImageCleaner
}

// NewService はServiceを生成する。
func NewService(users repository.UserRepository, images ImageCleaner) *Service {
	return &Service{users: users, images: images}
}

// List は全ユーザーを登録順で返す。パスワードハッシュは呼び出し側で落とすこと。
func (s *Service) List(ctx context.Context) ([]*model.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// CreateParams は管理者によるユーザー作成の入力を表す。
type CreateParams struct {
	Email     string
	Password  string
	Role      model.UserRole
	StorageMb int64
}

// Create は新しいユーザーアカウントを作成する。
// メールの重複は拒否する。ロール未指定時は一般ユーザー、
// 容量未指定時（0以下）は既定の1024MBとなる。
func (s *Service) Create(ctx context.Context, params CreateParams) (*model.User, error) {
	if params.Email == "" || params.Password == "" {
		return nil, model.NewValidationError("メールアドレスとパスワードは必須です。")
	}

	existing, err := s.users.FindByEmail(ctx, params.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, model.NewEmailTakenError()
	}

	hash, err := auth.HashPassword(params.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	role := params.Role
	if role != model.RoleAdmin {
		role = model.RoleUser
	}
	storageMb := params.StorageMb
	if storageMb <= 0 {
		storageMb = model.DefaultStorageMb
	}

	u := &model.User{
		ID:           auth.NewUserID(),
		Email:        params.Email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    time.Now().UTC().Format(time.RFC3339),
		StorageMb:    storageMb,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return u, nil
}

// UpdateParams は管理者によるユーザー更新の入力を表す。
// nilのフィールドは変更しない。
type UpdateParams struct {
	Email     *string
	Password  *string
	Role      *model.UserRole
	StorageMb *int64
}

// Update はユーザーの属性を部分更新する。
// 容量を既存使用量より小さく変更しても既存画像には影響しない
// （次回アップロード時の判定でのみ効く）。
// メール変更時、既存台帳キーは旧メールのまま残る点に注意。
func (s *Service) Update(ctx context.Context, userID string, params UpdateParams) (*model.User, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if u == nil {
		return nil, model.NewUserNotFoundError()
	}

	if params.Email != nil && *params.Email != "" && *params.Email != u.Email {
		existing, err := s.users.FindByEmail(ctx, *params.Email)
		if err != nil {
			return nil, fmt.Errorf("failed to check existing user: %w", err)
		}
		if existing != nil {
			return nil, model.NewEmailTakenError()
		}
		u.Email = *params.Email
	}
	if params.Password != nil && *params.Password != "" {
		hash, err := auth.HashPassword(*params.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		u.PasswordHash = hash
	}
	if params.Role != nil {
		if *params.Role == model.RoleAdmin {
			u.Role = model.RoleAdmin
		} else {
			u.Role = model.RoleUser
		}
	}
	if params.StorageMb != nil && *params.StorageMb > 0 {
		u.StorageMb = *params.StorageMb
	}

	if err := s.users.Update(ctx, u); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return u, nil
}

// Delete はユーザーを削除し、そのユーザーの画像台帳と実ファイルを
// カスケード削除する。ユーザー削除後に台帳削除が失敗した場合は
// エラーを返すが、ユーザー削除自体は巻き戻さない。
func (s *Service) Delete(ctx context.Context, userID string) error {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if u == nil {
		return model.NewUserNotFoundError()
	}

	if err := s.users.Delete(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	if s.images != nil {
		if err := s.images.DeleteAllByOwner(ctx, u.Email); err != nil {
			return fmt.Errorf("failed to cascade image deletion: %w", err)
		}
	}
	return nil
}
