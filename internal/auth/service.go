package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/hitoshi/picshelf/internal/model"
	"github.com/hitoshi/picshelf/internal/repository"
)

// Service は登録・ログインのドメインロジックを提供する。
type Service struct {
	users      repository.UserRepository
	jwtManager *JWTManager
}

// NewService はServiceを生成する。
func NewService(users repository.UserRepository, jwtManager *JWTManager) *Service {
	return &Service{
		users:      users,
		jwtManager: jwtManager,
	}
}

// Register は新規ユーザーを作成し、ベアラートークンを発行する。
// ロールは常にuser、容量はデフォルト（1024MB）。メール重複は拒否する。
func (s *Service) Register(ctx context.Context, email, password string) (*model.User, string, error) {
	if email == "" || password == "" {
		return nil, "", model.NewMissingFieldsError()
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, "", fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, "", model.NewEmailTakenError()
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, "", err
	}

	user := &model.User{
		ID:           NewUserID(),
		Email:        email,
		PasswordHash: hash,
		Role:         model.RoleUser,
		CreatedAt:    time.Now().UTC().Format(time.RFC3339),
		StorageMb:    model.DefaultStorageMb,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, "", fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.jwtManager.Generate(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Login はメールとパスワードを検証し、ベアラートークンを発行する。
// ユーザー不在とパスワード不一致は区別せず、同一のエラーを返す。
func (s *Service) Login(ctx context.Context, email, password string) (*model.User, string, error) {
	if email == "" || password == "" {
		return nil, "", model.NewMissingFieldsError()
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, "", fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil || !ComparePassword(password, user.PasswordHash) {
		return nil, "", model.NewUnauthorizedError()
	}

	token, err := s.jwtManager.Generate(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// NewUserID は user_{unixミリ秒}_{ランダム} 形式のユーザーIDを生成する。
// 既存データのID形式との互換を保つ。
func NewUserID() string {
	buf := make([]byte, 5)
	if _, err := rand.Read(buf); err != nil {
		// crypto/randの失敗は実用上発生しない。タイムスタンプのみで継続する。
		return fmt.Sprintf("user_%d_0000000000", time.Now().UnixMilli())
	}
	return fmt.Sprintf("user_%d_%s", time.Now().UnixMilli(), hex.EncodeToString(buf))
}
