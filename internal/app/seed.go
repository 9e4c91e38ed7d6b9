package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/picshelf/internal/auth"
	"github.com/hitoshi/picshelf/internal/model"
	"github.com/hitoshi/picshelf/internal/repository"
	"github.com/hitoshi/picshelf/internal/store"
)

// seedAdmin はADMIN_EMAIL/ADMIN_PASSWORDが設定されている場合に
// 管理者アカウントを作成する。同じメールのユーザーが既に存在する場合は
// 何もしない（冪等）。
func seedAdmin(ctx context.Context, users repository.UserRepository, email, password string) error {
	if email == "" || password == "" {
		return nil
	}

	existing, err := users.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to check admin account: %w", err)
	}
	if existing != nil {
		return nil
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin := &model.User{
		ID:           auth.NewUserID(),
		Email:        email,
		PasswordHash: hash,
		Role:         model.RoleAdmin,
		CreatedAt:    time.Now().UTC().Format(time.RFC3339),
		StorageMb:    model.DefaultStorageMb,
	}
	if err := users.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin account: %w", err)
	}

	slog.Info("admin account seeded", slog.String("email", email))
	return nil
}

// cleanupLegacyKeys は旧スキーマのキーを削除する。
// 旧スキーマでは userlist / images（単一キー）と user_images:{email} /
// images:{email}:{n} 形式を使用していた。現行スキーマへの移行後に残った
// ゴミを起動時に片付ける。失敗は起動を妨げない。
func cleanupLegacyKeys(ctx context.Context, kv store.KV) {
	if err := kv.Del(ctx, "userlist", "images"); err != nil {
		slog.Warn("failed to delete legacy keys", slog.String("error", err.Error()))
	}

	for _, pattern := range []string{"user_images:*", "images:*:*"} {
		keys, err := kv.Keys(ctx, pattern)
		if err != nil {
			slog.Warn("failed to scan legacy keys",
				slog.String("pattern", pattern),
				slog.String("error", err.Error()),
			)
			continue
		}
		if len(keys) == 0 {
			continue
		}
		if err := kv.Del(ctx, keys...); err != nil {
			slog.Warn("failed to delete legacy keys",
				slog.String("pattern", pattern),
				slog.String("error", err.Error()),
			)
			continue
		}
		slog.Info("legacy keys cleaned up",
			slog.String("pattern", pattern),
			slog.Int("count", len(keys)),
		)
	}
}
