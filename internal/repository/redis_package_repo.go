package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/picshelf/internal/model"
	"github.com/hitoshi/picshelf/internal/store"
)

// PackagesKey は容量パッケージリストの格納キー。
const PackagesKey = "packages:storage"

// RedisPackageRepo は容量パッケージのリポジトリ。
// リスト全体を単一のJSON文字列として格納する。
type RedisPackageRepo struct {
	kv store.KV
}

// NewRedisPackageRepo はRedisPackageRepoを生成する。
func NewRedisPackageRepo(kv store.KV) *RedisPackageRepo {
	return &RedisPackageRepo{kv: kv}
}

// Get は格納済みパッケージを返す。未設定の場合はデフォルト3件を返す。
func (r *RedisPackageRepo) Get(ctx context.Context) ([]model.StoragePackage, error) {
	raw, err := r.kv.Get(ctx, PackagesKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read packages: %w", err)
	}
	if raw == "" {
		return model.DefaultStoragePackages(), nil
	}

	var pkgs []model.StoragePackage
	if err := json.Unmarshal([]byte(raw), &pkgs); err != nil {
		return nil, fmt.Errorf("failed to parse packages: %w", err)
	}
	return pkgs, nil
}

// Put はパッケージリスト全体を置き換える。
func (r *RedisPackageRepo) Put(ctx context.Context, pkgs []model.StoragePackage) error {
	data, err := json.Marshal(pkgs)
	if err != nil {
		return fmt.Errorf("failed to marshal packages: %w", err)
	}
	if err := r.kv.Set(ctx, PackagesKey, string(data)); err != nil {
		return fmt.Errorf("failed to write packages: %w", err)
	}
	return nil
}
