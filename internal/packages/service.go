// Package packages はストレージパッケージ（料金プラン表示用データ）の
// 取得と更新を提供する。
package packages

import (
	"context"
	"fmt"

	"github.com/hitoshi/picshelf/internal/model"
	"github.com/hitoshi/picshelf/internal/repository"
)

// Service はストレージパッケージのサービス層。
type Service struct {
	repo repository.PackageRepository
}

// NewService はServiceを生成する。
func NewService(repo repository.PackageRepository) *Service {
	return &Service{repo: repo}
}

// Get はパッケージ一覧を返す。未設定の場合は既定の3件を返す。
func (s *Service) Get(ctx context.Context) ([]model.StoragePackage, error) {
	pkgs, err := s.repo.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get packages: %w", err)
	}
	return pkgs, nil
}

// Put はパッケージ一覧を置き換える。ちょうど3件で、各要素は
// 名前が非空かつbytesが正でなければならない。
func (s *Service) Put(ctx context.Context, pkgs []model.StoragePackage) error {
	if len(pkgs) != model.StoragePackageCount {
		return model.NewValidationError(
			fmt.Sprintf("パッケージはちょうど%d件必要です。", model.StoragePackageCount))
	}
	for _, p := range pkgs {
		if p.Name == "" {
			return model.NewValidationError("パッケージ名は必須です。")
		}
		if p.Bytes <= 0 {
			return model.NewValidationError("パッケージ容量は正の値でなければなりません。")
		}
	}
	if err := s.repo.Put(ctx, pkgs); err != nil {
		return fmt.Errorf("failed to save packages: %w", err)
	}
	return nil
}
