package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/picshelf/internal/model"
)

// PackageServiceInterface はパッケージハンドラーが必要とするサービスインターフェース。
type PackageServiceInterface interface {
	// Get はパッケージ一覧を返す。未設定の場合は既定の3件。
	Get(ctx context.Context) ([]model.StoragePackage, error)
	// Put はパッケージ一覧を置き換える。
	Put(ctx context.Context, pkgs []model.StoragePackage) error
}

// PackageHandler はストレージパッケージのHTTPハンドラー。
// 取得は認証不要（料金表の公開表示用）、更新は管理者のみ。
type PackageHandler struct {
	service PackageServiceInterface
}

// NewPackageHandler はPackageHandlerを生成する。
func NewPackageHandler(service PackageServiceInterface) *PackageHandler {
	return &PackageHandler{
		service: service,
	}
}

// Get はパッケージ一覧を取得する。
// GET /api/packages および GET /api/admin/packages
func (h *PackageHandler) Get(w http.ResponseWriter, r *http.Request) {
	pkgs, err := h.service.Get(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(pkgs)
}

// Put はパッケージ一覧を置き換える。
// PUT /api/admin/packages
func (h *PackageHandler) Put(w http.ResponseWriter, r *http.Request) {
	var pkgs []model.StoragePackage
	if err := json.NewDecoder(r.Body).Decode(&pkgs); err != nil {
		writeBadRequestBody(w)
		return
	}

	if err := h.service.Put(r.Context(), pkgs); err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(pkgs)
}
