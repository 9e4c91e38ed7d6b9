package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/picshelf/internal/image"
	"github.com/hitoshi/picshelf/internal/model"
)

// AdminImageServiceInterface は管理者用画像ハンドラーが必要とするサービスインターフェース。
type AdminImageServiceInterface interface {
	// ListAll は全所有者の画像の1ページ分を返す。qは部分一致検索。
	ListAll(ctx context.Context, page, limit int, q string) (*image.Page, error)
	// AdminDelete は所有者を問わず画像を1件削除する。
	AdminDelete(ctx context.Context, imageID string) error
	// Update は表示名の変更および所有権の移転を行う。
	Update(ctx context.Context, imageID string, params image.UpdateParams) (*model.Image, error)
	// Resize は画像を縮小し、台帳のサイズを更新する。
	Resize(ctx context.Context, imageID string, width, height int) (*model.Image, error)
}

// AdminImageHandler は管理者向け画像操作のHTTPハンドラー。
type AdminImageHandler struct {
	service AdminImageServiceInterface
}

// NewAdminImageHandler はAdminImageHandlerを生成する。
func NewAdminImageHandler(service AdminImageServiceInterface) *AdminImageHandler {
	return &AdminImageHandler{
		service: service,
	}
}

// adminImageUpdateRequest は画像更新リクエストのボディ。
type adminImageUpdateRequest struct {
	OriginalName string `json:"originalName"`
	UserID       string `json:"userId"`
}

// adminImageResizeRequest はリサイズリクエストのボディ。
type adminImageResizeRequest struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// List は全ユーザーの画像一覧を取得する。
// GET /api/admin/images?page=1&limit=20&q=
func (h *AdminImageHandler) List(w http.ResponseWriter, r *http.Request) {
	page, limit := parsePagination(r)
	q := r.URL.Query().Get("q")

	result, err := h.service.ListAll(r.Context(), page, limit, q)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// Update は画像の表示名変更・所有権移転を行う。
// PUT /api/admin/images/{id}
func (h *AdminImageHandler) Update(w http.ResponseWriter, r *http.Request) {
	imageID := chi.URLParam(r, "id")

	var req adminImageUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequestBody(w)
		return
	}

	img, err := h.service.Update(r.Context(), imageID, image.UpdateParams{
		OriginalName: req.OriginalName,
		UserID:       req.UserID,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(img)
}

// Delete は所有者を問わず画像を削除する。
// DELETE /api/admin/images/{id}
func (h *AdminImageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	imageID := chi.URLParam(r, "id")

	if err := h.service.AdminDelete(r.Context(), imageID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Resize は画像をサーバー側で縮小する。
// POST /api/admin/images/{id}/resize
func (h *AdminImageHandler) Resize(w http.ResponseWriter, r *http.Request) {
	imageID := chi.URLParam(r, "id")

	var req adminImageResizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequestBody(w)
		return
	}

	img, err := h.service.Resize(r.Context(), imageID, req.Width, req.Height)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(img)
}
