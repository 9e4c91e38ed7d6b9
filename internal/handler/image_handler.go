package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/picshelf/internal/image"
	"github.com/hitoshi/picshelf/internal/middleware"
	"github.com/hitoshi/picshelf/internal/model"
)

// アップロード時のマルチパート読み込みに使うメモリ上限（バイト）。
// 超過分は一時ファイルに退避される。
const maxMultipartMemory = 32 << 20

// ImageServiceInterface は画像ハンドラーが必要とするサービスインターフェース。
type ImageServiceInterface interface {
	// Upload はファイル群を検証・容量判定したうえで保存する。
	Upload(ctx context.Context, uploader image.Uploader, files []image.UploadFile) ([]*image.UploadResult, error)
	// ListOwn は実行者自身の画像一覧の1ページ分を返す。
	ListOwn(ctx context.Context, email string, page, limit int) (*image.Page, error)
	// DeleteOwn は実行者自身の画像を1件削除する。
	DeleteOwn(ctx context.Context, email, imageID string) error
}

// ImageHandler は一般ユーザー向け画像操作のHTTPハンドラー。
type ImageHandler struct {
	service ImageServiceInterface
}

// NewImageHandler はImageHandlerを生成する。
func NewImageHandler(service ImageServiceInterface) *ImageHandler {
	return &ImageHandler{
		service: service,
	}
}

// Upload はマルチパートフォームのファイルを受け取り保存する。
// フィールド名は files を優先し、後方互換のため file にもフォールバックする。
// POST /api/upload
func (h *ImageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	claims, err := middleware.ClaimsFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("マルチパートフォームの解析に失敗しました。"))
		return
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		headers = r.MultipartForm.File["file"]
	}
	if len(headers) == 0 {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("ファイルがありません。"))
		return
	}

	files := make([]image.UploadFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			handleServiceError(w, err)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			handleServiceError(w, err)
			return
		}
		files = append(files, image.UploadFile{
			Name: fh.Filename,
			MIME: fh.Header.Get("Content-Type"),
			Data: data,
		})
	}

	results, err := h.service.Upload(r.Context(), image.Uploader{
		UserID: claims.UserID,
		Email:  claims.Email,
		Role:   claims.Role,
	}, files)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{"files": results})
}

// List は実行者自身の画像一覧を取得する。
// GET /api/images?page=1&limit=20
func (h *ImageHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, err := middleware.ClaimsFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	page, limit := parsePagination(r)
	result, err := h.service.ListOwn(r.Context(), claims.Email, page, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// Delete は実行者自身の画像を削除する。
// IDはidクエリパラメータで受け取り、パスパラメータにもフォールバックする。
// DELETE /api/images?id= および DELETE /api/images/{id}
func (h *ImageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, err := middleware.ClaimsFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	imageID := chi.URLParam(r, "id")
	if imageID == "" {
		imageID = r.URL.Query().Get("id")
	}
	if imageID == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("idは必須です。"))
		return
	}

	if err := h.service.DeleteOwn(r.Context(), claims.Email, imageID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// parsePagination はpage/limitクエリパラメータを解析する。
// 不正値・未指定はデフォルト（page=1, limit=20）に丸める。limitの上限は100。
func parsePagination(r *http.Request) (page, limit int) {
	page = 1
	limit = 20
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 0 {
		page = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}

// FileStorage は配信ハンドラーが必要とするストレージインターフェース。
type FileStorage interface {
	FilePath(fileName string) string
	Read(path string) ([]byte, error)
}

// ByteResizer は配信時リサイズに必要なインターフェース。
type ByteResizer interface {
	ResizeBytes(data []byte, ext string, width, height int) ([]byte, error)
}

// ServeHandler はアップロード済みファイルの配信ハンドラー。
// resizerがnilの場合、配信時リサイズは501を返す。
type ServeHandler struct {
	storage FileStorage
	resizer ByteResizer
}

// NewServeHandler はServeHandlerを生成する。
func NewServeHandler(storage FileStorage, resizer ByteResizer) *ServeHandler {
	return &ServeHandler{
		storage: storage,
		resizer: resizer,
	}
}

// contentTypeByExtension は拡張子からContent-Typeを決定する。
// ファイル内容のスニッフィングは行わない。
func contentTypeByExtension(fileName string) string {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".svg":
		return "image/svg+xml"
	default:
		return "application/octet-stream"
	}
}

// Serve はアップロード済みファイルを配信する。認証不要。
// ファイル名はUUIDのため内容は不変であり、immutableキャッシュを指示する。
// w/hクエリパラメータで配信時の縮小を要求できる（SVGは非対応）。
// GET /uploads-images/{filename}
func (h *ServeHandler) Serve(w http.ResponseWriter, r *http.Request) {
	fileName := chi.URLParam(r, "filename")
	path := h.storage.FilePath(fileName)

	data, err := h.storage.Read(path)
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewImageNotFoundError(fileName))
		return
	}

	width := parseDimension(r.URL.Query().Get("w"))
	height := parseDimension(r.URL.Query().Get("h"))
	if width > 0 || height > 0 {
		ext := strings.ToLower(filepath.Ext(fileName))
		if h.resizer == nil || ext == ".svg" {
			middleware.WriteErrorResponse(w, http.StatusNotImplemented,
				model.NewValidationError("このファイルは配信時リサイズに対応していません。"))
			return
		}
		resized, err := h.resizer.ResizeBytes(data, ext, width, height)
		if err != nil {
			handleServiceError(w, model.NewProcessingError(err.Error()))
			return
		}
		data = resized
	}

	w.Header().Set("Content-Type", contentTypeByExtension(fileName))
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Write(data)
}

// parseDimension はw/hクエリパラメータを解析する。不正値・未指定は0。
func parseDimension(raw string) int {
	if raw == "" {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0
	}
	return v
}
