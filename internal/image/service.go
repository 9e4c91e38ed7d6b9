// Package image は画像のアップロード・一覧・削除・所有権移転・リサイズの
// ドメインロジックを提供する。
package image

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/picshelf/internal/model"
	"github.com/hitoshi/picshelf/internal/quota"
	"github.com/hitoshi/picshelf/internal/repository"
	"github.com/hitoshi/picshelf/internal/resize"
)

// Storage はサービスが必要とするストレージバックエンドのインターフェース。
type Storage interface {
	Save(fileName string, data []byte) (string, error)
	Delete(rawURL string) error
	ResolvePath(rawURL string) string
	PublicURL(fileName string) string
}

// Resizer はラスター画像のリサイズ処理のインターフェース。
type Resizer interface {
	ResizeFile(path string, width, height int) (int64, error)
}

// SVGSanitizer はSVGコンテンツのサニタイズ処理のインターフェース。
type SVGSanitizer interface {
	Sanitize(raw []byte) []byte
}

// Metrics はサービスが記録するメトリクスのインターフェース。nil可。
type Metrics interface {
	RecordUpload(sizeBytes int64)
	RecordQuotaRejected()
	RecordImageDeleted()
	RecordResize()
}

// Service は画像管理のサービス層。
type Service struct {
	images    repository.ImageRepository
	users     repository.UserRepository
	quota     *quota.Engine
	storage   Storage
	resizer   Resizer
	sanitizer SVGSanitizer
	metrics   Metrics
}

// NewService はServiceを生成する。metricsはnil可。
func NewService(
	images repository.ImageRepository,
	users repository.UserRepository,
	quotaEngine *quota.Engine,
	storage Storage,
	resizer Resizer,
	sanitizer SVGSanitizer,
	metrics Metrics,
) *Service {
	return &Service{
		images:    images,
		users:     users,
		quota:     quotaEngine,
		storage:   storage,
		resizer:   resizer,
		sanitizer: sanitizer,
		metrics:   metrics,
	}
}

// UploadFile はアップロードされた1ファイルの内容を表す。
type UploadFile struct {
	Name string // 元のファイル名（表示名）
	MIME string // Content-Typeヘッダで申告されたMIMEタイプ
	Data []byte
}

// UploadResult はアップロード成功1件の結果を表す。
type UploadResult struct {
	URL  string `json:"url"`
	Name string `json:"name"`
	UUID string `json:"uuid"`
	ID   string `json:"id"`
	Size int64  `json:"size"`
	Type string `json:"type"`
}

// Page は画像一覧の1ページを表す。
type Page struct {
	Images []*model.Image `json:"images"`
	Total  int64          `json:"total"`
	Page   int            `json:"page"`
	Limit  int            `json:"limit"`
}

// Upload はファイル群を検証し、容量を判定したうえで保存する。
// 複数ファイルの一括アップロードは管理者のみ許可される。
// 容量判定はバッチ合計に対して1回行い、拒否時は一切の書き込みを行わない。
// 成功した各ファイルは所有者の台帳の先頭に挿入される（最新が先頭）。
func (s *Service) Upload(ctx context.Context, claims Uploader, files []UploadFile) ([]*UploadResult, error) {
	if len(files) == 0 {
		return nil, model.NewValidationError("ファイルがありません。")
	}
	if len(files) > 1 && claims.Role != model.RoleAdmin {
		return nil, model.NewForbiddenError()
	}

	// 拡張子とMIMEタイプの両方を検証する（どちらか一方では不十分）
	var total int64
	for _, f := range files {
		ext := strings.ToLower(filepath.Ext(f.Name))
		mime := strings.ToLower(f.MIME)
		if !model.AllowedExtensions[ext] || !model.AllowedMIMETypes[mime] {
			return nil, model.NewUnsupportedFormatError(f.Name)
		}
		total += int64(len(f.Data))
	}

	res, err := s.quota.CheckAndReserve(ctx, claims.Email, total)
	if err != nil {
		return nil, fmt.Errorf("failed to check quota: %w", err)
	}
	if !res.Allowed {
		if s.metrics != nil {
			s.metrics.RecordQuotaRejected()
		}
		return nil, model.NewQuotaExceededError(res.RemainingBytes)
	}

	results := make([]*UploadResult, 0, len(files))
	for _, f := range files {
		ext := strings.ToLower(filepath.Ext(f.Name))
		data := f.Data
		if ext == ".svg" && s.sanitizer != nil {
			data = s.sanitizer.Sanitize(data)
		}

		fileName := uuid.NewString() + ext
		if _, err := s.storage.Save(fileName, data); err != nil {
			return nil, fmt.Errorf("failed to store file: %w", err)
		}

		img := &model.Image{
			ID:           uuid.NewString(),
			UserID:       claims.UserID,
			OriginalName: f.Name,
			FileName:     fileName,
			URL:          s.storage.PublicURL(fileName),
			Size:         int64(len(data)),
			Type:         strings.ToLower(f.MIME),
			UploadedAt:   time.Now().UTC().Format(time.RFC3339),
		}

		if err := s.images.Append(ctx, claims.Email, img); err != nil {
			return nil, fmt.Errorf("failed to record upload: %w", err)
		}

		if s.metrics != nil {
			s.metrics.RecordUpload(img.Size)
		}

		results = append(results, &UploadResult{
			URL:  img.URL,
			Name: img.OriginalName,
			UUID: img.FileName,
			ID:   img.ID,
			Size: img.Size,
			Type: img.Type,
		})
	}

	return results, nil
}

// Uploader はアップロード操作の実行者を表す。
type Uploader struct {
	UserID string
	Email  string
	Role   model.UserRole
}

// ListOwn は実行者自身の台帳の1ページ分を返す。
// 台帳は最新が先頭のため、同一ページへの再リクエストは
// 変更がない限り同一の順序付きコレクションを返す。
func (s *Service) ListOwn(ctx context.Context, email string, page, limit int) (*Page, error) {
	offset := int64(page-1) * int64(limit)
	images, total, err := s.images.ListByOwner(ctx, email, offset, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	return &Page{Images: images, Total: total, Page: page, Limit: limit}, nil
}

// DeleteOwn は実行者自身の台帳から画像を1件削除する。
// 実ファイルの削除はベストエフォートで、失敗しても警告ログのみで続行する
// （台帳から消えたレコードのファイルが孤児として残りうる。許容動作）。
func (s *Service) DeleteOwn(ctx context.Context, email, imageID string) error {
	removed, err := s.images.Remove(ctx, email, imageID)
	if err != nil {
		return fmt.Errorf("failed to remove image: %w", err)
	}
	if removed == nil {
		return model.NewImageNotFoundError(imageID)
	}

	s.deleteFile(removed)
	if s.metrics != nil {
		s.metrics.RecordImageDeleted()
	}
	return nil
}

// ListAll は全所有者の画像を平坦化し、アップロード時刻の降順で1ページ分返す。
// qが空でない場合は表示名・ストレージファイル名・画像IDの部分一致で絞り込む。
// 全画像数に比例するフルスキャン（データセットが小さい前提の管理者操作）。
func (s *Service) ListAll(ctx context.Context, page, limit int, q string) (*Page, error) {
	images, err := s.images.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list all images: %w", err)
	}

	if q != "" {
		needle := strings.ToLower(q)
		filtered := make([]*model.Image, 0, len(images))
		for _, img := range images {
			if strings.Contains(strings.ToLower(img.OriginalName), needle) ||
				strings.Contains(strings.ToLower(img.FileName), needle) ||
				strings.Contains(strings.ToLower(img.ID), needle) {
				filtered = append(filtered, img)
			}
		}
		images = filtered
	}

	total := int64(len(images))
	start := (page - 1) * limit
	if start > len(images) {
		start = len(images)
	}
	end := start + limit
	if end > len(images) {
		end = len(images)
	}

	return &Page{Images: images[start:end], Total: total, Page: page, Limit: limit}, nil
}

// AdminDelete は所有者を問わず画像を1件削除する。
func (s *Service) AdminDelete(ctx context.Context, imageID string) error {
	img, ownerEmail, err := s.images.FindByID(ctx, imageID)
	if err != nil {
		return fmt.Errorf("failed to find image: %w", err)
	}
	if img == nil {
		return model.NewImageNotFoundError(imageID)
	}

	removed, err := s.images.Remove(ctx, ownerEmail, img.ID)
	if err != nil {
		return fmt.Errorf("failed to remove image: %w", err)
	}
	if removed == nil {
		return model.NewImageNotFoundError(imageID)
	}

	s.deleteFile(removed)
	if s.metrics != nil {
		s.metrics.RecordImageDeleted()
	}
	return nil
}

// UpdateParams は管理者による画像更新の入力を表す。
type UpdateParams struct {
	OriginalName string // 空の場合は変更しない
	UserID       string // 空の場合は所有者を変更しない
}

// Update は表示名の変更および所有権の移転を行う。
// 移転先はUserIDからユーザーディレクトリを引いてメールを解決する。
// 解決に失敗した場合は移転先を現所有者とする（実質no-opの移動）。
// レコードは移転元の台帳から取り除かれ、移転先の台帳の先頭に挿入される。
// このremove→insertはアトミックではない（既知の弱整合性として維持）。
func (s *Service) Update(ctx context.Context, imageID string, params UpdateParams) (*model.Image, error) {
	img, ownerEmail, err := s.images.FindByID(ctx, imageID)
	if err != nil {
		return nil, fmt.Errorf("failed to find image: %w", err)
	}
	if img == nil {
		return nil, model.NewImageNotFoundError(imageID)
	}

	updated := *img
	if params.OriginalName != "" {
		updated.OriginalName = params.OriginalName
	}
	if params.UserID != "" {
		updated.UserID = params.UserID
	}

	// 移転先メールの解決。見つからない場合は移転元に戻す。
	destEmail := ownerEmail
	if params.UserID != "" {
		destUser, err := s.users.FindByID(ctx, params.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve destination user: %w", err)
		}
		if destUser != nil {
			destEmail = destUser.Email
		}
	}

	if _, err := s.images.Remove(ctx, ownerEmail, img.ID); err != nil {
		return nil, fmt.Errorf("failed to remove image from source ledger: %w", err)
	}
	if err := s.images.Append(ctx, destEmail, &updated); err != nil {
		return nil, fmt.Errorf("failed to insert image into destination ledger: %w", err)
	}

	return &updated, nil
}

// Resize は画像を指定ボックスに収まるよう縮小し、台帳のサイズを更新する。
// widthとheightの少なくとも一方が必須で、指定する場合は正でなければならない。
// SVGは拒否する。部分的な上書きのロールバックは行わない。
func (s *Service) Resize(ctx context.Context, imageID string, width, height int) (*model.Image, error) {
	if (width <= 0 && height <= 0) || width < 0 || height < 0 {
		return nil, model.NewInvalidDimensionsError()
	}

	img, ownerEmail, err := s.images.FindByID(ctx, imageID)
	if err != nil {
		return nil, fmt.Errorf("failed to find image: %w", err)
	}
	if img == nil {
		return nil, model.NewImageNotFoundError(imageID)
	}
	if img.IsSVG() {
		return nil, model.NewSVGResizeError()
	}

	path := s.storage.ResolvePath(img.URL)
	newSize, err := s.resizer.ResizeFile(path, width, height)
	if err != nil {
		if errors.Is(err, resize.ErrUnsupportedFormat) {
			return nil, model.NewSVGResizeError()
		}
		return nil, model.NewProcessingError(err.Error())
	}

	updated := *img
	updated.Size = newSize
	if err := s.images.UpdateInPlace(ctx, ownerEmail, &updated); err != nil {
		return nil, fmt.Errorf("failed to update image size: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordResize()
	}
	return &updated, nil
}

// DeleteAllByOwner は所有者の台帳と実ファイルをすべて削除する。
// ユーザー削除時のカスケードで使用する。各ファイルの削除はベストエフォート。
func (s *Service) DeleteAllByOwner(ctx context.Context, ownerEmail string) error {
	images, err := s.images.DeleteAllByOwner(ctx, ownerEmail)
	if err != nil {
		return fmt.Errorf("failed to delete ledger: %w", err)
	}
	for _, img := range images {
		s.deleteFile(img)
		if s.metrics != nil {
			s.metrics.RecordImageDeleted()
		}
	}
	return nil
}

// deleteFile は実ファイルをベストエフォートで削除する。
// ファイル不在は正常（すでに削除済み）として扱い、その他の失敗は警告ログのみ。
func (s *Service) deleteFile(img *model.Image) {
	if err := s.storage.Delete(img.URL); err != nil {
		slog.Warn("failed to delete backing file",
			slog.String("image_id", img.ID),
			slog.String("url", img.URL),
			slog.String("error", err.Error()),
		)
	}
}
