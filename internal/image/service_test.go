package image

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/picshelf/internal/model"
	"github.com/hitoshi/picshelf/internal/quota"
)

// --- モック定義 ---

type mockImageRepo struct {
	appendFn           func(ctx context.Context, ownerEmail string, img *model.Image) error
	listByOwnerFn      func(ctx context.Context, ownerEmail string, offset, limit int64) ([]*model.Image, int64, error)
	listAllByOwnerFn   func(ctx context.Context, ownerEmail string) ([]*model.Image, error)
	listAllFn          func(ctx context.Context) ([]*model.Image, error)
	findByIDFn         func(ctx context.Context, imageID string) (*model.Image, string, error)
	removeFn           func(ctx context.Context, ownerEmail, imageID string) (*model.Image, error)
	updateInPlaceFn    func(ctx context.Context, ownerEmail string, img *model.Image) error
	deleteAllByOwnerFn func(ctx context.Context, ownerEmail string) ([]*model.Image, error)
}

func (m *mockImageRepo) Append(ctx context.Context, ownerEmail string, img *model.Image) error {
	if m.appendFn != nil {
		return m.appendFn(ctx, ownerEmail, img)
	}
	return nil
}

func (m *mockImageRepo) ListByOwner(ctx context.Context, ownerEmail string, offset, limit int64) ([]*model.Image, int64, error) {
	if m.listByOwnerFn != nil {
		return m.listByOwnerFn(ctx, ownerEmail, offset, limit)
	}
	return nil, 0, nil
}

func (m *mockImageRepo) ListAllByOwner(ctx context.Context, ownerEmail string) ([]*model.Image, error) {
	if m.listAllByOwnerFn != nil {
		return m.listAllByOwnerFn(ctx, ownerEmail)
	}
	return nil, nil
}

func (m *mockImageRepo) ListAll(ctx context.Context) ([]*model.Image, error) {
	if m.listAllFn != nil {
		return m.listAllFn(ctx)
	}
	return nil, nil
}

func (m *mockImageRepo) FindByID(ctx context.Context, imageID string) (*model.Image, string, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, imageID)
	}
	return nil, "", nil
}

func (m *mockImageRepo) Remove(ctx context.Context, ownerEmail, imageID string) (*model.Image, error) {
	if m.removeFn != nil {
		return m.removeFn(ctx, ownerEmail, imageID)
	}
	return nil, nil
}

func (m *mockImageRepo) UpdateInPlace(ctx context.Context, ownerEmail string, img *model.Image) error {
	if m.updateInPlaceFn != nil {
		return m.updateInPlaceFn(ctx, ownerEmail, img)
	}
	return nil
}

func (m *mockImageRepo) DeleteAllByOwner(ctx context.Context, ownerEmail string) ([]*model.Image, error) {
	if m.deleteAllByOwnerFn != nil {
		return m.deleteAllByOwnerFn(ctx, ownerEmail)
	}
	return nil, nil
}

type mockUserRepo struct {
	findByEmailFn func(ctx context.Context, email string) (*model.User, error)
	findByIDFn    func(ctx context.Context, id string) (*model.User, error)
}

func (m *mockUserRepo) List(ctx context.Context) ([]*model.User, error) { return nil, nil }

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error { return nil }
func (m *mockUserRepo) Update(ctx context.Context, user *model.User) error { return nil }
func (m *mockUserRepo) Delete(ctx context.Context, id string) error        { return nil }

type mockStorage struct {
	saveFn      func(fileName string, data []byte) (string, error)
	deleteFn    func(rawURL string) error
	savedFiles  []string
	deletedURLs []string
}

func (m *mockStorage) Save(fileName string, data []byte) (string, error) {
	m.savedFiles = append(m.savedFiles, fileName)
	if m.saveFn != nil {
		return m.saveFn(fileName, data)
	}
	return "public/uploads/" + fileName, nil
}

func (m *mockStorage) Delete(rawURL string) error {
	m.deletedURLs = append(m.deletedURLs, rawURL)
	if m.deleteFn != nil {
		return m.deleteFn(rawURL)
	}
	return nil
}

func (m *mockStorage) ResolvePath(rawURL string) string { return "public/uploads/resolved.png" }
func (m *mockStorage) PublicURL(fileName string) string { return "/uploads-images/" + fileName }

type mockResizer struct {
	resizeFileFn func(path string, width, height int) (int64, error)
}

func (m *mockResizer) ResizeFile(path string, width, height int) (int64, error) {
	if m.resizeFileFn != nil {
		return m.resizeFileFn(path, width, height)
	}
	return 100, nil
}

type mockSanitizer struct {
	called bool
}

func (m *mockSanitizer) Sanitize(raw []byte) []byte {
	m.called = true
	return raw
}

func adminUploader() Uploader {
	return Uploader{UserID: "admin1", Email: "admin@example.com", Role: model.RoleAdmin}
}

func regularUploader() Uploader {
	return Uploader{UserID: "u1", Email: "a@example.com", Role: model.RoleUser}
}

func newUploadService(images *mockImageRepo, users *mockUserRepo, storage *mockStorage) *Service {
	if users == nil {
		users = &mockUserRepo{}
	}
	engine := quota.NewEngine(users, images)
	return NewService(images, users, engine, storage, &mockResizer{}, &mockSanitizer{}, nil)
}

// --- Upload テスト ---

func TestService_Upload_Success(t *testing.T) {
	var appended *model.Image
	images := &mockImageRepo{
		appendFn: func(ctx context.Context, ownerEmail string, img *model.Image) error {
			if ownerEmail != "a@example.com" {
				t.Errorf("ownerEmail = %q, want %q", ownerEmail, "a@example.com")
			}
			appended = img
			return nil
		},
	}
	storage := &mockStorage{}
	svc := newUploadService(images, nil, storage)

	results, err := svc.Upload(context.Background(), regularUploader(), []UploadFile{
		{Name: "photo.png", MIME: "image/png", Data: []byte("png-bytes")},
	})
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	if appended == nil {
		t.Fatal("expected Append to be called")
	}
	if appended.OriginalName != "photo.png" {
		t.Errorf("OriginalName = %q, want %q", appended.OriginalName, "photo.png")
	}
	if appended.Size != int64(len("png-bytes")) {
		t.Errorf("Size = %d, want %d", appended.Size, len("png-bytes"))
	}
	if appended.UserID != "u1" {
		t.Errorf("UserID = %q, want %q", appended.UserID, "u1")
	}
	// ストレージファイル名は元名と無関係のUUID+拡張子
	if appended.FileName == "photo.png" || len(appended.FileName) < 10 {
		t.Errorf("FileName = %q, want generated uuid name", appended.FileName)
	}
	if len(storage.savedFiles) != 1 {
		t.Errorf("saved files = %v, want 1 file", storage.savedFiles)
	}
}

func TestService_Upload_MultiFileRequiresAdmin(t *testing.T) {
	svc := newUploadService(&mockImageRepo{}, nil, &mockStorage{})

	files := []UploadFile{
		{Name: "a.png", MIME: "image/png", Data: []byte("a")},
		{Name: "b.png", MIME: "image/png", Data: []byte("b")},
	}

	_, err := svc.Upload(context.Background(), regularUploader(), files)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeForbidden {
		t.Errorf("err = %v, want FORBIDDEN for multi-file upload by regular user", err)
	}

	// 管理者なら許可される
	if _, err := svc.Upload(context.Background(), adminUploader(), files); err != nil {
		t.Errorf("admin multi-file upload failed: %v", err)
	}
}

func TestService_Upload_RejectsUnsupportedFormat(t *testing.T) {
	storage := &mockStorage{}
	svc := newUploadService(&mockImageRepo{}, nil, storage)

	tests := []UploadFile{
		// 拡張子が非対応
		{Name: "doc.pdf", MIME: "image/png", Data: []byte("x")},
		// MIMEタイプが非対応
		{Name: "photo.png", MIME: "application/pdf", Data: []byte("x")},
		// 両方非対応
		{Name: "run.exe", MIME: "application/octet-stream", Data: []byte("x")},
	}

	for _, f := range tests {
		_, err := svc.Upload(context.Background(), regularUploader(), []UploadFile{f})
		var apiErr *model.APIError
		if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeValidation {
			t.Errorf("Upload(%q/%q) err = %v, want VALIDATION_ERROR", f.Name, f.MIME, err)
		}
	}
	if len(storage.savedFiles) != 0 {
		t.Errorf("no files should be written on rejection, got %v", storage.savedFiles)
	}
}

func TestService_Upload_QuotaRejected_NoWrites(t *testing.T) {
	appendCalled := false
	images := &mockImageRepo{
		appendFn: func(ctx context.Context, ownerEmail string, img *model.Image) error {
			appendCalled = true
			return nil
		},
		listAllByOwnerFn: func(ctx context.Context, ownerEmail string) ([]*model.Image, error) {
			// 既に容量いっぱい
			return []*model.Image{{ID: "x", Size: 1024 * 1024}}, nil
		},
	}
	users := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			return &model.User{ID: "u1", Email: email, StorageMb: 1}, nil
		},
	}
	storage := &mockStorage{}
	svc := newUploadService(images, users, storage)

	_, err := svc.Upload(context.Background(), regularUploader(), []UploadFile{
		{Name: "photo.png", MIME: "image/png", Data: []byte("x")},
	})
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeQuotaExceeded {
		t.Fatalf("err = %v, want QUOTA_EXCEEDED", err)
	}

	// 拒否時は一切の書き込みを行わない
	if appendCalled {
		t.Error("ledger must not be written when quota is exceeded")
	}
	if len(storage.savedFiles) != 0 {
		t.Errorf("no files should be written when quota is exceeded, got %v", storage.savedFiles)
	}
}

func TestService_Upload_QuotaCheckedAgainstBatchTotal(t *testing.T) {
	// 各ファイル単体では収まるが合計で超えるバッチは拒否される
	images := &mockImageRepo{
		listAllByOwnerFn: func(ctx context.Context, ownerEmail string) ([]*model.Image, error) {
			return nil, nil
		},
	}
	users := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			return &model.User{ID: "admin1", Email: email, Role: model.RoleAdmin, StorageMb: 1}, nil
		},
	}
	svc := newUploadService(images, users, &mockStorage{})

	big := make([]byte, 600*1024)
	_, err := svc.Upload(context.Background(), adminUploader(), []UploadFile{
		{Name: "a.png", MIME: "image/png", Data: big},
		{Name: "b.png", MIME: "image/png", Data: big},
	})
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeQuotaExceeded {
		t.Errorf("err = %v, want QUOTA_EXCEEDED for batch total", err)
	}
}

func TestService_Upload_SanitizesSVG(t *testing.T) {
	sanitizer := &mockSanitizer{}
	images := &mockImageRepo{}
	users := &mockUserRepo{}
	engine := quota.NewEngine(users, images)
	svc := NewService(images, users, engine, &mockStorage{}, &mockResizer{}, sanitizer, nil)

	_, err := svc.Upload(context.Background(), regularUploader(), []UploadFile{
		{Name: "icon.svg", MIME: "image/svg+xml", Data: []byte("<svg onload=\"alert(1)\"/>")},
	})
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if !sanitizer.called {
		t.Error("expected SVG content to be sanitized")
	}
}

func TestService_Upload_EmptyBatch(t *testing.T) {
	svc := newUploadService(&mockImageRepo{}, nil, &mockStorage{})

	_, err := svc.Upload(context.Background(), regularUploader(), nil)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeValidation {
		t.Errorf("err = %v, want VALIDATION_ERROR for empty batch", err)
	}
}

// --- DeleteOwn テスト ---

func TestService_DeleteOwn_Success(t *testing.T) {
	images := &mockImageRepo{
		removeFn: func(ctx context.Context, ownerEmail, imageID string) (*model.Image, error) {
			return &model.Image{ID: imageID, URL: "/uploads-images/x.png"}, nil
		},
	}
	storage := &mockStorage{}
	svc := newUploadService(images, nil, storage)

	if err := svc.DeleteOwn(context.Background(), "a@example.com", "img1"); err != nil {
		t.Fatalf("DeleteOwn failed: %v", err)
	}
	if len(storage.deletedURLs) != 1 || storage.deletedURLs[0] != "/uploads-images/x.png" {
		t.Errorf("deletedURLs = %v, want the record's URL", storage.deletedURLs)
	}
}

func TestService_DeleteOwn_NotFound(t *testing.T) {
	svc := newUploadService(&mockImageRepo{}, nil, &mockStorage{})

	err := svc.DeleteOwn(context.Background(), "a@example.com", "missing")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeImageNotFound {
		t.Errorf("err = %v, want IMAGE_NOT_FOUND", err)
	}
}

func TestService_DeleteOwn_FileDeleteFailureIsBestEffort(t *testing.T) {
	images := &mockImageRepo{
		removeFn: func(ctx context.Context, ownerEmail, imageID string) (*model.Image, error) {
			return &model.Image{ID: imageID, URL: "/uploads-images/x.png"}, nil
		},
	}
	storage := &mockStorage{
		deleteFn: func(rawURL string) error { return errors.New("disk error") },
	}
	svc := newUploadService(images, nil, storage)

	// 実ファイル削除の失敗は台帳削除の成功を妨げない
	if err := svc.DeleteOwn(context.Background(), "a@example.com", "img1"); err != nil {
		t.Errorf("DeleteOwn = %v, want nil despite file delete failure", err)
	}
}

// --- ListAll テスト ---

func TestService_ListAll_FilterAndPaginate(t *testing.T) {
	images := &mockImageRepo{
		listAllFn: func(ctx context.Context) ([]*model.Image, error) {
			return []*model.Image{
				{ID: "img1", OriginalName: "vacation.png", FileName: "aaa.png"},
				{ID: "img2", OriginalName: "Work Report.jpg", FileName: "bbb.jpg"},
				{ID: "img3", OriginalName: "vacation2.jpg", FileName: "ccc.jpg"},
			}, nil
		},
	}
	svc := newUploadService(images, nil, &mockStorage{})

	// 検索は大文字小文字を区別しない部分一致
	page, err := svc.ListAll(context.Background(), 1, 10, "VACATION")
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	if page.Total != 2 || len(page.Images) != 2 {
		t.Errorf("total = %d len = %d, want 2/2", page.Total, len(page.Images))
	}

	// ページ範囲外は空ページ
	page, err = svc.ListAll(context.Background(), 5, 10, "")
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	if page.Total != 3 || len(page.Images) != 0 {
		t.Errorf("out-of-range page: total = %d len = %d, want 3/0", page.Total, len(page.Images))
	}
}

// --- Update（所有権移転）テスト ---

func TestService_Update_MovesOwnership(t *testing.T) {
	var removedFrom, appendedTo string
	var appendedImg *model.Image
	images := &mockImageRepo{
		findByIDFn: func(ctx context.Context, imageID string) (*model.Image, string, error) {
			return &model.Image{ID: "img1", UserID: "u1", OriginalName: "photo.png"}, "a@example.com", nil
		},
		removeFn: func(ctx context.Context, ownerEmail, imageID string) (*model.Image, error) {
			removedFrom = ownerEmail
			return &model.Image{ID: imageID}, nil
		},
		appendFn: func(ctx context.Context, ownerEmail string, img *model.Image) error {
			appendedTo = ownerEmail
			appendedImg = img
			return nil
		},
	}
	users := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			if id == "u2" {
				return &model.User{ID: "u2", Email: "b@example.com"}, nil
			}
			return nil, nil
		},
	}
	svc := newUploadService(images, users, &mockStorage{})

	updated, err := svc.Update(context.Background(), "img1", UpdateParams{UserID: "u2"})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if removedFrom != "a@example.com" {
		t.Errorf("removed from %q, want source ledger", removedFrom)
	}
	if appendedTo != "b@example.com" {
		t.Errorf("appended to %q, want destination ledger", appendedTo)
	}
	if updated.UserID != "u2" || appendedImg.UserID != "u2" {
		t.Errorf("UserID = %q/%q, want u2", updated.UserID, appendedImg.UserID)
	}
}

func TestService_Update_UnresolvableDestination_FallsBackToSource(t *testing.T) {
	var appendedTo string
	images := &mockImageRepo{
		findByIDFn: func(ctx context.Context, imageID string) (*model.Image, string, error) {
			return &model.Image{ID: "img1", UserID: "u1"}, "a@example.com", nil
		},
		appendFn: func(ctx context.Context, ownerEmail string, img *model.Image) error {
			appendedTo = ownerEmail
			return nil
		},
	}
	svc := newUploadService(images, &mockUserRepo{}, &mockStorage{})

	// 移転先ユーザーが解決できない場合は移転元の台帳に戻る
	if _, err := svc.Update(context.Background(), "img1", UpdateParams{UserID: "ghost"}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if appendedTo != "a@example.com" {
		t.Errorf("appended to %q, want source ledger fallback", appendedTo)
	}
}

func TestService_Update_RenameOnly(t *testing.T) {
	var appendedImg *model.Image
	images := &mockImageRepo{
		findByIDFn: func(ctx context.Context, imageID string) (*model.Image, string, error) {
			return &model.Image{ID: "img1", UserID: "u1", OriginalName: "old.png"}, "a@example.com", nil
		},
		appendFn: func(ctx context.Context, ownerEmail string, img *model.Image) error {
			appendedImg = img
			return nil
		},
	}
	svc := newUploadService(images, &mockUserRepo{}, &mockStorage{})

	updated, err := svc.Update(context.Background(), "img1", UpdateParams{OriginalName: "new.png"})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.OriginalName != "new.png" || appendedImg.OriginalName != "new.png" {
		t.Errorf("OriginalName = %q, want new.png", updated.OriginalName)
	}
	if updated.UserID != "u1" {
		t.Errorf("UserID = %q, want unchanged u1", updated.UserID)
	}
}

func TestService_Update_NotFound(t *testing.T) {
	svc := newUploadService(&mockImageRepo{}, &mockUserRepo{}, &mockStorage{})

	_, err := svc.Update(context.Background(), "missing", UpdateParams{OriginalName: "x"})
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeImageNotFound {
		t.Errorf("err = %v, want IMAGE_NOT_FOUND", err)
	}
}

// --- Resize テスト ---

func TestService_Resize_Success(t *testing.T) {
	var updatedInPlace *model.Image
	images := &mockImageRepo{
		findByIDFn: func(ctx context.Context, imageID string) (*model.Image, string, error) {
			return &model.Image{
				ID: "img1", FileName: "x.png", URL: "/uploads-images/x.png",
				Type: "image/png", Size: 5000,
			}, "a@example.com", nil
		},
		updateInPlaceFn: func(ctx context.Context, ownerEmail string, img *model.Image) error {
			updatedInPlace = img
			return nil
		},
	}
	resizer := &mockResizer{
		resizeFileFn: func(path string, width, height int) (int64, error) {
			if width != 800 || height != 0 {
				t.Errorf("resize dims = %dx%d, want 800x0", width, height)
			}
			return 1234, nil
		},
	}
	users := &mockUserRepo{}
	engine := quota.NewEngine(users, images)
	svc := NewService(images, users, engine, &mockStorage{}, resizer, &mockSanitizer{}, nil)

	updated, err := svc.Resize(context.Background(), "img1", 800, 0)
	if err != nil {
		t.Fatalf("Resize failed: %v", err)
	}
	if updated.Size != 1234 {
		t.Errorf("Size = %d, want 1234", updated.Size)
	}
	if updatedInPlace == nil || updatedInPlace.Size != 1234 {
		t.Error("expected ledger size to be updated in place")
	}
}

func TestService_Resize_InvalidDimensions(t *testing.T) {
	svc := newUploadService(&mockImageRepo{}, nil, &mockStorage{})

	for _, tc := range []struct{ w, h int }{
		{0, 0},
		{-1, 100},
		{100, -1},
	} {
		_, err := svc.Resize(context.Background(), "img1", tc.w, tc.h)
		var apiErr *model.APIError
		if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeValidation {
			t.Errorf("Resize(%d, %d) err = %v, want VALIDATION_ERROR", tc.w, tc.h, err)
		}
	}
}

func TestService_Resize_RejectsSVG(t *testing.T) {
	images := &mockImageRepo{
		findByIDFn: func(ctx context.Context, imageID string) (*model.Image, string, error) {
			return &model.Image{ID: "img1", FileName: "icon.svg", Type: "image/svg+xml"}, "a@example.com", nil
		},
	}
	svc := newUploadService(images, nil, &mockStorage{})

	_, err := svc.Resize(context.Background(), "img1", 100, 100)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeValidation {
		t.Errorf("err = %v, want VALIDATION_ERROR for SVG resize", err)
	}
}

func TestService_Resize_ProcessorFailure(t *testing.T) {
	images := &mockImageRepo{
		findByIDFn: func(ctx context.Context, imageID string) (*model.Image, string, error) {
			return &model.Image{ID: "img1", FileName: "x.png", Type: "image/png"}, "a@example.com", nil
		},
	}
	resizer := &mockResizer{
		resizeFileFn: func(path string, width, height int) (int64, error) {
			return 0, errors.New("corrupt image")
		},
	}
	users := &mockUserRepo{}
	engine := quota.NewEngine(users, images)
	svc := NewService(images, users, engine, &mockStorage{}, resizer, &mockSanitizer{}, nil)

	_, err := svc.Resize(context.Background(), "img1", 100, 100)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeProcessing {
		t.Errorf("err = %v, want PROCESSING_ERROR", err)
	}
}

// --- DeleteAllByOwner テスト ---

func TestService_DeleteAllByOwner_DeletesFiles(t *testing.T) {
	images := &mockImageRepo{
		deleteAllByOwnerFn: func(ctx context.Context, ownerEmail string) ([]*model.Image, error) {
			return []*model.Image{
				{ID: "img1", URL: "/uploads-images/a.png"},
				{ID: "img2", URL: "/uploads-images/b.png"},
			}, nil
		},
	}
	storage := &mockStorage{}
	svc := newUploadService(images, nil, storage)

	if err := svc.DeleteAllByOwner(context.Background(), "a@example.com"); err != nil {
		t.Fatalf("DeleteAllByOwner failed: %v", err)
	}
	if len(storage.deletedURLs) != 2 {
		t.Errorf("deletedURLs = %v, want 2 entries", storage.deletedURLs)
	}
}
