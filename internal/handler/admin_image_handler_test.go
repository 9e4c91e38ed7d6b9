package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/picshelf/internal/image"
	"github.com/hitoshi/picshelf/internal/model"
)

// --- モック定義 ---

type mockAdminImageService struct {
	listAllFn     func(ctx context.Context, page, limit int, q string) (*image.Page, error)
	adminDeleteFn func(ctx context.Context, imageID string) error
	updateFn      func(ctx context.Context, imageID string, params image.UpdateParams) (*model.Image, error)
	resizeFn      func(ctx context.Context, imageID string, width, height int) (*model.Image, error)
}

func (m *mockAdminImageService) ListAll(ctx context.Context, page, limit int, q string) (*image.Page, error) {
	if m.listAllFn != nil {
		return m.listAllFn(ctx, page, limit, q)
	}
	return &image.Page{Page: page, Limit: limit}, nil
}

func (m *mockAdminImageService) AdminDelete(ctx context.Context, imageID string) error {
	if m.adminDeleteFn != nil {
		return m.adminDeleteFn(ctx, imageID)
	}
	return nil
}

func (m *mockAdminImageService) Update(ctx context.Context, imageID string, params image.UpdateParams) (*model.Image, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, imageID, params)
	}
	return &model.Image{ID: imageID}, nil
}

func (m *mockAdminImageService) Resize(ctx context.Context, imageID string, width, height int) (*model.Image, error) {
	if m.resizeFn != nil {
		return m.resizeFn(ctx, imageID, width, height)
	}
	return &model.Image{ID: imageID}, nil
}

// --- テスト ---

func TestAdminImageHandler_List_PassesQuery(t *testing.T) {
	var gotPage, gotLimit int
	var gotQ string
	svc := &mockAdminImageService{
		listAllFn: func(ctx context.Context, page, limit int, q string) (*image.Page, error) {
			gotPage, gotLimit, gotQ = page, limit, q
			return &image.Page{Images: []*model.Image{{ID: "img1"}}, Total: 1, Page: page, Limit: limit}, nil
		},
	}
	h := NewAdminImageHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/images?page=2&limit=10&q=sunset", nil)
	w := httptest.NewRecorder()

	h.List(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotPage != 2 || gotLimit != 10 || gotQ != "sunset" {
		t.Errorf("args = (%d, %d, %q), want (2, 10, sunset)", gotPage, gotLimit, gotQ)
	}

	var body image.Page
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Total != 1 || len(body.Images) != 1 {
		t.Errorf("body = %+v, want one image", body)
	}
}

func TestAdminImageHandler_Update_Success(t *testing.T) {
	var gotID string
	var gotParams image.UpdateParams
	svc := &mockAdminImageService{
		updateFn: func(ctx context.Context, imageID string, params image.UpdateParams) (*model.Image, error) {
			gotID = imageID
			gotParams = params
			return &model.Image{ID: imageID, OriginalName: params.OriginalName, UserID: params.UserID}, nil
		},
	}
	h := NewAdminImageHandler(svc)

	payload, _ := json.Marshal(map[string]string{
		"originalName": "renamed.png",
		"userId":       "u2",
	})
	req := httptest.NewRequest(http.MethodPut, "/api/admin/images/img1", bytes.NewReader(payload))
	req = withURLParam(req, "id", "img1")
	w := httptest.NewRecorder()

	h.Update(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
	if gotID != "img1" {
		t.Errorf("imageID = %q, want img1", gotID)
	}
	if gotParams.OriginalName != "renamed.png" || gotParams.UserID != "u2" {
		t.Errorf("params = %+v, want request body values", gotParams)
	}
}

func TestAdminImageHandler_Update_BrokenBody(t *testing.T) {
	h := NewAdminImageHandler(&mockAdminImageService{})

	req := httptest.NewRequest(http.MethodPut, "/api/admin/images/img1", bytes.NewReader([]byte("{broken")))
	req = withURLParam(req, "id", "img1")
	w := httptest.NewRecorder()

	h.Update(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestAdminImageHandler_Update_NotFound(t *testing.T) {
	svc := &mockAdminImageService{
		updateFn: func(ctx context.Context, imageID string, params image.UpdateParams) (*model.Image, error) {
			return nil, model.NewImageNotFoundError(imageID)
		},
	}
	h := NewAdminImageHandler(svc)

	payload, _ := json.Marshal(map[string]string{"originalName": "x"})
	req := httptest.NewRequest(http.MethodPut, "/api/admin/images/ghost", bytes.NewReader(payload))
	req = withURLParam(req, "id", "ghost")
	w := httptest.NewRecorder()

	h.Update(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestAdminImageHandler_Delete_Success(t *testing.T) {
	var gotID string
	svc := &mockAdminImageService{
		adminDeleteFn: func(ctx context.Context, imageID string) error {
			gotID = imageID
			return nil
		},
	}
	h := NewAdminImageHandler(svc)

	req := httptest.NewRequest(http.MethodDelete, "/api/admin/images/img1", nil)
	req = withURLParam(req, "id", "img1")
	w := httptest.NewRecorder()

	h.Delete(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if gotID != "img1" {
		t.Errorf("imageID = %q, want img1", gotID)
	}
}

func TestAdminImageHandler_Resize_Success(t *testing.T) {
	var gotID string
	var gotW, gotH int
	svc := &mockAdminImageService{
		resizeFn: func(ctx context.Context, imageID string, width, height int) (*model.Image, error) {
			gotID, gotW, gotH = imageID, width, height
			return &model.Image{ID: imageID, Size: 1234}, nil
		},
	}
	h := NewAdminImageHandler(svc)

	payload, _ := json.Marshal(map[string]int{"width": 800, "height": 600})
	req := httptest.NewRequest(http.MethodPost, "/api/admin/images/img1/resize", bytes.NewReader(payload))
	req = withURLParam(req, "id", "img1")
	w := httptest.NewRecorder()

	h.Resize(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
	if gotID != "img1" || gotW != 800 || gotH != 600 {
		t.Errorf("args = (%q, %d, %d), want (img1, 800, 600)", gotID, gotW, gotH)
	}

	var img model.Image
	if err := json.NewDecoder(w.Body).Decode(&img); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if img.Size != 1234 {
		t.Errorf("size = %d, want the updated size", img.Size)
	}
}

func TestAdminImageHandler_Resize_InvalidDimensions(t *testing.T) {
	svc := &mockAdminImageService{
		resizeFn: func(ctx context.Context, imageID string, width, height int) (*model.Image, error) {
			return nil, model.NewInvalidDimensionsError()
		},
	}
	h := NewAdminImageHandler(svc)

	payload, _ := json.Marshal(map[string]int{"width": 0, "height": 0})
	req := httptest.NewRequest(http.MethodPost, "/api/admin/images/img1/resize", bytes.NewReader(payload))
	req = withURLParam(req, "id", "img1")
	w := httptest.NewRecorder()

	h.Resize(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestAdminImageHandler_Resize_ProcessingError(t *testing.T) {
	svc := &mockAdminImageService{
		resizeFn: func(ctx context.Context, imageID string, width, height int) (*model.Image, error) {
			return nil, model.NewProcessingError("decode failed")
		},
	}
	h := NewAdminImageHandler(svc)

	payload, _ := json.Marshal(map[string]int{"width": 100, "height": 100})
	req := httptest.NewRequest(http.MethodPost, "/api/admin/images/img1/resize", bytes.NewReader(payload))
	req = withURLParam(req, "id", "img1")
	w := httptest.NewRecorder()

	h.Resize(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}
