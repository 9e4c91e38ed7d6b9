package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/picshelf/internal/model"
	"github.com/hitoshi/picshelf/internal/user"
)

// AdminUserServiceInterface は管理者用ユーザーハンドラーが必要とするサービスインターフェース。
type AdminUserServiceInterface interface {
	// List は全ユーザーを登録順で返す。
	List(ctx context.Context) ([]*model.User, error)
	// Create は新しいユーザーアカウントを作成する。
	Create(ctx context.Context, params user.CreateParams) (*model.User, error)
	// Update はユーザーの属性を部分更新する。
	Update(ctx context.Context, userID string, params user.UpdateParams) (*model.User, error)
	// Delete はユーザーと画像をカスケード削除する。
	Delete(ctx context.Context, userID string) error
}

// AdminUserHandler は管理者向けユーザー管理のHTTPハンドラー。
type AdminUserHandler struct {
	service AdminUserServiceInterface
}

// NewAdminUserHandler はAdminUserHandlerを生成する。
func NewAdminUserHandler(service AdminUserServiceInterface) *AdminUserHandler {
	return &AdminUserHandler{
		service: service,
	}
}

// adminUserCreateRequest はユーザー作成リクエストのボディ。
type adminUserCreateRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Role      string `json:"role"`
	StorageMb int64  `json:"storageMb"`
}

// adminUserUpdateRequest はユーザー更新リクエストのボディ。nilのフィールドは変更しない。
type adminUserUpdateRequest struct {
	Email     *string `json:"email"`
	Password  *string `json:"password"`
	Role      *string `json:"role"`
	StorageMb *int64  `json:"storageMb"`
}

// List は全ユーザー一覧を取得する。パスワードハッシュは含めない。
// GET /api/admin/users
func (h *AdminUserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]userResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, newUserResponse(u))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// Create は新しいユーザーを作成する。
// POST /api/admin/users
func (h *AdminUserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req adminUserCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequestBody(w)
		return
	}

	u, err := h.service.Create(r.Context(), user.CreateParams{
		Email:     req.Email,
		Password:  req.Password,
		Role:      model.UserRole(req.Role),
		StorageMb: req.StorageMb,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(newUserResponse(u))
}

// Update はユーザーの属性を部分更新する。
// PUT /api/admin/users/{id}
func (h *AdminUserHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	var req adminUserUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequestBody(w)
		return
	}

	params := user.UpdateParams{
		Email:     req.Email,
		Password:  req.Password,
		StorageMb: req.StorageMb,
	}
	if req.Role != nil {
		role := model.UserRole(*req.Role)
		params.Role = &role
	}

	u, err := h.service.Update(r.Context(), userID, params)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(newUserResponse(u))
}

// Delete はユーザーを削除し、画像をカスケード削除する。
// DELETE /api/admin/users/{id}
func (h *AdminUserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	if err := h.service.Delete(r.Context(), userID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
