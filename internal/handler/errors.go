// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/picshelf/internal/middleware"
	"github.com/hitoshi/picshelf/internal/model"
)

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeForbidden:
		return http.StatusForbidden
	case model.ErrCodeUserNotFound, model.ErrCodeImageNotFound:
		return http.StatusNotFound
	case model.ErrCodeValidation, model.ErrCodeQuotaExceeded:
		return http.StatusBadRequest
	case model.ErrCodeStorageUnavailable:
		return http.StatusServiceUnavailable
	case model.ErrCodeProcessing:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// writeUnauthorized は401レスポンスを書き込む。
func writeUnauthorized(w http.ResponseWriter) {
	middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
}

// writeBadRequestBody はリクエストボディ解析失敗の400レスポンスを書き込む。
func writeBadRequestBody(w http.ResponseWriter) {
	middleware.WriteErrorResponse(w, http.StatusBadRequest,
		model.NewValidationError("リクエストボディの解析に失敗しました。"))
}
