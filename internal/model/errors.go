package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, image, storage, system
	Action   string // ユーザー向け対処方法

	// RemainingBytes はQUOTA_EXCEEDED時の残容量ヒント（バイト）。
	RemainingBytes int64
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeImageNotFound      = "IMAGE_NOT_FOUND"
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeQuotaExceeded      = "QUOTA_EXCEEDED"
	ErrCodeProcessing         = "PROCESSING_ERROR"
	ErrCodeStorageUnavailable = "STORAGE_UNAVAILABLE"
)

// NewUnauthorizedError は認証エラーを生成する。
// トークンの欠落・無効・期限切れすべてに対して同一のレスポンスを返す。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この操作を行う権限がありません。",
		Category: "auth",
		Action:   "管理者アカウントでログインしてください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ユーザーIDを確認してください。",
	}
}

// NewImageNotFoundError は画像レコードが見つからない場合のエラーを生成する。
func NewImageNotFoundError(imageID string) *APIError {
	return &APIError{
		Code:     ErrCodeImageNotFound,
		Message:  fmt.Sprintf("指定された画像が見つかりません: %s", imageID),
		Category: "image",
		Action:   "画像IDを確認してください。",
	}
}

// NewValidationError は汎用のバリデーションエラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewMissingFieldsError は必須フィールド欠落エラーを生成する。
func NewMissingFieldsError() *APIError {
	return NewValidationError("emailとpasswordは必須です。")
}

// NewEmailTakenError はメールアドレス重複エラーを生成する。
func NewEmailTakenError() *APIError {
	return NewValidationError("このメールアドレスは既に使用されています。")
}

// NewUnsupportedFormatError は非対応の画像形式エラーを生成する。
func NewUnsupportedFormatError(fileName string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("対応していない形式です: %s", fileName),
		Category: "validation",
		Action:   "PNG、JPEG、SVGのいずれかをアップロードしてください。",
	}
}

// NewInvalidDimensionsError はリサイズ寸法が無効な場合のエラーを生成する。
// widthとheightの少なくとも一方が必須で、指定する場合は正の整数でなければならない。
func NewInvalidDimensionsError() *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  "width/heightが不正です。",
		Category: "validation",
		Action:   "widthまたはheightに正の整数を指定してください。",
	}
}

// NewSVGResizeError はSVGに対するリサイズ要求エラーを生成する。
func NewSVGResizeError() *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  "SVGはベクター形式のためラスタライズによるリサイズはできません。",
		Category: "validation",
		Action:   "PNGまたはJPEGの画像を指定してください。",
	}
}

// NewQuotaExceededError は容量超過エラーを生成する。
// remainingBytesには残り容量のヒントを渡す（表示用）。
func NewQuotaExceededError(remainingBytes int64) *APIError {
	return &APIError{
		Code:           ErrCodeQuotaExceeded,
		Message:        fmt.Sprintf("保存容量が不足しています。残り %d MB です。", remainingBytes/(1024*1024)),
		Category:       "storage",
		Action:         "不要な画像を削除するか、管理者に容量の追加を依頼してください。",
		RemainingBytes: remainingBytes,
	}
}

// NewProcessingError は画像のデコード・エンコード失敗エラーを生成する。
func NewProcessingError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeProcessing,
		Message:  fmt.Sprintf("画像の処理に失敗しました: %s", reason),
		Category: "image",
		Action:   "画像ファイルが破損していないか確認してください。",
	}
}

// NewStorageUnavailableError はストア・ファイルシステム障害エラーを生成する。
func NewStorageUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeStorageUnavailable,
		Message:  "ストレージへのアクセスに失敗しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
