package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, listing, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeItemNotFound     = "ITEM_NOT_FOUND"
	ErrCodeInvalidItem      = "INVALID_ITEM"
	ErrCodeInvalidImageRef  = "INVALID_IMAGE_REF"
	ErrCodeImageUnreachable = "IMAGE_UNREACHABLE"
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeCSRFFailed       = "CSRF_FAILED"
	ErrCodeRateLimited      = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal         = "INTERNAL_ERROR"
)

// NewItemNotFoundError は商品未検出エラーを生成する。
func NewItemNotFoundError(itemID string) *APIError {
	return &APIError{
		Code:     ErrCodeItemNotFound,
		Message:  fmt.Sprintf("指定された商品が見つかりません: %s", itemID),
		Category: "listing",
		Action:   "商品IDを確認してください。",
	}
}

// NewInvalidItemError は出品内容の検証エラーを生成する。
// fieldsにはフィールド名とエラー内容の組を渡す。
func NewInvalidItemError(fields map[string]string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidItem,
		Message:  fmt.Sprintf("出品内容に誤りがあります: %v", fields),
		Category: "validation",
		Action:   "必須項目（タイトル、説明、価格、カテゴリ、画像1〜5枚）を確認してください。",
	}
}

// NewInvalidImageRefError は画像URIが不正な場合のエラーを生成する。
func NewInvalidImageRefError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidImageRef,
		Message:  fmt.Sprintf("無効な画像URLです: %s", reason),
		Category: "validation",
		Action:   "公開されている http:// または https:// の画像URLを指定してください。",
	}
}

// NewImageUnreachableError は画像URIに到達できない場合のエラーを生成する。
func NewImageUnreachableError(imageURL string) *APIError {
	return &APIError{
		Code:     ErrCodeImageUnreachable,
		Message:  fmt.Sprintf("画像を取得できませんでした: %s", imageURL),
		Category: "listing",
		Action:   "画像URLが公開されているか確認してから再度お試しください。",
	}
}

// NewInvalidRequestError はリクエスト形式が不正な場合のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストの形式が正しくありません: %s", reason),
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewCSRFFailedError はCSRFトークン検証失敗のエラーを生成する。
func NewCSRFFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFFailed,
		Message:  "CSRFトークンの検証に失敗しました。",
		Category: "validation",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}

// NewRateLimitedError はレート制限超過のエラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-Afterの秒数だけ待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ記録すること。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
