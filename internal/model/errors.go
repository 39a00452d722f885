// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, catalog, library, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeBookNotFound          = "BOOK_NOT_FOUND"
	ErrCodeUserNotFound          = "USER_NOT_FOUND"
	ErrCodeLibraryEntryNotFound  = "LIBRARY_ENTRY_NOT_FOUND"
	ErrCodeDuplicateLibraryEntry = "DUPLICATE_LIBRARY_ENTRY"
	ErrCodeDuplicateBook         = "DUPLICATE_BOOK"
	ErrCodeEmailAlreadyExists    = "EMAIL_ALREADY_EXISTS"
	ErrCodeInvalidCredentials    = "INVALID_CREDENTIALS"
	ErrCodeInvalidToken          = "INVALID_TOKEN"
	ErrCodeInvalidRating         = "INVALID_RATING"
	ErrCodeInvalidRequest        = "INVALID_REQUEST"
	ErrCodeInvalidURL            = "INVALID_URL"
	ErrCodeSSRFBlocked           = "SSRF_BLOCKED"
	ErrCodeInvariantViolation    = "INVARIANT_VIOLATION"
)

// NewBookNotFoundError は書籍未検出エラーを生成する。
func NewBookNotFoundError(bookID string) *APIError {
	return &APIError{
		Code:     ErrCodeBookNotFound,
		Message:  fmt.Sprintf("指定された書籍が見つかりません: %s", bookID),
		Category: "catalog",
		Action:   "書籍IDを確認してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewLibraryEntryNotFoundError は読書リストに書籍が存在しない場合のエラーを生成する。
func NewLibraryEntryNotFoundError(bookID string) *APIError {
	return &APIError{
		Code:     ErrCodeLibraryEntryNotFound,
		Message:  fmt.Sprintf("この書籍は読書リストに登録されていません: %s", bookID),
		Category: "library",
		Action:   "先に書籍を読書リストに追加してください。",
	}
}

// NewDuplicateLibraryEntryError は既に読書リストに登録済みの書籍を
// 再度追加しようとした場合のエラーを生成する。
func NewDuplicateLibraryEntryError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateLibraryEntry,
		Message:  "この書籍は既に読書リストに登録されています。",
		Category: "library",
		Action:   "読書リストから該当書籍を確認してください。",
	}
}

// NewDuplicateBookError は同一の書籍を重複登録しようとした場合のエラーを生成する。
func NewDuplicateBookError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateBook,
		Message:  fmt.Sprintf("この書籍は既にカタログに登録されています: %s", reason),
		Category: "catalog",
		Action:   "既存の書籍を検索して確認してください。",
	}
}

// NewEmailAlreadyExistsError はメールアドレスが登録済みの場合のエラーを生成する。
func NewEmailAlreadyExistsError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailAlreadyExists,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "auth",
		Action:   "ログインするか、別のメールアドレスで登録してください。",
	}
}

// NewInvalidCredentialsError は認証情報が誤っている場合のエラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewInvalidTokenError はトークンが無効な場合のエラーを生成する。
func NewInvalidTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidToken,
		Message:  "トークンが無効または期限切れです。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewInvalidRatingError は評価値が有効範囲外の場合のエラーを生成する。
func NewInvalidRatingError(rating int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRating,
		Message:  fmt.Sprintf("無効な評価値です: %d", rating),
		Category: "validation",
		Action:   "評価は1から5の整数で指定してください。",
	}
}

// NewInvalidRequestError はリクエスト内容が不正な場合のエラーを生成する。
func NewInvalidRequestError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  message,
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "正しいURL形式（http:// または https:// で始まるURL）を入力してください。",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されているWebサイトのURLを入力してください。ローカルネットワークやプライベートIPへのアクセスは許可されていません。",
	}
}

// NewInvariantViolationError はデータ整合性の破れを検出した場合のエラーを生成する。
// 正常な運用では発生しない。発生した場合は上流の整合性バグを示す。
func NewInvariantViolationError(detail string) *APIError {
	return &APIError{
		Code:     ErrCodeInvariantViolation,
		Message:  fmt.Sprintf("データ整合性エラーが発生しました: %s", detail),
		Category: "system",
		Action:   "管理者に連絡してください。",
	}
}
