// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, chat, admin, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeDuplicateEmail     = "DUPLICATE_EMAIL"
	ErrCodeWeakPassword       = "WEAK_PASSWORD"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeSelfModification   = "SELF_MODIFICATION"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeProviderError      = "PROVIDER_ERROR"
	ErrCodeInternalError      = "INTERNAL_ERROR"
)

// NewInvalidRequestError は不正な入力エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この操作には管理者権限が必要です。",
		Category: "auth",
		Action:   "管理者アカウントでログインしてください。",
	}
}

// NewDuplicateEmailError はメールアドレス重複エラーを生成する。
func NewDuplicateEmailError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateEmail,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "auth",
		Action:   "別のメールアドレスを使用するか、ログインしてください。",
	}
}

// NewWeakPasswordError はパスワード強度不足エラーを生成する。
func NewWeakPasswordError(minLength int) *APIError {
	return &APIError{
		Code:     ErrCodeWeakPassword,
		Message:  fmt.Sprintf("パスワードは%d文字以上で指定してください。", minLength),
		Category: "validation",
		Action:   "より長いパスワードを設定してください。",
	}
}

// NewInvalidCredentialsError は認証情報不一致エラーを生成する。
// メールアドレス未登録とパスワード不一致を区別しない（列挙攻撃対策）。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewSelfModificationError は自己変更禁止エラーを生成する。
// 管理者が自分自身のロール変更・削除を行うことはできない。
func NewSelfModificationError() *APIError {
	return &APIError{
		Code:     ErrCodeSelfModification,
		Message:  "自分自身のアカウントに対してこの操作は実行できません。",
		Category: "admin",
		Action:   "別の管理者アカウントから操作してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "admin",
		Action:   "ユーザーIDを確認してください。",
	}
}

// NewProviderError はLLMプロバイダー呼び出し失敗エラーを生成する。
func NewProviderError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeProviderError,
		Message:  fmt.Sprintf("LLMプロバイダーの呼び出しに失敗しました: %s", reason),
		Category: "chat",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
