// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, formation, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeEmailAlreadyExists = "EMAIL_ALREADY_EXISTS"
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeAccountDisabled    = "ACCOUNT_DISABLED"
	ErrCodeInvalidToken       = "INVALID_TOKEN"
	ErrCodeAlreadyVerified    = "ALREADY_VERIFIED"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeNotAnExpert        = "NOT_AN_EXPERT"
	ErrCodeNotYetVerified     = "NOT_YET_VERIFIED"
	ErrCodeFormationNotFound  = "FORMATION_NOT_FOUND"
	ErrCodeAccessDenied       = "ACCESS_DENIED"
	ErrCodeInvalidTransition  = "INVALID_TRANSITION"
	ErrCodeCapacityExceeded   = "CAPACITY_EXCEEDED"
	ErrCodeAlreadyEnrolled    = "ALREADY_ENROLLED"
	ErrCodeDuplicateReview    = "DUPLICATE_REVIEW"
	ErrCodeNotificationFailed = "NOTIFICATION_FAILED"
)

// NewEmailAlreadyExistsError はメールアドレス重複エラーを生成する。
func NewEmailAlreadyExistsError(email string) *APIError {
	return &APIError{
		Code:     ErrCodeEmailAlreadyExists,
		Message:  fmt.Sprintf("このメールアドレスは既に登録されています: %s", email),
		Category: "validation",
		Action:   "別のメールアドレスを使用するか、ログインしてください。",
	}
}

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("入力内容が不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewInvalidCredentialsError は認証失敗エラーを生成する。
// メールアドレス不明とパスワード不一致は区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewAccountDisabledError は無効化されたアカウントでのログイン失敗エラーを生成する。
func NewAccountDisabledError() *APIError {
	return &APIError{
		Code:     ErrCodeAccountDisabled,
		Message:  "このアカウントは現在利用できません。",
		Category: "auth",
		Action:   "メール確認を完了するか、管理者の承認をお待ちください。",
	}
}

// NewInvalidTokenError は確認トークン不一致エラーを生成する。
// 使用済みトークンもこのエラーになる（トークンは使い捨て）。
func NewInvalidTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidToken,
		Message:  "トークンが無効か、有効期限が切れています。",
		Category: "auth",
		Action:   "確認メールの再送信を依頼してください。",
	}
}

// NewAlreadyVerifiedError は確認済みアカウントへの再確認エラーを生成する。
func NewAlreadyVerifiedError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyVerified,
		Message:  "このアカウントは既に確認済みです。",
		Category: "auth",
		Action:   "そのままログインしてください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "アカウント情報を確認してください。",
	}
}

// NewNotAnExpertError はexpert以外への承認操作エラーを生成する。
func NewNotAnExpertError() *APIError {
	return &APIError{
		Code:     ErrCodeNotAnExpert,
		Message:  "このユーザーはexpertではありません。",
		Category: "validation",
		Action:   "承認対象のユーザーIDを確認してください。",
	}
}

// NewNotYetVerifiedError はメール未確認のexpertへの承認操作エラーを生成する。
func NewNotYetVerifiedError() *APIError {
	return &APIError{
		Code:     ErrCodeNotYetVerified,
		Message:  "このexpertはまだメール確認を完了していません。",
		Category: "validation",
		Action:   "メール確認の完了後に承認してください。",
	}
}

// NewFormationNotFoundError は研修未検出エラーを生成する。
func NewFormationNotFoundError(formationID string) *APIError {
	return &APIError{
		Code:     ErrCodeFormationNotFound,
		Message:  fmt.Sprintf("指定された研修が見つかりません: %s", formationID),
		Category: "formation",
		Action:   "研修IDを確認してください。",
	}
}

// NewAccessDeniedError は認可エラーを生成する。
func NewAccessDeniedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeAccessDenied,
		Message:  fmt.Sprintf("この操作を行う権限がありません: %s", reason),
		Category: "auth",
		Action:   "アカウントの役割と状態を確認してください。",
	}
}

// NewInvalidTransitionError は状態遷移違反エラーを生成する。
func NewInvalidTransitionError(current FormationStatus, operation string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTransition,
		Message:  fmt.Sprintf("現在の状態(%s)では%sできません。", current, operation),
		Category: "formation",
		Action:   "研修の状態を確認してください。",
	}
}

// NewCapacityExceededError は定員超過エラーを生成する。
func NewCapacityExceededError() *APIError {
	return &APIError{
		Code:     ErrCodeCapacityExceeded,
		Message:  "この研修は定員に達しています。",
		Category: "formation",
		Action:   "他の研修を検討してください。",
	}
}

// NewAlreadyEnrolledError は重複登録エラーを生成する。
func NewAlreadyEnrolledError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyEnrolled,
		Message:  "この研修には既に登録済みです。",
		Category: "formation",
		Action:   "受講一覧を確認してください。",
	}
}

// NewDuplicateReviewError はレビュー重複エラーを生成する。
func NewDuplicateReviewError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateReview,
		Message:  "この研修には既にレビューを投稿済みです。",
		Category: "formation",
		Action:   "投稿済みのレビューを確認してください。",
	}
}

// NewNotificationFailedError はメール送信失敗エラーを生成する。
// Registerでは送信失敗は致命的でないためこのエラーは使わず、
// ResendVerificationのみが呼び出し元へ伝搬する。
func NewNotificationFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeNotificationFailed,
		Message:  "確認メールの送信に失敗しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
