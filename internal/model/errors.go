// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIのトースト通知に表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ（トーストの説明文）
	Category string // カテゴリ: auth, validation, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidPhone      = "INVALID_PHONE"
	ErrCodeInvalidCode       = "INVALID_OTP"
	ErrCodeMissingCode       = "MISSING_OTP"
	ErrCodeNoPendingCode     = "NO_PENDING_OTP"
	ErrCodeResendCooldown    = "OTP_RESEND_COOLDOWN"
	ErrCodeTooManyAttempts   = "OTP_TOO_MANY_ATTEMPTS"
	ErrCodeOTPSendFailed     = "OTP_SEND_FAILED"
	ErrCodeAuthFailed        = "AUTHENTICATION_FAILED"
	ErrCodeFederatedFailed   = "FEDERATED_LOGIN_FAILED"
	ErrCodeInvalidCredential = "INVALID_CREDENTIAL_INPUT"
	ErrCodeInvalidMode       = "INVALID_MODE"
	ErrCodeBusy              = "AUTH_IN_PROGRESS"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
	ErrCodeSessionWrite      = "SESSION_WRITE_FAILED"
)

// NewInvalidPhoneError は電話番号の形式エラーを生成する。
func NewInvalidPhoneError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPhone,
		Message:  "Please enter a valid 10-digit mobile number.",
		Category: "validation",
		Action:   "Enter the 10 digits of your mobile number without the country code.",
	}
}

// NewInvalidCodeError はOTP不一致エラーを生成する。
// 電話番号入力には戻らず、コードの再入力を促す。
func NewInvalidCodeError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCode,
		Message:  "Invalid OTP",
		Category: "auth",
		Action:   "Check the code sent to your phone and enter it again.",
	}
}

// NewMissingCodeError はOTP未入力エラーを生成する。
func NewMissingCodeError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingCode,
		Message:  "Please enter the OTP sent to your phone.",
		Category: "validation",
		Action:   "Enter the verification code.",
	}
}

// NewNoPendingCodeError は送信済みOTPが存在しない場合のエラーを生成する。
func NewNoPendingCodeError() *APIError {
	return &APIError{
		Code:     ErrCodeNoPendingCode,
		Message:  "No verification code has been sent yet.",
		Category: "validation",
		Action:   "Request an OTP for your phone number first.",
	}
}

// NewResendCooldownError はOTP再送の待機時間中であることを示すエラーを生成する。
func NewResendCooldownError(retryAfterSec int) *APIError {
	return &APIError{
		Code:     ErrCodeResendCooldown,
		Message:  fmt.Sprintf("Please wait %d seconds before requesting another OTP.", retryAfterSec),
		Category: "validation",
		Action:   "Wait a moment and try again.",
	}
}

// NewTooManyAttemptsError はOTPの試行回数上限エラーを生成する。
func NewTooManyAttemptsError() *APIError {
	return &APIError{
		Code:     ErrCodeTooManyAttempts,
		Message:  "Too many incorrect codes.",
		Category: "auth",
		Action:   "Request a new OTP and try again.",
	}
}

// NewOTPSendFailedError はOTP送信失敗エラーを生成する。
func NewOTPSendFailedError(providerMessage string) *APIError {
	return &APIError{
		Code:     ErrCodeOTPSendFailed,
		Message:  providerMessageOr(providerMessage, "Failed to Send OTP"),
		Category: "auth",
		Action:   "Check the phone number and try again.",
	}
}

// NewAuthFailedError はメールアドレス認証失敗エラーを生成する。
// プロバイダーのメッセージをそのまま表示する。
func NewAuthFailedError(providerMessage string) *APIError {
	return &APIError{
		Code:     ErrCodeAuthFailed,
		Message:  providerMessageOr(providerMessage, "Authentication Failed"),
		Category: "auth",
		Action:   "Check your email and password and try again.",
	}
}

// NewFederatedFailedError はGoogleログイン失敗エラーを生成する。
func NewFederatedFailedError(providerMessage string) *APIError {
	return &APIError{
		Code:     ErrCodeFederatedFailed,
		Message:  providerMessageOr(providerMessage, "Google Login Failed"),
		Category: "auth",
		Action:   "Try signing in with Google again.",
	}
}

// NewInvalidCredentialInputError はメールアドレスまたはパスワード未入力のエラーを生成する。
func NewInvalidCredentialInputError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredential,
		Message:  "Email and password are required.",
		Category: "validation",
		Action:   "Fill in both fields.",
	}
}

// NewInvalidModeError は不正な認証モード指定のエラーを生成する。
func NewInvalidModeError(mode string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidMode,
		Message:  fmt.Sprintf("Unknown authentication mode: %s", mode),
		Category: "validation",
		Action:   "Use signin or register.",
	}
}

// NewBusyError は同一クライアントで認証処理が進行中であることを示すエラーを生成する。
func NewBusyError() *APIError {
	return &APIError{
		Code:     ErrCodeBusy,
		Message:  "Another sign-in is already in progress.",
		Category: "auth",
		Action:   "Wait for the current request to finish.",
	}
}

// NewUnauthorizedError は未ログインエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "You are not signed in.",
		Category: "auth",
		Action:   "Please sign in.",
	}
}

// NewInvalidRequestError はリクエストボディ不正のエラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "The request body could not be parsed.",
		Category: "validation",
		Action:   "Send a valid JSON body.",
	}
}

// NewSessionWriteError はIdPでの認証成功後にSessionを保存できなかったエラーを生成する。
func NewSessionWriteError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionWrite,
		Message:  "Signed in, but the session could not be saved.",
		Category: "system",
		Action:   "Please try signing in again later.",
	}
}

func providerMessageOr(msg, fallback string) string {
	if msg == "" {
		return fallback
	}
	return msg
}
