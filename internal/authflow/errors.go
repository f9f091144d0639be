package authflow

import (
	"errors"
	"fmt"
	"time"
)

// ローカル検証で発生するエラー。IdPへの問い合わせは行われない。
var (
	ErrInvalidPhone       = errors.New("phone number must be exactly 10 digits")
	ErrMissingCode        = errors.New("verification code is required")
	ErrMissingCredentials = errors.New("email and password are required")
	ErrInvalidMode        = errors.New("unknown credentials mode")
	ErrMissingAuthCode    = errors.New("authorization code is required")
)

// フロー状態やIdPの応答に起因するエラー。
var (
	ErrBusy            = errors.New("authentication already in progress for this client")
	ErrNoPendingCode   = errors.New("no verification code has been sent")
	ErrResendCooldown  = errors.New("verification code was sent too recently")
	ErrInvalidCode     = errors.New("invalid verification code")
	ErrTooManyAttempts = errors.New("too many invalid verification codes")
	ErrSendFailed      = errors.New("failed to send verification code")
	ErrDiscarded       = errors.New("authentication result discarded")
	ErrSessionWrite    = errors.New("failed to store session")
)

// CooldownError はOTP再送の待機時間中であることを表す。errors.Is(err, ErrResendCooldown)を満たす。
type CooldownError struct {
	RetryAfter time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%v: retry after %s", ErrResendCooldown, e.RetryAfter)
}

// Is はErrResendCooldownとの比較を可能にする。
func (e *CooldownError) Is(target error) bool {
	return target == ErrResendCooldown
}

// IsValidation はエラーがローカル検証エラーかを判定する。
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidPhone) ||
		errors.Is(err, ErrMissingCode) ||
		errors.Is(err, ErrMissingCredentials) ||
		errors.Is(err, ErrInvalidMode) ||
		errors.Is(err, ErrMissingAuthCode)
}
