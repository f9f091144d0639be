// Package identity は外部IdP（Google OAuth、Identity Toolkit）のクライアントを提供する。
// すべての成功レスポンスをProfileに正規化する。
package identity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// maxResponseSize はIdPレスポンスボディの上限。
const maxResponseSize = 1 << 20

// ErrResponseTooLarge はIdPのレスポンスが上限を超えた場合のエラー。
var ErrResponseTooLarge = errors.New("provider response exceeds size limit")

// readResponse はレスポンスボディをmaxResponseSizeまで読み込む。
func readResponse(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, maxResponseSize+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxResponseSize {
		return nil, ErrResponseTooLarge
	}
	return body, nil
}

// Profile はIdPから取得したユーザープロフィールを表す。
type Profile struct {
	UID         string
	DisplayName string
	Email       string
	PhotoURL    string
	Provider    string // "google.com", "password", "phone"
}

// ConfirmationHandle はOTP送信後にIdPが返す確認用ハンドル。
// 確認コードの検証時にそのまま渡す。
type ConfirmationHandle string

// FederatedProvider はポップアップ（リダイレクト）型のフェデレーテッドログインを提供する。
type FederatedProvider interface {
	// LoginURL は認可URLを生成する。
	LoginURL(state string) string
	// ExchangeCode は認可コードを交換し、プロフィールを取得する。
	ExchangeCode(ctx context.Context, code string) (*Profile, error)
}

// PasswordProvider はメールアドレスとパスワードによる認証を提供する。
type PasswordProvider interface {
	SignInWithPassword(ctx context.Context, email, password string) (*Profile, error)
	RegisterWithPassword(ctx context.Context, email, password string) (*Profile, error)
}

// PhoneProvider は電話番号OTPによる認証を提供する。
type PhoneProvider interface {
	// SendVerificationCode はE.164形式の電話番号にOTPを送信する。
	SendVerificationCode(ctx context.Context, phoneNumber, recaptchaToken string) (ConfirmationHandle, error)
	// ConfirmCode はハンドルに対応するOTPを検証する。
	ConfirmCode(ctx context.Context, handle ConfirmationHandle, code string) (*Profile, error)
}

// SignOuter はIdP側のサインアウトを提供する。
type SignOuter interface {
	SignOut(ctx context.Context) error
}

// ProviderError はIdPが返した拒否レスポンスを表す。
// MessageはIdPのメッセージをそのまま保持する。
type ProviderError struct {
	Status  int
	Code    string
	Message string
}

// Error はerrorインターフェースを実装する。
func (e *ProviderError) Error() string {
	return fmt.Sprintf("identity provider rejected request (status %d): %s", e.Status, e.Message)
}

// newProviderError はIdPメッセージからProviderErrorを生成する。
// "WEAK_PASSWORD : Password should be ..." 形式の場合は先頭をコードとする。
func newProviderError(status int, message string) *ProviderError {
	code := message
	if i := strings.Index(message, " : "); i >= 0 {
		code = message[:i]
	}
	return &ProviderError{Status: status, Code: strings.TrimSpace(code), Message: message}
}

// ProviderMessage はエラーチェーンからIdPのメッセージを取り出す。
// ProviderErrorを含まない場合は空文字列を返す。
func ProviderMessage(err error) string {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.Message
	}
	return ""
}
