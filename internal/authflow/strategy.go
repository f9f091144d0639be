package authflow

import (
	"context"
	"strings"

	"github.com/hitoshi/agriguard/internal/identity"
	"github.com/hitoshi/agriguard/internal/model"
)

// Mode はメール/パスワード認証のモード。
type Mode string

const (
	ModeSignIn   Mode = "signin"
	ModeRegister Mode = "register"
)

// FederatedStrategy はGoogleの認可コードによる認証。
type FederatedStrategy struct {
	Provider identity.FederatedProvider
	Code     string
}

func (s *FederatedStrategy) Method() model.AuthMethod { return model.AuthMethodFederated }

func (s *FederatedStrategy) Validate() error {
	if s.Code == "" {
		return ErrMissingAuthCode
	}
	return nil
}

func (s *FederatedStrategy) Authenticate(ctx context.Context) (*identity.Profile, error) {
	return s.Provider.ExchangeCode(ctx, s.Code)
}

// CredentialsStrategy はメールアドレスとパスワードによるサインインまたは新規登録。
type CredentialsStrategy struct {
	Provider identity.PasswordProvider
	Mode     Mode
	Email    string
	Password string
}

func (s *CredentialsStrategy) Method() model.AuthMethod {
	if s.Mode == ModeRegister {
		return model.AuthMethodRegister
	}
	return model.AuthMethodPassword
}

func (s *CredentialsStrategy) Validate() error {
	if s.Mode != ModeSignIn && s.Mode != ModeRegister {
		return ErrInvalidMode
	}
	if strings.TrimSpace(s.Email) == "" || s.Password == "" {
		return ErrMissingCredentials
	}
	return nil
}

func (s *CredentialsStrategy) Authenticate(ctx context.Context) (*identity.Profile, error) {
	email := strings.TrimSpace(s.Email)
	if s.Mode == ModeRegister {
		return s.Provider.RegisterWithPassword(ctx, email, s.Password)
	}
	return s.Provider.SignInWithPassword(ctx, email, s.Password)
}

// phoneConfirmStrategy は送信済みOTPの検証。PhoneFlowからのみ使用する。
type phoneConfirmStrategy struct {
	provider identity.PhoneProvider
	handle   identity.ConfirmationHandle
	code     string
}

func (s *phoneConfirmStrategy) Method() model.AuthMethod { return model.AuthMethodPhone }

func (s *phoneConfirmStrategy) Validate() error {
	if s.code == "" {
		return ErrMissingCode
	}
	return nil
}

func (s *phoneConfirmStrategy) Authenticate(ctx context.Context) (*identity.Profile, error) {
	return s.provider.ConfirmCode(ctx, s.handle, s.code)
}

// compile-time interface check
var (
	_ Authenticator = (*FederatedStrategy)(nil)
	_ Authenticator = (*CredentialsStrategy)(nil)
	_ Authenticator = (*phoneConfirmStrategy)(nil)
)
