package identity

import "context"

// Client はフェデレーテッド、メール/パスワード、電話番号の各プロバイダーを1つにまとめたIdPクライアント。
type Client struct {
	federated FederatedProvider
	toolkit   *ToolkitClient
}

// NewClient はClientを生成する。
func NewClient(federated FederatedProvider, toolkit *ToolkitClient) *Client {
	return &Client{federated: federated, toolkit: toolkit}
}

// LoginURL はフェデレーテッドログインの認可URLを生成する。
func (c *Client) LoginURL(state string) string {
	return c.federated.LoginURL(state)
}

// ExchangeCode はフェデレーテッドログインの認可コードを交換する。
func (c *Client) ExchangeCode(ctx context.Context, code string) (*Profile, error) {
	return c.federated.ExchangeCode(ctx, code)
}

// SignInWithPassword はメールアドレスとパスワードでサインインする。
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Profile, error) {
	return c.toolkit.SignInWithPassword(ctx, email, password)
}

// RegisterWithPassword はメールアドレスとパスワードで新規登録する。
func (c *Client) RegisterWithPassword(ctx context.Context, email, password string) (*Profile, error) {
	return c.toolkit.RegisterWithPassword(ctx, email, password)
}

// SendVerificationCode は電話番号にOTPを送信する。
func (c *Client) SendVerificationCode(ctx context.Context, phoneNumber, recaptchaToken string) (ConfirmationHandle, error) {
	return c.toolkit.SendVerificationCode(ctx, phoneNumber, recaptchaToken)
}

// ConfirmCode はOTPを検証する。
func (c *Client) ConfirmCode(ctx context.Context, handle ConfirmationHandle, code string) (*Profile, error) {
	return c.toolkit.ConfirmCode(ctx, handle, code)
}

// SignOut はIdP側のサインアウトを行う。
func (c *Client) SignOut(ctx context.Context) error {
	return c.toolkit.SignOut(ctx)
}

// compile-time interface check
var (
	_ FederatedProvider = (*Client)(nil)
	_ PasswordProvider  = (*Client)(nil)
	_ PhoneProvider     = (*Client)(nil)
	_ SignOuter         = (*Client)(nil)
)
