package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

const defaultToolkitBaseURL = "https://identitytoolkit.googleapis.com/v1"

// ToolkitConfig はIdentity Toolkit REST APIクライアントの設定。
type ToolkitConfig struct {
	APIKey string

	// テスト用にオーバーライド可能なベースURL
	BaseURL string

	// HTTPClient はAPI呼び出しに使用する。nilの場合はhttp.DefaultClient。
	HTTPClient *http.Client
}

// ToolkitClient はIdentity Toolkit REST APIによるメール/パスワード認証と電話番号認証を提供する。
type ToolkitClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewToolkitClient はToolkitClientを生成する。
func NewToolkitClient(config ToolkitConfig) *ToolkitClient {
	if config.BaseURL == "" {
		config.BaseURL = defaultToolkitBaseURL
	}
	if config.HTTPClient == nil {
		config.HTTPClient = http.DefaultClient
	}
	return &ToolkitClient{
		apiKey:     config.APIKey,
		baseURL:    config.BaseURL,
		httpClient: config.HTTPClient,
	}
}

// accountResponse はサインイン系エンドポイントの共通レスポンス。
type accountResponse struct {
	LocalID        string `json:"localId"`
	Email          string `json:"email"`
	DisplayName    string `json:"displayName"`
	PhotoURL       string `json:"photoUrl"`
	ProfilePicture string `json:"profilePicture"`
	PhoneNumber    string `json:"phoneNumber"`
}

// toolkitErrorResponse はIdentity Toolkitのエラーレスポンス。
type toolkitErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SignInWithPassword はメールアドレスとパスワードでサインインする。
func (c *ToolkitClient) SignInWithPassword(ctx context.Context, email, password string) (*Profile, error) {
	var resp accountResponse
	err := c.call(ctx, "accounts:signInWithPassword", map[string]interface{}{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("sign in with password: %w", err)
	}
	return resp.toProfile("password"), nil
}

// RegisterWithPassword はメールアドレスとパスワードで新規アカウントを作成する。
// 作成直後のアカウントは表示名を持たない。
func (c *ToolkitClient) RegisterWithPassword(ctx context.Context, email, password string) (*Profile, error) {
	var resp accountResponse
	err := c.call(ctx, "accounts:signUp", map[string]interface{}{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("register with password: %w", err)
	}
	return resp.toProfile("password"), nil
}

// SendVerificationCode は電話番号にOTPを送信し、確認用ハンドル（sessionInfo）を返す。
func (c *ToolkitClient) SendVerificationCode(ctx context.Context, phoneNumber, recaptchaToken string) (ConfirmationHandle, error) {
	var resp struct {
		SessionInfo string `json:"sessionInfo"`
	}
	err := c.call(ctx, "accounts:sendVerificationCode", map[string]interface{}{
		"phoneNumber":    phoneNumber,
		"recaptchaToken": recaptchaToken,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("send verification code: %w", err)
	}
	if resp.SessionInfo == "" {
		return "", fmt.Errorf("send verification code: empty sessionInfo in response")
	}
	return ConfirmationHandle(resp.SessionInfo), nil
}

// ConfirmCode はOTPを検証し、電話番号アカウントでサインインする。
func (c *ToolkitClient) ConfirmCode(ctx context.Context, handle ConfirmationHandle, code string) (*Profile, error) {
	var resp accountResponse
	err := c.call(ctx, "accounts:signInWithPhoneNumber", map[string]interface{}{
		"sessionInfo": string(handle),
		"code":        code,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("confirm verification code: %w", err)
	}
	return resp.toProfile("phone"), nil
}

// SignOut はIdP側のサインアウトを行う。
// Identity ToolkitのクライアントAPIにはサーバー側のサインアウトが存在しないため、何もしない。
func (c *ToolkitClient) SignOut(ctx context.Context) error {
	return nil
}

// call はIdentity ToolkitのエンドポイントにJSONをPOSTし、レスポンスをoutにデコードする。
func (c *ToolkitClient) call(ctx context.Context, method string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	endpoint := c.baseURL + "/" + method + "?" + url.Values{"key": {c.apiKey}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := readResponse(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp toolkitErrorResponse
		if jsonErr := json.Unmarshal(respBody, &errResp); jsonErr == nil && errResp.Error.Message != "" {
			return newProviderError(resp.StatusCode, errResp.Error.Message)
		}
		return newProviderError(resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func (r *accountResponse) toProfile(provider string) *Profile {
	photo := r.PhotoURL
	if photo == "" {
		photo = r.ProfilePicture
	}
	return &Profile{
		UID:         r.LocalID,
		DisplayName: r.DisplayName,
		Email:       r.Email,
		PhotoURL:    photo,
		Provider:    provider,
	}
}

// compile-time interface check
var (
	_ PasswordProvider = (*ToolkitClient)(nil)
	_ PhoneProvider    = (*ToolkitClient)(nil)
	_ SignOuter        = (*ToolkitClient)(nil)
)
