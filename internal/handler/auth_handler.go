// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/hitoshi/agriguard/internal/authflow"
	"github.com/hitoshi/agriguard/internal/identity"
	"github.com/hitoshi/agriguard/internal/middleware"
	"github.com/hitoshi/agriguard/internal/model"
)

const oauthStateCookie = "oauth_state"

// AuthController は認証ハンドラーが必要とする認証フロー制御のインターフェース。
type AuthController interface {
	Complete(ctx context.Context, clientID string, auth authflow.Authenticator, enteredName string) (*authflow.Outcome, error)
	SignOut(ctx context.Context, clientID string) (string, error)
	CurrentSession(ctx context.Context, clientID string) (*model.Session, error)
}

// PhoneFlowInterface は電話番号OTPフローのインターフェース。
type PhoneFlowInterface interface {
	EnsureChallenge(clientID string) authflow.Challenge
	State(clientID string) authflow.PhoneState
	SendCode(ctx context.Context, clientID, phone, recaptchaToken string) (*authflow.SendResult, error)
	ConfirmCode(ctx context.Context, clientID, code, enteredName string) (*authflow.Outcome, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain string
	CookieSecure bool
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	ctrl      AuthController
	phone     PhoneFlowInterface
	federated identity.FederatedProvider
	password  identity.PasswordProvider
	config    AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(
	ctrl AuthController,
	phone PhoneFlowInterface,
	federated identity.FederatedProvider,
	password identity.PasswordProvider,
	config AuthHandlerConfig,
) *AuthHandler {
	return &AuthHandler{
		ctrl:      ctrl,
		phone:     phone,
		federated: federated,
		password:  password,
		config:    config,
	}
}

// sessionResponse はSessionのJSON表現。
type sessionResponse struct {
	DisplayName string `json:"displayName"`
	Email       string `json:"email,omitempty"`
	PhotoURL    string `json:"photoURL,omitempty"`
}

// signInResponse は認証成功時のレスポンス。
type signInResponse struct {
	Redirect string          `json:"redirect"`
	Welcome  string          `json:"welcome"`
	Session  sessionResponse `json:"session"`
}

func toSessionResponse(s *model.Session) sessionResponse {
	return sessionResponse{
		DisplayName: s.DisplayName,
		Email:       s.Email,
		PhotoURL:    s.PhotoURL,
	}
}

func toSignInResponse(o *authflow.Outcome) signInResponse {
	return signInResponse{
		Redirect: o.Redirect,
		Welcome:  o.Welcome,
		Session:  toSessionResponse(o.Session),
	}
}

// Login はGoogleログインを開始する。
// GET /auth/google/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/auth/google",
		MaxAge:   600, // 10分
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.federated.LoginURL(state), http.StatusTemporaryRedirect)
}

// Callback はGoogleからのコールバックを処理する。
// 成功時は/dashboardへ、失敗時はエラーコード付きで/へリダイレクトする。
// GET /auth/google/callback?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	clientID, err := middleware.ClientIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	// 1. stateの検証（CSRF対策）
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || stateCookie.Value != state {
		slog.Warn("oauth state mismatch", slog.String("client_id", clientID))
		h.redirectWithAuthError(w, r, model.ErrCodeFederatedFailed)
		return
	}

	// stateクッキーを削除
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/auth/google",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	// ポップアップを閉じた、または同意を拒否した場合
	if providerErr := r.URL.Query().Get("error"); providerErr != "" {
		slog.Info("federated login cancelled",
			slog.String("client_id", clientID),
			slog.String("error", providerErr),
		)
		h.redirectWithAuthError(w, r, model.ErrCodeFederatedFailed)
		return
	}

	// 2. 認証処理
	strategy := &authflow.FederatedStrategy{
		Provider: h.federated,
		Code:     r.URL.Query().Get("code"),
	}
	outcome, err := h.ctrl.Complete(r.Context(), clientID, strategy, "")
	if err != nil {
		if errors.Is(err, authflow.ErrDiscarded) {
			return
		}
		_, apiErr := mapAuthError(err, model.AuthMethodFederated)
		h.redirectWithAuthError(w, r, apiErr.Code)
		return
	}

	http.Redirect(w, r, outcome.Redirect, http.StatusSeeOther)
}

func (h *AuthHandler) redirectWithAuthError(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, authflow.LandingRoute+"?auth_error="+url.QueryEscape(code), http.StatusSeeOther)
}

// emailRequest はメールアドレス認証のリクエストボディ。
type emailRequest struct {
	Mode     string `json:"mode"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// Email はメールアドレスとパスワードによるログインまたは新規登録を行う。
// POST /auth/email
func (h *AuthHandler) Email(w http.ResponseWriter, r *http.Request) {
	clientID, ok := h.clientID(w, r)
	if !ok {
		return
	}

	var req emailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	mode := authflow.Mode(req.Mode)
	if mode == "" {
		mode = authflow.ModeSignIn
	}
	strategy := &authflow.CredentialsStrategy{
		Provider: h.password,
		Mode:     mode,
		Email:    req.Email,
		Password: req.Password,
	}

	outcome, err := h.ctrl.Complete(r.Context(), clientID, strategy, req.Name)
	if err != nil {
		if errors.Is(err, authflow.ErrInvalidMode) {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidModeError(req.Mode))
			return
		}
		h.writeAuthError(w, err, strategy.Method())
		return
	}

	writeJSON(w, http.StatusOK, toSignInResponse(outcome))
}

// challengeResponse は人間確認の設定。
type challengeResponse struct {
	ChallengeID string `json:"challengeId"`
	SiteKey     string `json:"siteKey"`
	State       string `json:"state"`
}

// PhoneChallenge はクライアントの人間確認を返す。再試行をまたいで同じものを返す。
// GET /auth/phone/challenge
func (h *AuthHandler) PhoneChallenge(w http.ResponseWriter, r *http.Request) {
	clientID, ok := h.clientID(w, r)
	if !ok {
		return
	}

	c := h.phone.EnsureChallenge(clientID)
	writeJSON(w, http.StatusOK, challengeResponse{
		ChallengeID: c.ID,
		SiteKey:     c.SiteKey,
		State:       h.phone.State(clientID).String(),
	})
}

// phoneSendRequest はOTP送信のリクエストボディ。
type phoneSendRequest struct {
	Phone          string `json:"phone"`
	RecaptchaToken string `json:"recaptcha_token"`
}

// phoneSendResponse はOTP送信成功時のレスポンス。
type phoneSendResponse struct {
	State   string `json:"state"`
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// PhoneSend は電話番号にOTPを送信する。
// POST /auth/phone/send
func (h *AuthHandler) PhoneSend(w http.ResponseWriter, r *http.Request) {
	clientID, ok := h.clientID(w, r)
	if !ok {
		return
	}

	var req phoneSendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	result, err := h.phone.SendCode(r.Context(), clientID, req.Phone, req.RecaptchaToken)
	if err != nil {
		h.writePhoneError(w, clientID, err)
		return
	}

	writeJSON(w, http.StatusOK, phoneSendResponse{
		State:   result.State.String(),
		Phone:   result.PhoneNumber,
		Message: result.Message,
	})
}

// phoneVerifyRequest はOTP検証のリクエストボディ。
type phoneVerifyRequest struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// PhoneVerify はOTPを検証し、成功時にSessionを書き込む。
// 誤ったコードの場合は401とともに現在の状態（code-sent）を返す。
// POST /auth/phone/verify
func (h *AuthHandler) PhoneVerify(w http.ResponseWriter, r *http.Request) {
	clientID, ok := h.clientID(w, r)
	if !ok {
		return
	}

	var req phoneVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	outcome, err := h.phone.ConfirmCode(r.Context(), clientID, req.Code, req.Name)
	if err != nil {
		h.writePhoneError(w, clientID, err)
		return
	}

	writeJSON(w, http.StatusOK, toSignInResponse(outcome))
}

// Session は現在のSessionを返す。
// GET /auth/session
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	clientID, ok := h.clientID(w, r)
	if !ok {
		return
	}

	s, err := h.ctrl.CurrentSession(r.Context(), clientID)
	if err != nil {
		if !errors.Is(err, model.ErrMalformedSession) {
			slog.Error("failed to read session",
				slog.String("client_id", clientID),
				slog.String("error", err.Error()),
			)
		}
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}
	if s == nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(s))
}

// Logout はSessionを削除し、/へリダイレクトする。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	clientID, ok := h.clientID(w, r)
	if !ok {
		return
	}

	redirect, err := h.ctrl.SignOut(r.Context(), clientID)
	if err != nil {
		slog.Error("failed to sign out",
			slog.String("client_id", clientID),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	w.Header().Set("Location", redirect)
	w.WriteHeader(http.StatusSeeOther)
}

// clientID はクライアントIDを取得する。取得できない場合は401を書き込みfalseを返す。
func (h *AuthHandler) clientID(w http.ResponseWriter, r *http.Request) (string, bool) {
	clientID, err := middleware.ClientIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return "", false
	}
	return clientID, true
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
