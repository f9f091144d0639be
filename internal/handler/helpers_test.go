package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/hitoshi/agriguard/internal/authflow"
	"github.com/hitoshi/agriguard/internal/identity"
	"github.com/hitoshi/agriguard/internal/middleware"
	"github.com/hitoshi/agriguard/internal/repository"
	"github.com/hitoshi/agriguard/internal/security"
	"github.com/hitoshi/agriguard/internal/session"
)

// --- モック定義 ---

type mockFederated struct {
	exchangeCodeFn func(ctx context.Context, code string) (*identity.Profile, error)
}

func (m *mockFederated) LoginURL(state string) string {
	return "https://accounts.google.com/o/oauth2/auth?prompt=select_account&state=" + state
}

func (m *mockFederated) ExchangeCode(ctx context.Context, code string) (*identity.Profile, error) {
	if m.exchangeCodeFn != nil {
		return m.exchangeCodeFn(ctx, code)
	}
	return &identity.Profile{UID: "g-1", DisplayName: "Ravi Kumar", Email: "ravi@example.com", Provider: "google.com"}, nil
}

type mockPassword struct {
	signInFn   func(ctx context.Context, email, password string) (*identity.Profile, error)
	registerFn func(ctx context.Context, email, password string) (*identity.Profile, error)
}

func (m *mockPassword) SignInWithPassword(ctx context.Context, email, password string) (*identity.Profile, error) {
	if m.signInFn != nil {
		return m.signInFn(ctx, email, password)
	}
	return &identity.Profile{UID: "p-1", Email: email, Provider: "password"}, nil
}

func (m *mockPassword) RegisterWithPassword(ctx context.Context, email, password string) (*identity.Profile, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, email, password)
	}
	return &identity.Profile{UID: "p-2", Email: email, Provider: "password"}, nil
}

// mockPhone は固定の正解コードを持つPhoneProvider。
type mockPhone struct {
	mu        sync.Mutex
	sendCalls []string
	validCode string
	sendErr   error
}

func (m *mockPhone) SendVerificationCode(ctx context.Context, phoneNumber, token string) (identity.ConfirmationHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendCalls = append(m.sendCalls, phoneNumber)
	if m.sendErr != nil {
		return "", m.sendErr
	}
	return identity.ConfirmationHandle("session-info-" + phoneNumber), nil
}

func (m *mockPhone) ConfirmCode(ctx context.Context, handle identity.ConfirmationHandle, code string) (*identity.Profile, error) {
	if code != m.validCode {
		return nil, &identity.ProviderError{Status: http.StatusBadRequest, Code: "INVALID_CODE", Message: "INVALID_CODE"}
	}
	return &identity.Profile{UID: "ph-1", Provider: "phone"}, nil
}

func (m *mockPhone) sendCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sendCalls)
}

type mockSignOuter struct {
	err error
}

func (m *mockSignOuter) SignOut(ctx context.Context) error {
	return m.err
}

// failingClearStore はClearだけが失敗するSessionSlotStore。
type failingClearStore struct {
	*repository.MemorySessionRepo
}

func (s *failingClearStore) Clear(ctx context.Context, clientID string) error {
	return errors.New("store unavailable")
}

// failingSetStore はSetだけが失敗するSessionSlotStore。
type failingSetStore struct {
	*repository.MemorySessionRepo
}

func (s *failingSetStore) Set(ctx context.Context, clientID string, value []byte) error {
	return errors.New("db down")
}

// --- テスト用サーバー ---

// testServer は実際のController・PhoneFlow・ルーターを組み立てたテスト環境。
type testServer struct {
	router    http.Handler
	store     repository.SessionSlotStore
	cache     *session.Cache
	federated *mockFederated
	password  *mockPassword
	phone     *mockPhone
	signOuter *mockSignOuter
	flow      *authflow.PhoneFlow
}

type serverOption func(*serverSetup)

type serverSetup struct {
	store        repository.SessionSlotStore
	otpSendBurst int
}

func withStore(store repository.SessionSlotStore) serverOption {
	return func(s *serverSetup) { s.store = store }
}

// withOTPSendBurst はOTP送信のレート制限を厳しくする。補充はほぼ行われない。
func withOTPSendBurst(burst int) serverOption {
	return func(s *serverSetup) { s.otpSendBurst = burst }
}

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()

	setup := &serverSetup{store: repository.NewMemorySessionRepo(), otpSendBurst: 1000}
	for _, opt := range opts {
		opt(setup)
	}

	ts := &testServer{
		store:     setup.store,
		cache:     session.NewCache(setup.store),
		federated: &mockFederated{},
		password:  &mockPassword{},
		phone:     &mockPhone{validCode: "123456"},
		signOuter: &mockSignOuter{},
	}

	ctrl := authflow.NewController(
		ts.cache,
		security.NewProfileSanitizer(security.NewSSRFGuard()),
		ts.signOuter,
		nil,
		nil,
	)
	phoneConfig := authflow.DefaultPhoneConfig()
	phoneConfig.ResendCooldown = 0
	ts.flow = authflow.NewPhoneFlow(ctrl, ts.phone, authflow.NewChallengeRegistry("site-key-123"), phoneConfig)

	otpSendRate := rate.Limit(1000)
	if setup.otpSendBurst < 1000 {
		otpSendRate = rate.Limit(0.001)
	}
	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		GeneralRate:     1000,
		GeneralBurst:    1000,
		OTPSendRate:     otpSendRate,
		OTPSendBurst:    setup.otpSendBurst,
		CleanupInterval: time.Minute,
	})
	t.Cleanup(rl.Stop)

	ts.router = NewRouter(&RouterDeps{
		Logger:            slogDiscard(),
		GuardSessions:     ts.cache,
		CORSAllowedOrigin: "http://localhost:5173",
		RateLimiter:       rl,
		AuthHandler:       NewAuthHandler(ctrl, ts.flow, ts.federated, ts.password, AuthHandlerConfig{}),
		PageHandler: NewPageHandler(ctrl, PageHandlerConfig{
			RecaptchaSiteKey: "site-key-123",
			ChatWidgetURL:    "https://www.chatbase.co/chatbot-iframe/Se1rIovAh9j2GYm8wLD3g",
		}),
	})

	return ts
}

const testCSRFToken = "test-csrf-token"

// client はクライアントCookieを保持するテスト用ブラウザ。
type client struct {
	t  *testing.T
	ts *testServer
	id string
}

func (ts *testServer) newClient(t *testing.T) *client {
	return &client{t: t, ts: ts, id: uuid.New().String()}
}

func (c *client) do(method, path string, body interface{}, extra ...*http.Cookie) *httptest.ResponseRecorder {
	c.t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.AddCookie(&http.Cookie{Name: middleware.ClientCookieName, Value: c.id})
	if method != http.MethodGet {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-CSRF-Token", testCSRFToken)
		req.AddCookie(&http.Cookie{Name: "csrf_token", Value: testCSRFToken})
	}
	for _, cookie := range extra {
		req.AddCookie(cookie)
	}

	w := httptest.NewRecorder()
	c.ts.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v\nbody: %s", err, w.Body.String())
	}
}

func assertRedirect(t *testing.T, w *httptest.ResponseRecorder, status int, location string) {
	t.Helper()
	if w.Code != status {
		t.Errorf("status = %d, want %d", w.Code, status)
	}
	if got := w.Header().Get("Location"); got != location {
		t.Errorf("Location = %q, want %q", got, location)
	}
}

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}
