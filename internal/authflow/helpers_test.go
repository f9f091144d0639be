package authflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/agriguard/internal/identity"
	"github.com/hitoshi/agriguard/internal/model"
	"github.com/hitoshi/agriguard/internal/repository"
	"github.com/hitoshi/agriguard/internal/security"
	"github.com/hitoshi/agriguard/internal/session"
)

// --- テスト用モック ---

type mockFederated struct {
	loginURLFn     func(state string) string
	exchangeCodeFn func(ctx context.Context, code string) (*identity.Profile, error)
}

func (m *mockFederated) LoginURL(state string) string {
	if m.loginURLFn != nil {
		return m.loginURLFn(state)
	}
	return "https://accounts.example.com/auth?state=" + state
}

func (m *mockFederated) ExchangeCode(ctx context.Context, code string) (*identity.Profile, error) {
	return m.exchangeCodeFn(ctx, code)
}

type mockPassword struct {
	signInFn   func(ctx context.Context, email, password string) (*identity.Profile, error)
	registerFn func(ctx context.Context, email, password string) (*identity.Profile, error)
}

func (m *mockPassword) SignInWithPassword(ctx context.Context, email, password string) (*identity.Profile, error) {
	return m.signInFn(ctx, email, password)
}

func (m *mockPassword) RegisterWithPassword(ctx context.Context, email, password string) (*identity.Profile, error) {
	return m.registerFn(ctx, email, password)
}

type mockPhone struct {
	mu        sync.Mutex
	sendCalls []string
	sendFn    func(ctx context.Context, phoneNumber, token string) (identity.ConfirmationHandle, error)
	confirmFn func(ctx context.Context, handle identity.ConfirmationHandle, code string) (*identity.Profile, error)
}

func (m *mockPhone) SendVerificationCode(ctx context.Context, phoneNumber, token string) (identity.ConfirmationHandle, error) {
	m.mu.Lock()
	m.sendCalls = append(m.sendCalls, phoneNumber)
	m.mu.Unlock()
	if m.sendFn != nil {
		return m.sendFn(ctx, phoneNumber, token)
	}
	return "handle-1", nil
}

func (m *mockPhone) ConfirmCode(ctx context.Context, handle identity.ConfirmationHandle, code string) (*identity.Profile, error) {
	return m.confirmFn(ctx, handle, code)
}

func (m *mockPhone) sendCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sendCalls)
}

type mockSignOuter struct {
	err   error
	calls int
}

func (m *mockSignOuter) SignOut(ctx context.Context) error {
	m.calls++
	return m.err
}

type mockEventRepo struct {
	mu     sync.Mutex
	events []*model.AuthEvent
	err    error
}

func (m *mockEventRepo) Create(ctx context.Context, event *model.AuthEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, event)
	return nil
}

func (m *mockEventRepo) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func (m *mockEventRepo) snapshot() []*model.AuthEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*model.AuthEvent(nil), m.events...)
}

type mockMetrics struct {
	mu       sync.Mutex
	attempts map[string]int
	otpSent  int
	signOuts map[bool]int
}

func newMockMetrics() *mockMetrics {
	return &mockMetrics{attempts: make(map[string]int), signOuts: make(map[bool]int)}
}

func (m *mockMetrics) RecordAuthAttempt(method, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts[method+"/"+outcome]++
}

func (m *mockMetrics) RecordOTPSent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.otpSent++
}

func (m *mockMetrics) RecordGuardRedirect(string) {}

func (m *mockMetrics) RecordSignOut(providerFailed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signOuts[providerFailed]++
}

func (m *mockMetrics) RecordProviderLatency(string, time.Duration) {}
func (m *mockMetrics) RecordHTTPStatus(int)                        {}

var errProviderDown = errors.New("dial tcp: connection refused")

// testEnv はテスト用に組み立てたController一式。
type testEnv struct {
	ctrl      *Controller
	cache     *session.Cache
	store     *repository.MemorySessionRepo
	signOuter *mockSignOuter
	events    *mockEventRepo
	metrics   *mockMetrics
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := repository.NewMemorySessionRepo()
	cache := session.NewCache(store)
	env := &testEnv{
		cache:     cache,
		store:     store,
		signOuter: &mockSignOuter{},
		events:    &mockEventRepo{},
		metrics:   newMockMetrics(),
	}
	env.ctrl = NewController(
		cache,
		security.NewProfileSanitizer(security.NewSSRFGuard()),
		env.signOuter,
		env.events,
		env.metrics,
	)
	return env
}

// fakeClock はテスト用の手動で進める時計。
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
