// Package authflow は認証フローの制御を提供する。
// 各認証方式をAuthenticatorとして受け取り、成功時のプロフィール正規化と
// セッションの書き込み、遷移先の決定を一箇所で行う。
package authflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/agriguard/internal/identity"
	"github.com/hitoshi/agriguard/internal/metrics"
	"github.com/hitoshi/agriguard/internal/model"
	"github.com/hitoshi/agriguard/internal/repository"
)

// 遷移先
const (
	DashboardRoute = "/dashboard"
	LandingRoute   = "/"
)

// Authenticator は1つの認証方式を表す。
type Authenticator interface {
	// Method は監査ログとメトリクスに使用する認証方式。
	Method() model.AuthMethod
	// Validate はIdPに問い合わせる前のローカル検証を行う。
	Validate() error
	// Authenticate はIdPに問い合わせ、プロフィールを取得する。
	Authenticate(ctx context.Context) (*identity.Profile, error)
}

// SessionStore はクライアントごとのSessionを保持するキャッシュ。
type SessionStore interface {
	Get(ctx context.Context, clientID string) (*model.Session, error)
	Set(ctx context.Context, clientID string, s *model.Session) error
	Clear(ctx context.Context, clientID string) error
}

// ProfileCleaner はIdPから得た値を表示用に整える。
type ProfileCleaner interface {
	DisplayName(raw string) string
	PhotoURL(raw string) string
}

// Outcome は認証成功時の結果。
type Outcome struct {
	Session  *model.Session
	Redirect string
	Welcome  string
}

// Controller は認証フローを制御する。
type Controller struct {
	sessions  SessionStore
	cleaner   ProfileCleaner
	signOuter identity.SignOuter
	events    repository.AuthEventRepository
	metrics   metrics.MetricsCollector
	now       func() time.Time

	busyMu sync.Mutex
	busy   map[string]struct{}

	hooksMu      sync.Mutex
	signOutHooks []func(clientID string)
}

// NewController はControllerを生成する。
// eventsがnilの場合は監査ログを記録しない。
func NewController(
	sessions SessionStore,
	cleaner ProfileCleaner,
	signOuter identity.SignOuter,
	events repository.AuthEventRepository,
	collector metrics.MetricsCollector,
) *Controller {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Controller{
		sessions:  sessions,
		cleaner:   cleaner,
		signOuter: signOuter,
		events:    events,
		metrics:   collector,
		now:       time.Now,
		busy:      make(map[string]struct{}),
	}
}

// Complete は認証方式を実行し、成功時にSessionを書き込む。
// 同一クライアントで処理中の場合はErrBusyを返す。
// 失敗時は何も書き込まない。
func (c *Controller) Complete(ctx context.Context, clientID string, auth Authenticator, enteredName string) (*Outcome, error) {
	if err := auth.Validate(); err != nil {
		c.record(ctx, clientID, auth.Method(), model.AuthOutcomeInvalid, err)
		return nil, err
	}

	if !c.acquire(clientID) {
		return nil, ErrBusy
	}
	defer c.release(clientID)

	return c.complete(ctx, clientID, auth, enteredName)
}

// complete はbusyガードを取得済みの状態で認証を実行する。
func (c *Controller) complete(ctx context.Context, clientID string, auth Authenticator, enteredName string) (*Outcome, error) {
	method := auth.Method()

	start := c.now()
	profile, err := auth.Authenticate(ctx)
	c.metrics.RecordProviderLatency(string(method), c.now().Sub(start))

	// リクエストが既に終了している場合は結果を破棄する
	if ctxErr := ctx.Err(); ctxErr != nil {
		slog.Info("auth result discarded",
			slog.String("client_id", clientID),
			slog.String("method", string(method)),
		)
		return nil, fmt.Errorf("%w: %w", ErrDiscarded, ctxErr)
	}

	if err != nil {
		c.record(ctx, clientID, method, model.AuthOutcomeRejected, err)
		return nil, err
	}

	s := c.normalize(profile, enteredName)
	if err := c.sessions.Set(ctx, clientID, s); err != nil {
		c.record(ctx, clientID, method, model.AuthOutcomeError, ErrSessionWrite)
		return nil, fmt.Errorf("%w: %w", ErrSessionWrite, err)
	}

	c.record(ctx, clientID, method, model.AuthOutcomeSuccess, nil)
	slog.Info("sign-in succeeded",
		slog.String("client_id", clientID),
		slog.String("method", string(method)),
	)

	return &Outcome{
		Session:  s,
		Redirect: DashboardRoute,
		Welcome:  fmt.Sprintf("Welcome, %s!", s.DisplayName),
	}, nil
}

// normalize はプロフィールをSessionに変換する。
// 表示名はIdPの名前、入力された名前、プレースホルダーの順に採用する。
func (c *Controller) normalize(p *identity.Profile, enteredName string) *model.Session {
	name := c.cleaner.DisplayName(p.DisplayName)
	if name == "" {
		name = c.cleaner.DisplayName(enteredName)
	}
	if name == "" {
		name = model.PlaceholderDisplayName
	}

	return &model.Session{
		DisplayName: name,
		Email:       strings.TrimSpace(p.Email),
		PhotoURL:    c.cleaner.PhotoURL(p.PhotoURL),
	}
}

// SignOut はSessionを削除し、IdP側のサインアウトを試みる。
// Sessionの削除が先に完了していれば、IdP側の失敗はログとメトリクスに記録するのみで成功とする。
func (c *Controller) SignOut(ctx context.Context, clientID string) (string, error) {
	if err := c.sessions.Clear(ctx, clientID); err != nil {
		return "", fmt.Errorf("failed to clear session: %w", err)
	}

	providerFailed := false
	if err := c.signOuter.SignOut(ctx); err != nil {
		providerFailed = true
		slog.Warn("provider sign-out failed",
			slog.String("client_id", clientID),
			slog.String("error", err.Error()),
		)
	}
	c.metrics.RecordSignOut(providerFailed)

	c.hooksMu.Lock()
	hooks := append([]func(string){}, c.signOutHooks...)
	c.hooksMu.Unlock()
	for _, hook := range hooks {
		hook(clientID)
	}

	c.record(ctx, clientID, model.AuthMethodSignOut, model.AuthOutcomeSuccess, nil)
	return LandingRoute, nil
}

// CurrentSession は指定クライアントのSessionを返す。存在しない場合はnil。
func (c *Controller) CurrentSession(ctx context.Context, clientID string) (*model.Session, error) {
	return c.sessions.Get(ctx, clientID)
}

// onSignOut はサインアウト時に呼び出す処理を登録する。
func (c *Controller) onSignOut(hook func(clientID string)) {
	c.hooksMu.Lock()
	defer c.hooksMu.Unlock()
	c.signOutHooks = append(c.signOutHooks, hook)
}

func (c *Controller) acquire(clientID string) bool {
	c.busyMu.Lock()
	defer c.busyMu.Unlock()
	if _, ok := c.busy[clientID]; ok {
		return false
	}
	c.busy[clientID] = struct{}{}
	return true
}

func (c *Controller) release(clientID string) {
	c.busyMu.Lock()
	defer c.busyMu.Unlock()
	delete(c.busy, clientID)
}

// record は認証試行をメトリクスと監査ログに記録する。監査ログの失敗は認証結果に影響しない。
func (c *Controller) record(ctx context.Context, clientID string, method model.AuthMethod, outcome model.AuthOutcome, cause error) {
	if method != model.AuthMethodSignOut {
		c.metrics.RecordAuthAttempt(string(method), string(outcome))
	}
	if c.events == nil {
		return
	}

	event := &model.AuthEvent{
		ClientID:  clientID,
		Method:    method,
		Outcome:   outcome,
		ErrorCode: errorCode(cause),
		CreatedAt: c.now(),
	}
	if err := c.events.Create(context.WithoutCancel(ctx), event); err != nil {
		slog.Warn("failed to record auth event",
			slog.String("client_id", clientID),
			slog.String("error", err.Error()),
		)
	}
}

// errorCode は監査ログ用のエラーコードを返す。
func errorCode(err error) string {
	if err == nil {
		return ""
	}
	var perr *identity.ProviderError
	if errors.As(err, &perr) {
		return perr.Code
	}
	switch {
	case errors.Is(err, ErrInvalidPhone):
		return model.ErrCodeInvalidPhone
	case errors.Is(err, ErrMissingCode):
		return model.ErrCodeMissingCode
	case errors.Is(err, ErrMissingCredentials):
		return model.ErrCodeInvalidCredential
	case errors.Is(err, ErrInvalidMode):
		return model.ErrCodeInvalidMode
	case errors.Is(err, ErrTooManyAttempts):
		return model.ErrCodeTooManyAttempts
	case errors.Is(err, ErrInvalidCode):
		return model.ErrCodeInvalidCode
	case errors.Is(err, ErrMissingAuthCode):
		return model.ErrCodeFederatedFailed
	case errors.Is(err, ErrSessionWrite):
		return model.ErrCodeSessionWrite
	}
	return "UNKNOWN"
}
