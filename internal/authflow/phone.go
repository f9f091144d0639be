package authflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hitoshi/agriguard/internal/identity"
	"github.com/hitoshi/agriguard/internal/model"
)

// PhoneState は電話番号OTPフローの状態。
type PhoneState int

const (
	// AwaitingPhone は電話番号の入力待ち。
	AwaitingPhone PhoneState = iota
	// AwaitingCode はOTP送信済みでコードの入力待ち。
	AwaitingCode
	// Done はサインイン完了。
	Done
)

// String はAPIで返す状態名。
func (s PhoneState) String() string {
	switch s {
	case AwaitingPhone:
		return "awaiting-phone"
	case AwaitingCode:
		return "code-sent"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// PhoneConfig は電話番号OTPフローの設定。
type PhoneConfig struct {
	CountryCode    string        // 10桁の番号の前に付与する国番号（例: "+91"）
	ResendCooldown time.Duration // 同一クライアントのOTP再送の最小間隔
	MaxAttempts    int           // 1回の送信あたりの誤入力上限
	FlowTTL        time.Duration // 放置されたフローを破棄するまでの時間
	SweepInterval  time.Duration // 破棄処理の実行間隔
}

// DefaultPhoneConfig はデフォルト設定を返す。
func DefaultPhoneConfig() PhoneConfig {
	return PhoneConfig{
		CountryCode:    "+91",
		ResendCooldown: 30 * time.Second,
		MaxAttempts:    5,
		FlowTTL:        10 * time.Minute,
		SweepInterval:  time.Minute,
	}
}

// phoneFlow は1クライアントのOTPフロー。
type phoneFlow struct {
	state     PhoneState
	phone     string
	handle    identity.ConfirmationHandle
	attempts  int
	sentAt    time.Time
	updatedAt time.Time
}

// SendResult はOTP送信成功時の結果。
type SendResult struct {
	State       PhoneState
	PhoneNumber string
	Message     string
}

// PhoneFlow は電話番号OTPによる認証の状態機械。
// AwaitingPhone → AwaitingCode → Done の順に遷移する。
type PhoneFlow struct {
	ctrl       *Controller
	provider   identity.PhoneProvider
	challenges *ChallengeRegistry
	config     PhoneConfig
	now        func() time.Time

	mu    sync.Mutex
	flows map[string]*phoneFlow

	started  atomic.Bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// NewPhoneFlow はPhoneFlowを生成する。サインアウト時にクライアントのフローを破棄する。
// 放置フローの破棄を行うにはStartを呼び出すこと。
func NewPhoneFlow(ctrl *Controller, provider identity.PhoneProvider, challenges *ChallengeRegistry, config PhoneConfig) *PhoneFlow {
	f := &PhoneFlow{
		ctrl:       ctrl,
		provider:   provider,
		challenges: challenges,
		config:     config,
		now:        time.Now,
		flows:      make(map[string]*phoneFlow),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
	ctrl.onSignOut(f.Reset)
	return f
}

// EnsureChallenge はクライアントの人間確認を返す。冪等。
func (f *PhoneFlow) EnsureChallenge(clientID string) Challenge {
	return f.challenges.Ensure(clientID)
}

// State は指定クライアントの現在の状態を返す。
func (f *PhoneFlow) State(clientID string) PhoneState {
	f.mu.Lock()
	defer f.mu.Unlock()

	if flow, ok := f.flows[clientID]; ok {
		return flow.state
	}
	return AwaitingPhone
}

// SendCode は10桁の電話番号にOTPを送信する。
// 番号が不正な場合はIdPに問い合わせず、状態も変更しない。
func (f *PhoneFlow) SendCode(ctx context.Context, clientID, phone, recaptchaToken string) (*SendResult, error) {
	if !isTenDigits(phone) {
		f.ctrl.record(ctx, clientID, model.AuthMethodPhone, model.AuthOutcomeInvalid, ErrInvalidPhone)
		return nil, ErrInvalidPhone
	}

	if !f.ctrl.acquire(clientID) {
		return nil, ErrBusy
	}
	defer f.ctrl.release(clientID)

	if wait := f.cooldownRemaining(clientID); wait > 0 {
		return nil, &CooldownError{RetryAfter: wait}
	}

	f.challenges.Ensure(clientID)
	number := f.config.CountryCode + phone

	start := f.now()
	handle, err := f.provider.SendVerificationCode(ctx, number, recaptchaToken)
	f.ctrl.metrics.RecordProviderLatency("phone_send", f.now().Sub(start))

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrDiscarded, ctxErr)
	}
	if err != nil {
		f.ctrl.record(ctx, clientID, model.AuthMethodPhone, model.AuthOutcomeRejected, err)
		slog.Warn("failed to send verification code",
			slog.String("client_id", clientID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %w", ErrSendFailed, err)
	}

	now := f.now()
	f.mu.Lock()
	f.flows[clientID] = &phoneFlow{
		state:     AwaitingCode,
		phone:     number,
		handle:    handle,
		sentAt:    now,
		updatedAt: now,
	}
	f.mu.Unlock()

	f.ctrl.metrics.RecordOTPSent()

	return &SendResult{
		State:       AwaitingCode,
		PhoneNumber: number,
		Message:     fmt.Sprintf("An OTP has been sent to %s", number),
	}, nil
}

// ConfirmCode はOTPを検証し、成功時にSessionを書き込む。
// 誤ったコードの場合はAwaitingCodeのまま再入力を受け付ける。誤入力が上限に達した場合はAwaitingPhoneに戻る。
func (f *PhoneFlow) ConfirmCode(ctx context.Context, clientID, code, enteredName string) (*Outcome, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		f.ctrl.record(ctx, clientID, model.AuthMethodPhone, model.AuthOutcomeInvalid, ErrMissingCode)
		return nil, ErrMissingCode
	}

	if !f.ctrl.acquire(clientID) {
		return nil, ErrBusy
	}
	defer f.ctrl.release(clientID)

	f.mu.Lock()
	flow, ok := f.flows[clientID]
	if !ok || flow.state != AwaitingCode {
		f.mu.Unlock()
		return nil, ErrNoPendingCode
	}
	handle := flow.handle
	f.mu.Unlock()

	strategy := &phoneConfirmStrategy{provider: f.provider, handle: handle, code: code}
	outcome, err := f.ctrl.complete(ctx, clientID, strategy, enteredName)
	if err != nil {
		// コードは受理済みのため試行回数に数えない
		if errors.Is(err, ErrDiscarded) || errors.Is(err, ErrSessionWrite) {
			return nil, err
		}
		return nil, f.rejectCode(clientID, handle, err)
	}

	f.mu.Lock()
	if current, ok := f.flows[clientID]; ok && current.handle == handle {
		current.state = Done
		current.updatedAt = f.now()
	}
	f.mu.Unlock()

	return outcome, nil
}

// rejectCode は誤ったコードを記録し、呼び出し元に返すエラーを決定する。
func (f *PhoneFlow) rejectCode(clientID string, handle identity.ConfirmationHandle, cause error) error {
	var perr *identity.ProviderError
	if !errors.As(cause, &perr) {
		// IdPに到達していない場合は試行回数に数えない
		return fmt.Errorf("%w: %w", ErrInvalidCode, cause)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	flow, ok := f.flows[clientID]
	if !ok || flow.handle != handle {
		return fmt.Errorf("%w: %w", ErrInvalidCode, cause)
	}

	flow.attempts++
	flow.updatedAt = f.now()
	if f.config.MaxAttempts > 0 && flow.attempts >= f.config.MaxAttempts {
		delete(f.flows, clientID)
		slog.Warn("verification code attempts exhausted",
			slog.String("client_id", clientID),
			slog.Int("attempts", flow.attempts),
		)
		return fmt.Errorf("%w: %w", ErrTooManyAttempts, cause)
	}
	return fmt.Errorf("%w: %w", ErrInvalidCode, cause)
}

// Reset はクライアントのフローを破棄し、AwaitingPhoneに戻す。
func (f *PhoneFlow) Reset(clientID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.flows, clientID)
}

// cooldownRemaining は再送可能になるまでの残り時間を返す。
func (f *PhoneFlow) cooldownRemaining(clientID string) time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()

	flow, ok := f.flows[clientID]
	if !ok || flow.state != AwaitingCode || f.config.ResendCooldown <= 0 {
		return 0
	}
	elapsed := f.now().Sub(flow.sentAt)
	if elapsed >= f.config.ResendCooldown {
		return 0
	}
	return f.config.ResendCooldown - elapsed
}

// Start は放置フローの定期破棄を開始する。
func (f *PhoneFlow) Start() {
	if !f.started.CompareAndSwap(false, true) {
		return
	}

	interval := f.config.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}

	go func() {
		defer close(f.doneCh)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				f.Sweep()
			case <-f.stopCh:
				return
			}
		}
	}()
}

// Stop は定期破棄を停止し、ゴルーチンの終了を待つ。Startを呼んでいない場合は即座に戻る。
func (f *PhoneFlow) Stop() {
	f.stopOnce.Do(func() {
		close(f.stopCh)
	})
	if f.started.Load() {
		<-f.doneCh
	}
}

// Sweep は最終更新からFlowTTLを超えたフローと人間確認を破棄し、破棄したフロー数を返す。
func (f *PhoneFlow) Sweep() int {
	if f.config.FlowTTL <= 0 {
		return 0
	}

	f.mu.Lock()
	now := f.now()
	removed := 0
	for id, flow := range f.flows {
		if now.Sub(flow.updatedAt) > f.config.FlowTTL {
			delete(f.flows, id)
			removed++
		}
	}
	f.mu.Unlock()

	f.challenges.evictIdle(f.config.FlowTTL)

	if removed > 0 {
		slog.Info("expired phone flows removed", slog.Int("count", removed))
	}
	return removed
}

// isTenDigits は文字列がASCII数字ちょうど10桁かを判定する。
func isTenDigits(s string) bool {
	if len(s) != 10 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
