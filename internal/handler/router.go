package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/agriguard/internal/metrics"
	"github.com/hitoshi/agriguard/internal/middleware"
)

// HealthChecker はヘルスチェックで疎通を確認する依存先。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector
	MetricsHandler    http.Handler
	GuardSessions     middleware.GuardSessions
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	ClientConfig      middleware.ClientConfig
	CSRFConfig        middleware.CSRFConfig
	HealthChecker     HealthChecker

	// 認証
	AuthHandler *AuthHandler

	// 画面
	PageHandler *PageHandler
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Client → Logging
//
// 認証ルート（/auth/*）には RateLimit(General) と、状態変更メソッドに CSRF を適用する。
// 保護された画面には RouteGuard を適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	// ログにクライアントIDを含めるため、Clientの後にLoggingを置く
	r.Use(middleware.NewClientMiddleware(deps.ClientConfig))
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))

	// --- アンビエント ---
	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- 公開ルート ---
	r.Get("/", deps.PageHandler.Landing)

	r.Route("/auth", func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)

		// フェデレーテッドログイン（ブラウザ遷移のためCSRFトークンはstateで代替）
		r.Get("/google/login", deps.AuthHandler.Login)
		r.Get("/google/callback", deps.AuthHandler.Callback)

		r.Get("/session", deps.AuthHandler.Session)
		r.Get("/phone/challenge", deps.AuthHandler.PhoneChallenge)

		r.Group(func(r chi.Router) {
			r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

			r.Post("/email", deps.AuthHandler.Email)
			r.With(deps.RateLimiter.OTPSendMiddleware()).Post("/phone/send", deps.AuthHandler.PhoneSend)
			r.Post("/phone/verify", deps.AuthHandler.PhoneVerify)
			r.Post("/logout", deps.AuthHandler.Logout)
		})
	})

	// --- 保護された画面 ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewRouteGuard(deps.GuardSessions, deps.Metrics))

		r.Get("/dashboard", deps.PageHandler.Dashboard)
		r.Get("/live", deps.PageHandler.Live)
		r.Get("/analytics", deps.PageHandler.Analytics)
		r.Get("/help", deps.PageHandler.Help)
	})

	return r
}

// healthHandler は依存先への疎通を確認するハンドラーを返す。
// GET /health
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
