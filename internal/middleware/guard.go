package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/agriguard/internal/metrics"
	"github.com/hitoshi/agriguard/internal/model"
)

// GuardRedirectPath は未認証時のリダイレクト先。
const GuardRedirectPath = "/"

// GuardSessions はルートガードが使用するセッションキャッシュの操作。
type GuardSessions interface {
	Get(ctx context.Context, clientID string) (*model.Session, error)
	Clear(ctx context.Context, clientID string) error
}

// NewRouteGuard は保護されたビューへのアクセスを制御するミドルウェアを返す。
// Sessionが存在する場合のみ後続のハンドラーを実行し、それ以外は本文なしでランディングへリダイレクトする。
// 不正な形式のSessionは削除してからリダイレクトする。
// キャッシュの読み取りに失敗した場合もリダイレクトする。
func NewRouteGuard(sessions GuardSessions, collector metrics.MetricsCollector) func(next http.Handler) http.Handler {
	if collector == nil {
		collector = metrics.Nop{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID, err := ClientIDFromContext(r.Context())
			if err != nil {
				collector.RecordGuardRedirect("absent")
				redirectToLanding(w)
				return
			}

			s, err := sessions.Get(r.Context(), clientID)
			switch {
			case errors.Is(err, model.ErrMalformedSession):
				slog.Warn("malformed session cleared",
					slog.String("client_id", clientID),
					slog.String("path", r.URL.Path),
				)
				if clearErr := sessions.Clear(r.Context(), clientID); clearErr != nil {
					slog.Error("failed to clear malformed session",
						slog.String("client_id", clientID),
						slog.String("error", clearErr.Error()),
					)
				}
				collector.RecordGuardRedirect("malformed")
				redirectToLanding(w)
				return
			case err != nil:
				slog.Error("failed to read session",
					slog.String("client_id", clientID),
					slog.String("error", err.Error()),
				)
				collector.RecordGuardRedirect("store_error")
				redirectToLanding(w)
				return
			case s == nil:
				collector.RecordGuardRedirect("absent")
				redirectToLanding(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), s)))
		})
	}
}

// redirectToLanding は本文なしの303リダイレクトを書き込む。
// http.Redirectは本文を付与するため使用しない。
func redirectToLanding(w http.ResponseWriter) {
	w.Header().Set("Location", GuardRedirectPath)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusSeeOther)
}

// SessionFromContext はルートガードが注入したSessionを取得する。
func SessionFromContext(ctx context.Context) (*model.Session, bool) {
	s, ok := ctx.Value(sessionContextKey).(*model.Session)
	return s, ok && s != nil
}

// ContextWithSession はコンテキストにSessionを注入する。
func ContextWithSession(ctx context.Context, s *model.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, s)
}
