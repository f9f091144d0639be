package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/agriguard/internal/dashboard"
	"github.com/hitoshi/agriguard/internal/middleware"
	"github.com/hitoshi/agriguard/internal/model"
)

// SessionReader はランディング画面がサインイン状態を判定するために使用する。
type SessionReader interface {
	CurrentSession(ctx context.Context, clientID string) (*model.Session, error)
}

// PageHandlerConfig は画面ハンドラーの設定。
type PageHandlerConfig struct {
	RecaptchaSiteKey string
	ChatWidgetURL    string
}

// PageHandler は画面の表示モデルを返すHTTPハンドラー。
// 保護された画面はルートガードの後に配置する。
type PageHandler struct {
	sessions SessionReader
	config   PageHandlerConfig
}

// NewPageHandler はPageHandlerを生成する。
func NewPageHandler(sessions SessionReader, config PageHandlerConfig) *PageHandler {
	return &PageHandler{sessions: sessions, config: config}
}

// Landing はランディング画面の表示モデルを返す。
// サインイン済みでも自動的にダッシュボードへは遷移しない。
// GET /
func (h *PageHandler) Landing(w http.ResponseWriter, r *http.Request) {
	signedIn := false
	if clientID, err := middleware.ClientIDFromContext(r.Context()); err == nil {
		s, err := h.sessions.CurrentSession(r.Context(), clientID)
		if err != nil {
			slog.Debug("session unavailable on landing",
				slog.String("client_id", clientID),
				slog.String("error", err.Error()),
			)
		}
		signedIn = s != nil
	}

	writeJSON(w, http.StatusOK, dashboard.NewLandingView(signedIn, h.config.RecaptchaSiteKey, h.config.ChatWidgetURL))
}

// Dashboard は/dashboardの表示モデルを返す。
func (h *PageHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, dashboard.NewDashboardView(s))
}

// Live は/liveの表示モデルを返す。
func (h *PageHandler) Live(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, dashboard.NewLiveView(s))
}

// Analytics は/analyticsの表示モデルを返す。
func (h *PageHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, dashboard.NewAnalyticsView(s))
}

// Help は/helpの表示モデルを返す。
func (h *PageHandler) Help(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, dashboard.NewHelpView(s, h.config.ChatWidgetURL))
}

// session はルートガードが注入したSessionを取得する。
// ガードを通過していない場合はランディングへリダイレクトする。
func (h *PageHandler) session(w http.ResponseWriter, r *http.Request) (*model.Session, bool) {
	s, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		w.Header().Set("Location", middleware.GuardRedirectPath)
		w.WriteHeader(http.StatusSeeOther)
		return nil, false
	}
	return s, true
}
