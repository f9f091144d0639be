// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// ClientCookieName はクライアントを識別するCookieの名前。
const ClientCookieName = "agriguard_client"

// clientCookieMaxAge はクライアントCookieの有効期間（1年）。
const clientCookieMaxAge = 365 * 24 * 60 * 60

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	clientIDContextKey = contextKey("client_id")
	sessionContextKey  = contextKey("session")
)

// ClientConfig はクライアント識別Cookieの設定。
type ClientConfig struct {
	CookieSecure bool
	CookieDomain string
}

// NewClientMiddleware はクライアント識別Cookieを読み取り、クライアントIDをコンテキストに注入するミドルウェアを返す。
// Cookieが無い、または形式が不正な場合は新しいIDを発行する。
func NewClientMiddleware(config ClientConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := ""
			if cookie, err := r.Cookie(ClientCookieName); err == nil {
				if _, err := uuid.Parse(cookie.Value); err == nil {
					clientID = cookie.Value
				}
			}

			if clientID == "" {
				clientID = uuid.New().String()
				http.SetCookie(w, &http.Cookie{
					Name:     ClientCookieName,
					Value:    clientID,
					Path:     "/",
					Domain:   config.CookieDomain,
					MaxAge:   clientCookieMaxAge,
					HttpOnly: true,
					Secure:   config.CookieSecure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			next.ServeHTTP(w, r.WithContext(ContextWithClientID(r.Context(), clientID)))
		})
	}
}

// ClientIDFromContext はリクエストコンテキストからクライアントIDを取得する。
// クライアントミドルウェアを通過したリクエストでのみ有効。
func ClientIDFromContext(ctx context.Context) (string, error) {
	clientID, ok := ctx.Value(clientIDContextKey).(string)
	if !ok || clientID == "" {
		return "", fmt.Errorf("client ID not found in context")
	}
	return clientID, nil
}

// ContextWithClientID はコンテキストにクライアントIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, clientIDContextKey, clientID)
}
