package middleware

import "net/http"

// NewSecurityHeadersMiddleware はすべてのレスポンスにセキュリティヘッダーを付与する。
// Googleログインのポップアップがopenerへ結果を返せるよう、COOPはsame-origin-allow-popupsとする。
// 画面とAPIはSessionに依存するため、キャッシュさせない。
func NewSecurityHeadersMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Content-Security-Policy", "frame-ancestors 'none'")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=(self)")
			h.Set("Cross-Origin-Opener-Policy", "same-origin-allow-popups")
			h.Set("Cache-Control", "no-store")
			next.ServeHTTP(w, r)
		})
	}
}
