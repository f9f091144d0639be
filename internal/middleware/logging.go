package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/agriguard/internal/metrics"
)

// quietPaths はコンテナのヘルスチェックで頻繁に呼ばれるためDebugで記録する。
var quietPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// responseRecorder は最初に書き込まれたステータスコードを保持する。
type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (rr *responseRecorder) WriteHeader(code int) {
	if rr.status == 0 {
		rr.status = code
	}
	rr.ResponseWriter.WriteHeader(code)
}

func (rr *responseRecorder) Write(b []byte) (int, error) {
	if rr.status == 0 {
		rr.status = http.StatusOK
	}
	return rr.ResponseWriter.Write(b)
}

// statusCode はハンドラーが何も書き込まなかった場合に200を返す。
func (rr *responseRecorder) statusCode() int {
	if rr.status == 0 {
		return http.StatusOK
	}
	return rr.status
}

// NewLoggingMiddleware はリクエストごとに1行のJSONログを出力する。
// 5xxはError、4xx（ガードによるリダイレクトは3xxのため含まない）はWarnで記録する。
// ログにはmethod、path、route、status、duration_ms、client_idを含む。
// collectorにはステータスコードを記録する。
func NewLoggingMiddleware(logger *slog.Logger, collector metrics.MetricsCollector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &responseRecorder{ResponseWriter: w}

			next.ServeHTTP(rec, r)

			status := rec.statusCode()
			if collector != nil {
				collector.RecordHTTPStatus(status)
			}

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.Float64("duration_ms", float64(time.Since(start).Microseconds())/1000),
			}
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					attrs = append(attrs, slog.String("route", pattern))
				}
			}
			if clientID, err := ClientIDFromContext(r.Context()); err == nil {
				attrs = append(attrs, slog.String("client_id", clientID))
			}

			logger.LogAttrs(r.Context(), requestLogLevel(r.URL.Path, status), "http_request", attrs...)
		})
	}
}

func requestLogLevel(path string, status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	case quietPaths[path]:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}
