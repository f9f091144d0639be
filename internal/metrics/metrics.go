// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 認証フロー、ルートガード、HTTPミドルウェアから利用する。
type MetricsCollector interface {
	RecordAuthAttempt(method, outcome string)
	RecordOTPSent()
	RecordGuardRedirect(reason string)
	RecordSignOut(providerFailed bool)
	RecordProviderLatency(method string, duration time.Duration)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	authAttempts    *prometheus.CounterVec
	otpSent         prometheus.Counter
	guardRedirects  *prometheus.CounterVec
	signOuts        *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
	httpStatus      *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agriguard_auth_attempts_total",
			Help: "認証方式・結果別の認証試行数",
		}, []string{"method", "outcome"}),
		otpSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agriguard_otp_sent_total",
			Help: "OTP送信成功の合計数",
		}),
		guardRedirects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agriguard_guard_redirects_total",
			Help: "ルートガードによるリダイレクト数（理由別）",
		}, []string{"reason"}),
		signOuts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agriguard_sign_outs_total",
			Help: "サインアウト数（IdP側サインアウトの結果別）",
		}, []string{"provider"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agriguard_provider_latency_seconds",
			Help:    "IdP呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agriguard_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.authAttempts,
		c.otpSent,
		c.guardRedirects,
		c.signOuts,
		c.providerLatency,
		c.httpStatus,
	)

	return c
}

// RecordAuthAttempt は認証試行を記録する。
func (c *Collector) RecordAuthAttempt(method, outcome string) {
	c.authAttempts.WithLabelValues(method, outcome).Inc()
}

// RecordOTPSent はOTP送信成功を記録する。
func (c *Collector) RecordOTPSent() {
	c.otpSent.Inc()
}

// RecordGuardRedirect はルートガードによるリダイレクトを記録する。
// reason: absent, malformed, store_error
func (c *Collector) RecordGuardRedirect(reason string) {
	c.guardRedirects.WithLabelValues(reason).Inc()
}

// RecordSignOut はサインアウトを記録する。
func (c *Collector) RecordSignOut(providerFailed bool) {
	label := "ok"
	if providerFailed {
		label = "failed"
	}
	c.signOuts.WithLabelValues(label).Inc()
}

// RecordProviderLatency はIdP呼び出しのレイテンシを記録する。
func (c *Collector) RecordProviderLatency(method string, duration time.Duration) {
	c.providerLatency.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop は何も記録しないMetricsCollector。メトリクスを無効化する場合に使用する。
type Nop struct{}

func (Nop) RecordAuthAttempt(string, string)            {}
func (Nop) RecordOTPSent()                              {}
func (Nop) RecordGuardRedirect(string)                  {}
func (Nop) RecordSignOut(bool)                          {}
func (Nop) RecordProviderLatency(string, time.Duration) {}
func (Nop) RecordHTTPStatus(int)                        {}

// compile-time interface check
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
