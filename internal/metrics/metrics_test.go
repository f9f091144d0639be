package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetric は指定名・ラベルに一致するメトリクスを返す。見つからない場合はnil。
func findMetric(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) *dto.Metric {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m, labels) {
				return m
			}
		}
	}
	return nil
}

func labelsMatch(m *dto.Metric, want map[string]string) bool {
	got := make(map[string]string)
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

func TestNewCollector_ReturnsNonNil(t *testing.T) {
	if c := NewCollector(prometheus.NewRegistry()); c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

func TestRecordAuthAttempt_ByMethodAndOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAuthAttempt("phone", "success")
	c.RecordAuthAttempt("phone", "success")
	c.RecordAuthAttempt("phone", "rejected")

	m := findMetric(t, reg, "agriguard_auth_attempts_total", map[string]string{"method": "phone", "outcome": "success"})
	if m == nil {
		t.Fatal("agriguard_auth_attempts_total{phone,success} not found")
	}
	if v := m.GetCounter().GetValue(); v != 2 {
		t.Errorf("auth_attempts{phone,success} = %v, want 2", v)
	}

	m = findMetric(t, reg, "agriguard_auth_attempts_total", map[string]string{"method": "phone", "outcome": "rejected"})
	if m == nil || m.GetCounter().GetValue() != 1 {
		t.Error("auth_attempts{phone,rejected} should be 1")
	}
}

func TestRecordOTPSent_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordOTPSent()

	m := findMetric(t, reg, "agriguard_otp_sent_total", nil)
	if m == nil || m.GetCounter().GetValue() != 1 {
		t.Error("agriguard_otp_sent_total should be 1")
	}
}

func TestRecordGuardRedirect_ByReason(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordGuardRedirect("absent")
	c.RecordGuardRedirect("malformed")

	for _, reason := range []string{"absent", "malformed"} {
		m := findMetric(t, reg, "agriguard_guard_redirects_total", map[string]string{"reason": reason})
		if m == nil || m.GetCounter().GetValue() != 1 {
			t.Errorf("guard_redirects{%s} should be 1", reason)
		}
	}
}

func TestRecordSignOut_ProviderLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSignOut(false)
	c.RecordSignOut(true)
	c.RecordSignOut(true)

	if m := findMetric(t, reg, "agriguard_sign_outs_total", map[string]string{"provider": "ok"}); m == nil || m.GetCounter().GetValue() != 1 {
		t.Error("sign_outs{ok} should be 1")
	}
	if m := findMetric(t, reg, "agriguard_sign_outs_total", map[string]string{"provider": "failed"}); m == nil || m.GetCounter().GetValue() != 2 {
		t.Error("sign_outs{failed} should be 2")
	}
}

func TestRecordProviderLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordProviderLatency("password", 150*time.Millisecond)

	m := findMetric(t, reg, "agriguard_provider_latency_seconds", map[string]string{"method": "password"})
	if m == nil {
		t.Fatal("agriguard_provider_latency_seconds{password} not found")
	}
	if got := m.GetHistogram().GetSampleCount(); got != 1 {
		t.Errorf("sample count = %d, want 1", got)
	}
}

func TestRecordHTTPStatus_ByCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(303)

	if m := findMetric(t, reg, "agriguard_http_status_total", map[string]string{"status_code": "303"}); m == nil {
		t.Error("http_status_total{303} not found")
	}
}

func TestNop_DoesNotPanic(t *testing.T) {
	var c MetricsCollector = Nop{}
	c.RecordAuthAttempt("phone", "success")
	c.RecordOTPSent()
	c.RecordGuardRedirect("absent")
	c.RecordSignOut(true)
	c.RecordProviderLatency("phone", time.Second)
	c.RecordHTTPStatus(200)
}
