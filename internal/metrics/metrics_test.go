package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// counterValue は指定メトリクスのカウンタ値をレジストリから取り出す。
func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	for _, mf := range metrics {
		if mf.GetName() == name {
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}

	t.Fatalf("%s metric not found", name)
	return 0
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordRegistration_IncrementsCounterPerRole は登録カウンタが役割別に増加することを検証する。
func TestRecordRegistration_IncrementsCounterPerRole(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRegistration("apprenant")
	c.RecordRegistration("apprenant")
	c.RecordRegistration("expert")

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "skillmarket_registrations_total" {
			found = true
			if len(mf.GetMetric()) != 2 {
				t.Fatalf("expected 2 label combinations, got %d", len(mf.GetMetric()))
			}
			for _, m := range mf.GetMetric() {
				label := m.GetLabel()[0].GetValue()
				val := m.GetCounter().GetValue()
				switch label {
				case "apprenant":
					if val != 2 {
						t.Errorf("registrations_total{role=apprenant} = %v, want 2", val)
					}
				case "expert":
					if val != 1 {
						t.Errorf("registrations_total{role=expert} = %v, want 1", val)
					}
				default:
					t.Errorf("unexpected label value: %s", label)
				}
			}
		}
	}
	if !found {
		t.Error("skillmarket_registrations_total metric not found")
	}
}

// TestRecordAuthFailure_IncrementsCounter は認証失敗カウンタが増加することを検証する。
func TestRecordAuthFailure_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAuthFailure()
	c.RecordAuthFailure()

	if val := counterValue(t, reg, "skillmarket_auth_failures_total"); val != 2 {
		t.Errorf("auth_failures_total = %v, want 2", val)
	}
}

// TestRecordEmailSendFailure_IncrementsCounter はメール送信失敗カウンタが増加することを検証する。
func TestRecordEmailSendFailure_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordEmailSendFailure()

	if val := counterValue(t, reg, "skillmarket_email_send_failures_total"); val != 1 {
		t.Errorf("email_send_failures_total = %v, want 1", val)
	}
}

// TestRecordFormationAndEnrollment_IncrementCounters は研修作成・受講登録カウンタが増加することを検証する。
func TestRecordFormationAndEnrollment_IncrementCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordFormationCreated()
	c.RecordEnrollment()
	c.RecordEnrollment()
	c.RecordEnrollment()

	if val := counterValue(t, reg, "skillmarket_formations_created_total"); val != 1 {
		t.Errorf("formations_created_total = %v, want 1", val)
	}
	if val := counterValue(t, reg, "skillmarket_enrollments_total"); val != 3 {
		t.Errorf("enrollments_total = %v, want 3", val)
	}
}

// TestRecordProvisionFailure_IncrementsCounter は会議URL発行失敗カウンタが増加することを検証する。
func TestRecordProvisionFailure_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordProvisionFailure()

	if val := counterValue(t, reg, "skillmarket_meet_provision_failures_total"); val != 1 {
		t.Errorf("meet_provision_failures_total = %v, want 1", val)
	}
}

// TestRecordHTTPStatus_IncrementsCounterWithLabel はHTTPステータスカウンタがラベル付きで増加することを検証する。
func TestRecordHTTPStatus_IncrementsCounterWithLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(404)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "skillmarket_http_status_total" {
			found = true
			if len(mf.GetMetric()) != 2 {
				t.Fatalf("expected 2 label combinations, got %d", len(mf.GetMetric()))
			}
			for _, m := range mf.GetMetric() {
				label := m.GetLabel()[0].GetValue()
				val := m.GetCounter().GetValue()
				switch label {
				case "200":
					if val != 2 {
						t.Errorf("http_status_total{status_code=200} = %v, want 2", val)
					}
				case "404":
					if val != 1 {
						t.Errorf("http_status_total{status_code=404} = %v, want 1", val)
					}
				default:
					t.Errorf("unexpected label value: %s", label)
				}
			}
		}
	}
	if !found {
		t.Error("skillmarket_http_status_total metric not found")
	}
}

// TestRecordRequestLatency_ObservesHistogram はリクエストレイテンシのヒストグラムに値が記録されることを検証する。
func TestRecordRequestLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRequestLatency(100 * time.Millisecond)
	c.RecordRequestLatency(2 * time.Second)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "skillmarket_request_latency_seconds" {
			found = true
			h := mf.GetMetric()[0].GetHistogram()
			if h.GetSampleCount() != 2 {
				t.Errorf("sample_count = %d, want 2", h.GetSampleCount())
			}
			// 合計は0.1 + 2.0 = 2.1秒
			if h.GetSampleSum() < 2.0 || h.GetSampleSum() > 2.2 {
				t.Errorf("sample_sum = %v, want ~2.1", h.GetSampleSum())
			}
		}
	}
	if !found {
		t.Error("skillmarket_request_latency_seconds metric not found")
	}
}

// TestRecordTokensPurged_AddsToCounter はトークン削除カウンタが件数分増加することを検証する。
func TestRecordTokensPurged_AddsToCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordTokensPurged(10)
	c.RecordTokensPurged(5)

	if val := counterValue(t, reg, "skillmarket_tokens_purged_total"); val != 15 {
		t.Errorf("tokens_purged_total = %v, want 15", val)
	}
}

// TestMetricsHandler_ReturnsPrometheusFormat は/metricsエンドポイントがPrometheus形式で返すことを検証する。
func TestMetricsHandler_ReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	// いくつかのメトリクスを記録
	c.RecordRegistration("apprenant")
	c.RecordAuthFailure()
	c.RecordHTTPStatus(200)
	c.RecordRequestLatency(500 * time.Millisecond)
	c.RecordTokensPurged(3)

	handler := Handler(reg)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	// Prometheus形式のメトリクスが含まれていることを確認
	expectedMetrics := []string{
		"skillmarket_registrations_total",
		"skillmarket_auth_failures_total",
		"skillmarket_http_status_total",
		"skillmarket_request_latency_seconds",
		"skillmarket_tokens_purged_total",
	}

	for _, metric := range expectedMetrics {
		if !strings.Contains(bodyStr, metric) {
			t.Errorf("response body does not contain %q", metric)
		}
	}
}

// TestCollector_ImplementsMetricsCollectorInterface はCollectorがMetricsCollectorインターフェースを実装することを検証する。
func TestCollector_ImplementsMetricsCollectorInterface(t *testing.T) {
	reg := prometheus.NewRegistry()
	var _ MetricsCollector = NewCollector(reg)
}

// TestMultipleCollectors_IndependentRegistries は異なるレジストリで独立に動作することを検証する。
func TestMultipleCollectors_IndependentRegistries(t *testing.T) {
	reg1 := prometheus.NewRegistry()
	reg2 := prometheus.NewRegistry()
	c1 := NewCollector(reg1)
	c2 := NewCollector(reg2)

	c1.RecordEnrollment()
	c2.RecordEnrollment()
	c2.RecordEnrollment()

	val1 := counterValue(t, reg1, "skillmarket_enrollments_total")
	val2 := counterValue(t, reg2, "skillmarket_enrollments_total")

	if val1 != 1 {
		t.Errorf("reg1 enrollments = %v, want 1", val1)
	}
	if val2 != 2 {
		t.Errorf("reg2 enrollments = %v, want 2", val2)
	}
}
