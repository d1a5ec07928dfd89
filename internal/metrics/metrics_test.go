package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetric は指定名のメトリクスファミリーを返す。見つからない場合はテストを失敗させる。
func findMetric(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("%s metric not found", name)
	return nil
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordEvaluation_ObservesCounterAndHistograms は評価回数・レイテンシ・件数が記録されることを検証する。
func TestRecordEvaluation_ObservesCounterAndHistograms(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordEvaluation(100*time.Millisecond, 3)
	c.RecordEvaluation(2*time.Second, 0)

	if v := findMetric(t, reg, "campusmart_evaluations_total").GetMetric()[0].GetCounter().GetValue(); v != 2 {
		t.Errorf("evaluations_total = %v, want 2", v)
	}

	h := findMetric(t, reg, "campusmart_evaluation_latency_seconds").GetMetric()[0].GetHistogram()
	if h.GetSampleCount() != 2 {
		t.Errorf("sample_count = %d, want 2", h.GetSampleCount())
	}
	// 合計は0.1 + 2.0 = 2.1秒
	if h.GetSampleSum() < 2.0 || h.GetSampleSum() > 2.2 {
		t.Errorf("sample_sum = %v, want ~2.1", h.GetSampleSum())
	}

	size := findMetric(t, reg, "campusmart_evaluation_result_size").GetMetric()[0].GetHistogram()
	if size.GetSampleSum() != 3 {
		t.Errorf("result_size sum = %v, want 3", size.GetSampleSum())
	}
}

// TestRecordStaleDiscarded_IncrementsCounter は破棄カウンタが増加することを検証する。
func TestRecordStaleDiscarded_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordStaleDiscarded()
	c.RecordStaleDiscarded()
	c.RecordStaleDiscarded()

	if v := findMetric(t, reg, "campusmart_stale_results_discarded_total").GetMetric()[0].GetCounter().GetValue(); v != 3 {
		t.Errorf("stale_results_discarded_total = %v, want 3", v)
	}
}

// TestRecordItemCreated_IncrementsCounter は出品作成カウンタが増加することを検証する。
func TestRecordItemCreated_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordItemCreated()
	c.RecordImageProbeFailure()

	if v := findMetric(t, reg, "campusmart_items_created_total").GetMetric()[0].GetCounter().GetValue(); v != 1 {
		t.Errorf("items_created_total = %v, want 1", v)
	}
	if v := findMetric(t, reg, "campusmart_image_probe_fail_total").GetMetric()[0].GetCounter().GetValue(); v != 1 {
		t.Errorf("image_probe_fail_total = %v, want 1", v)
	}
}

// TestRecordHTTPStatus_IncrementsCounterWithLabel はHTTPステータスカウンタがラベル付きで増加することを検証する。
func TestRecordHTTPStatus_IncrementsCounterWithLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(404)

	mf := findMetric(t, reg, "campusmart_http_status_total")
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

// TestRecordListingsExpired_AddsCount は期限切れ出品数が加算されることを検証する。
func TestRecordListingsExpired_AddsCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordListingsExpired(10)
	c.RecordListingsExpired(5)

	if v := findMetric(t, reg, "campusmart_listings_expired_total").GetMetric()[0].GetCounter().GetValue(); v != 15 {
		t.Errorf("listings_expired_total = %v, want 15", v)
	}
}

// TestMetricsHandler_ReturnsPrometheusFormat は/metricsエンドポイントがPrometheus形式で返すことを検証する。
func TestMetricsHandler_ReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordEvaluation(500*time.Millisecond, 4)
	c.RecordStaleDiscarded()
	c.RecordHTTPStatus(200)
	c.RecordItemCreated()

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

	for _, metric := range []string{
		"campusmart_evaluations_total",
		"campusmart_evaluation_latency_seconds",
		"campusmart_stale_results_discarded_total",
		"campusmart_http_status_total",
		"campusmart_items_created_total",
	} {
		if !strings.Contains(bodyStr, metric) {
			t.Errorf("response body does not contain %q", metric)
		}
	}
}

// TestCollector_ImplementsMetricsCollectorInterface はCollectorとNopCollectorがインターフェースを実装することを検証する。
func TestCollector_ImplementsMetricsCollectorInterface(t *testing.T) {
	reg := prometheus.NewRegistry()
	var _ MetricsCollector = NewCollector(reg)
	var _ MetricsCollector = NopCollector{}
}

// TestMultipleCollectors_IndependentRegistries は異なるレジストリで独立に動作することを検証する。
func TestMultipleCollectors_IndependentRegistries(t *testing.T) {
	reg1 := prometheus.NewRegistry()
	reg2 := prometheus.NewRegistry()
	c1 := NewCollector(reg1)
	c2 := NewCollector(reg2)

	c1.RecordItemCreated()
	c2.RecordItemCreated()
	c2.RecordItemCreated()

	val1 := findMetric(t, reg1, "campusmart_items_created_total").GetMetric()[0].GetCounter().GetValue()
	val2 := findMetric(t, reg2, "campusmart_items_created_total").GetMetric()[0].GetCounter().GetValue()

	if val1 != 1 {
		t.Errorf("reg1 items_created = %v, want 1", val1)
	}
	if val2 != 2 {
		t.Errorf("reg2 items_created = %v, want 2", val2)
	}
}
