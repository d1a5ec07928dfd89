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
// サービス層・ミドルウェア・ワーカーから利用する。
type MetricsCollector interface {
	RecordEvaluation(duration time.Duration, resultSize int)
	RecordStaleDiscarded()
	RecordItemCreated()
	RecordImageProbeFailure()
	RecordHTTPStatus(statusCode int)
	RecordListingsExpired(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	evaluations     prometheus.Counter
	evalLatency     prometheus.Histogram
	resultSize      prometheus.Histogram
	staleDiscarded  prometheus.Counter
	itemsCreated    prometheus.Counter
	imageProbeFail  prometheus.Counter
	httpStatus      *prometheus.CounterVec
	listingsExpired prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		evaluations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "campusmart_evaluations_total",
			Help: "出品一覧の評価回数の合計",
		}),
		evalLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "campusmart_evaluation_latency_seconds",
			Help:    "出品一覧の評価（取得を含む）のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		resultSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "campusmart_evaluation_result_size",
			Help:    "評価結果の件数",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}),
		staleDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "campusmart_stale_results_discarded_total",
			Help: "新しい評価に追い越されて破棄された結果の合計数",
		}),
		itemsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "campusmart_items_created_total",
			Help: "作成された出品の合計数",
		}),
		imageProbeFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "campusmart_image_probe_fail_total",
			Help: "画像URLの到達確認に失敗した合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campusmart_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		listingsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "campusmart_listings_expired_total",
			Help: "保持期間を過ぎて削除された出品の合計数",
		}),
	}

	reg.MustRegister(
		c.evaluations,
		c.evalLatency,
		c.resultSize,
		c.staleDiscarded,
		c.itemsCreated,
		c.imageProbeFail,
		c.httpStatus,
		c.listingsExpired,
	)

	return c
}

// RecordEvaluation は1回の評価のレイテンシと結果件数を記録する。
func (c *Collector) RecordEvaluation(duration time.Duration, resultSize int) {
	c.evaluations.Inc()
	c.evalLatency.Observe(duration.Seconds())
	c.resultSize.Observe(float64(resultSize))
}

// RecordStaleDiscarded は古い評価結果の破棄を記録する。
func (c *Collector) RecordStaleDiscarded() {
	c.staleDiscarded.Inc()
}

// RecordItemCreated は出品の作成を記録する。
func (c *Collector) RecordItemCreated() {
	c.itemsCreated.Inc()
}

// RecordImageProbeFailure は画像URLの到達確認失敗を記録する。
func (c *Collector) RecordImageProbeFailure() {
	c.imageProbeFail.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordListingsExpired は期限切れで削除された出品数を記録する。
func (c *Collector) RecordListingsExpired(count int) {
	c.listingsExpired.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// NopCollector は何も記録しないMetricsCollector。メトリクスを使わないテストやツールで使用する。
type NopCollector struct{}

func (NopCollector) RecordEvaluation(time.Duration, int) {}
func (NopCollector) RecordStaleDiscarded()               {}
func (NopCollector) RecordItemCreated()                  {}
func (NopCollector) RecordImageProbeFailure()            {}
func (NopCollector) RecordHTTPStatus(int)                {}
func (NopCollector) RecordListingsExpired(int)           {}
