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
	RecordRegistration(role string)
	RecordAuthFailure()
	RecordEmailSendFailure()
	RecordFormationCreated()
	RecordEnrollment()
	RecordProvisionFailure()
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordTokensPurged(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	registrations    *prometheus.CounterVec
	authFailures     prometheus.Counter
	emailFailures    prometheus.Counter
	formationsTotal  prometheus.Counter
	enrollments      prometheus.Counter
	provisionFail    prometheus.Counter
	httpStatus       *prometheus.CounterVec
	requestLatency   prometheus.Histogram
	tokensPurged     prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skillmarket_registrations_total",
			Help: "役割別のアカウント登録数",
		}, []string{"role"}),
		authFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "skillmarket_auth_failures_total",
			Help: "認証失敗の合計数",
		}),
		emailFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "skillmarket_email_send_failures_total",
			Help: "メール送信失敗の合計数",
		}),
		formationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "skillmarket_formations_created_total",
			Help: "作成された研修の合計数",
		}),
		enrollments: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "skillmarket_enrollments_total",
			Help: "受講登録成功の合計数",
		}),
		provisionFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "skillmarket_meet_provision_failures_total",
			Help: "会議URL発行失敗の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skillmarket_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "skillmarket_request_latency_seconds",
			Help:    "HTTPリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		tokensPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "skillmarket_tokens_purged_total",
			Help: "クリーンアップで削除されたトークンの合計数",
		}),
	}

	reg.MustRegister(
		c.registrations,
		c.authFailures,
		c.emailFailures,
		c.formationsTotal,
		c.enrollments,
		c.provisionFail,
		c.httpStatus,
		c.requestLatency,
		c.tokensPurged,
	)

	return c
}

// RecordRegistration はアカウント登録を役割別に記録する。
func (c *Collector) RecordRegistration(role string) {
	c.registrations.WithLabelValues(role).Inc()
}

// RecordAuthFailure は認証失敗を記録する。
func (c *Collector) RecordAuthFailure() {
	c.authFailures.Inc()
}

// RecordEmailSendFailure はメール送信失敗を記録する。
func (c *Collector) RecordEmailSendFailure() {
	c.emailFailures.Inc()
}

// RecordFormationCreated は研修作成を記録する。
func (c *Collector) RecordFormationCreated() {
	c.formationsTotal.Inc()
}

// RecordEnrollment は受講登録成功を記録する。
func (c *Collector) RecordEnrollment() {
	c.enrollments.Inc()
}

// RecordProvisionFailure は会議URL発行失敗を記録する。
func (c *Collector) RecordProvisionFailure() {
	c.provisionFail.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストのレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordTokensPurged はクリーンアップで削除されたトークン数を記録する。
func (c *Collector) RecordTokensPurged(count int64) {
	c.tokensPurged.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
