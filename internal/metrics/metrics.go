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
// 認証サービスやワーカーから利用する。
type MetricsCollector interface {
	IncRegistration(outcome string)
	IncVerification(outcome string)
	IncLogin(outcome string)
	IncMailDelivery(outcome string)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordVersionsPruned(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	registrations  *prometheus.CounterVec
	verifications  *prometheus.CounterVec
	logins         *prometheus.CounterVec
	mailDeliveries *prometheus.CounterVec
	httpStatus     *prometheus.CounterVec
	requestLatency prometheus.Histogram
	versionsPruned prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "noteit_registrations_total",
			Help: "結果別の登録リクエスト数",
		}, []string{"outcome"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "noteit_verifications_total",
			Help: "結果別のメール確認リクエスト数",
		}, []string{"outcome"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "noteit_logins_total",
			Help: "結果別のログインリクエスト数",
		}, []string{"outcome"}),
		mailDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "noteit_mail_deliveries_total",
			Help: "結果別の確認メール送信数",
		}, []string{"outcome"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "noteit_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "noteit_request_latency_seconds",
			Help:    "HTTPリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		versionsPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "noteit_versions_pruned_total",
			Help: "クリーンアップで削除されたノート履歴の合計数",
		}),
	}

	reg.MustRegister(
		c.registrations,
		c.verifications,
		c.logins,
		c.mailDeliveries,
		c.httpStatus,
		c.requestLatency,
		c.versionsPruned,
	)

	return c
}

// IncRegistration は登録リクエストの結果を記録する。
func (c *Collector) IncRegistration(outcome string) {
	c.registrations.WithLabelValues(outcome).Inc()
}

// IncVerification はメール確認リクエストの結果を記録する。
func (c *Collector) IncVerification(outcome string) {
	c.verifications.WithLabelValues(outcome).Inc()
}

// IncLogin はログインリクエストの結果を記録する。
func (c *Collector) IncLogin(outcome string) {
	c.logins.WithLabelValues(outcome).Inc()
}

// IncMailDelivery は確認メール送信の結果を記録する。
func (c *Collector) IncMailDelivery(outcome string) {
	c.mailDeliveries.WithLabelValues(outcome).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストのレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordVersionsPruned はクリーンアップで削除された履歴数を記録する。
func (c *Collector) RecordVersionsPruned(count int64) {
	c.versionsPruned.Add(float64(count))
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

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
