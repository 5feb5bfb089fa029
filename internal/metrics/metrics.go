// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// アクション結果のラベル値。
const (
	OutcomeSuccess     = "success"
	OutcomeCooldown    = "cooldown"
	OutcomeDailyLimit  = "daily_limit"
	OutcomeNotFound    = "not_found"
	OutcomeInvalid     = "invalid_input"
	OutcomeUnavailable = "unavailable"
	OutcomeError       = "error"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層とミドルウェアから利用する。
type MetricsCollector interface {
	RecordAction(action, outcome string)
	RecordActionLatency(action string, duration time.Duration)
	RecordAuthFailure(reason string)
	RecordTokenRevocation()
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	actions       *prometheus.CounterVec
	actionLatency *prometheus.HistogramVec
	authFailures  *prometheus.CounterVec
	revocations   prometheus.Counter
	httpStatus    *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oneshot_action_total",
			Help: "アクション種別・結果別の処理数",
		}, []string{"action", "outcome"}),
		actionLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "oneshot_action_latency_seconds",
			Help:    "アクション処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"action"}),
		authFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oneshot_auth_failure_total",
			Help: "トークン検証失敗の理由別件数",
		}, []string{"reason"}),
		revocations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oneshot_token_revocations_total",
			Help: "失効登録したトークンの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oneshot_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.actions,
		c.actionLatency,
		c.authFailures,
		c.revocations,
		c.httpStatus,
	)

	return c
}

// RecordAction はアクションの結果を記録する。
func (c *Collector) RecordAction(action, outcome string) {
	c.actions.WithLabelValues(action, outcome).Inc()
}

// RecordActionLatency はアクション処理のレイテンシを記録する。
func (c *Collector) RecordActionLatency(action string, duration time.Duration) {
	c.actionLatency.WithLabelValues(action).Observe(duration.Seconds())
}

// RecordAuthFailure はトークン検証失敗を記録する。
func (c *Collector) RecordAuthFailure(reason string) {
	c.authFailures.WithLabelValues(reason).Inc()
}

// RecordTokenRevocation はトークンの失効登録を記録する。
func (c *Collector) RecordTokenRevocation() {
	c.revocations.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// NoopCollector は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type NoopCollector struct{}

func (NoopCollector) RecordAction(string, string)                {}
func (NoopCollector) RecordActionLatency(string, time.Duration) {}
func (NoopCollector) RecordAuthFailure(string)                   {}
func (NoopCollector) RecordTokenRevocation()                     {}
func (NoopCollector) RecordHTTPStatus(int)                       {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = NoopCollector{}
)
