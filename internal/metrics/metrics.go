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
// ワーカーやサービス層から利用する。
type MetricsCollector interface {
	RecordRecommendationRequest()
	RecordRecommendationLatency(duration time.Duration)
	RecordRatingAggregation(bookID string)
	RecordHTTPStatus(statusCode int)
	RecordCoverFetchSuccess(bookID string)
	RecordCoverFetchFailure(bookID string, reason string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	recommendationRequests prometheus.Counter
	recommendationLatency  prometheus.Histogram
	ratingAggregations     prometheus.Counter
	httpStatus             *prometheus.CounterVec
	coverFetchSuccess      prometheus.Counter
	coverFetchFail         prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		recommendationRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bookman_recommendation_requests_total",
			Help: "レコメンデーション要求の合計数",
		}),
		recommendationLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bookman_recommendation_latency_seconds",
			Help:    "レコメンデーション生成のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		ratingAggregations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bookman_rating_aggregations_total",
			Help: "平均評価の再計算実行の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookman_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		coverFetchSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bookman_cover_fetch_success_total",
			Help: "表紙画像取得成功の合計数",
		}),
		coverFetchFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bookman_cover_fetch_fail_total",
			Help: "表紙画像取得失敗の合計数",
		}),
	}

	reg.MustRegister(
		c.recommendationRequests,
		c.recommendationLatency,
		c.ratingAggregations,
		c.httpStatus,
		c.coverFetchSuccess,
		c.coverFetchFail,
	)

	return c
}

// RecordRecommendationRequest はレコメンデーション要求を記録する。
func (c *Collector) RecordRecommendationRequest() {
	c.recommendationRequests.Inc()
}

// RecordRecommendationLatency はレコメンデーション生成のレイテンシを記録する。
func (c *Collector) RecordRecommendationLatency(duration time.Duration) {
	c.recommendationLatency.Observe(duration.Seconds())
}

// RecordRatingAggregation は平均評価の再計算実行を記録する。
func (c *Collector) RecordRatingAggregation(bookID string) {
	c.ratingAggregations.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordCoverFetchSuccess は表紙画像の取得成功を記録する。
func (c *Collector) RecordCoverFetchSuccess(bookID string) {
	c.coverFetchSuccess.Inc()
}

// RecordCoverFetchFailure は表紙画像の取得失敗を記録する。
func (c *Collector) RecordCoverFetchFailure(bookID string, reason string) {
	c.coverFetchFail.Inc()
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
