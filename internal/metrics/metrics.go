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
// サービス層とミドルウェアから利用する。
type MetricsCollector interface {
	RecordChatSuccess(model string)
	RecordChatFailure(model string, reason string)
	RecordProviderLatency(duration time.Duration)
	RecordTokensConsumed(promptTokens, completionTokens int)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	chatSuccess      *prometheus.CounterVec
	chatFail         *prometheus.CounterVec
	providerLatency  prometheus.Histogram
	promptTokens     prometheus.Counter
	completionTokens prometheus.Counter
	httpStatus       *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		chatSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aiportal_chat_success_total",
			Help: "チャット補完成功のモデル別合計数",
		}, []string{"model"}),
		chatFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aiportal_chat_fail_total",
			Help: "チャット補完失敗のモデル別・理由別合計数",
		}, []string{"model", "reason"}),
		providerLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "aiportal_provider_latency_seconds",
			Help:    "LLMプロバイダー呼び出しのレイテンシ（秒）",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		promptTokens: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aiportal_prompt_tokens_total",
			Help: "消費したプロンプトトークンの合計数",
		}),
		completionTokens: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aiportal_completion_tokens_total",
			Help: "消費した補完トークンの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aiportal_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.chatSuccess,
		c.chatFail,
		c.providerLatency,
		c.promptTokens,
		c.completionTokens,
		c.httpStatus,
	)

	return c
}

// RecordChatSuccess はチャット補完成功を記録する。
func (c *Collector) RecordChatSuccess(model string) {
	c.chatSuccess.WithLabelValues(model).Inc()
}

// RecordChatFailure はチャット補完失敗を記録する。
func (c *Collector) RecordChatFailure(model string, reason string) {
	c.chatFail.WithLabelValues(model, reason).Inc()
}

// RecordProviderLatency はプロバイダー呼び出しのレイテンシを記録する。
func (c *Collector) RecordProviderLatency(duration time.Duration) {
	c.providerLatency.Observe(duration.Seconds())
}

// RecordTokensConsumed は消費したトークン数を記録する。
func (c *Collector) RecordTokensConsumed(promptTokens, completionTokens int) {
	c.promptTokens.Add(float64(promptTokens))
	c.completionTokens.Add(float64(completionTokens))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
