// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層およびロギングミドルウェアから利用する。
type MetricsCollector interface {
	RecordUpload(sizeBytes int64)
	RecordQuotaRejected()
	RecordImageDeleted()
	RecordResize()
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	uploadsTotal  prometheus.Counter
	uploadBytes   prometheus.Counter
	quotaRejected prometheus.Counter
	imagesDeleted prometheus.Counter
	resizesTotal  prometheus.Counter
	httpStatus    *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		uploadsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "picshelf_uploads_total",
			Help: "アップロード成功の合計数",
		}),
		uploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "picshelf_upload_bytes_total",
			Help: "アップロードされた合計バイト数",
		}),
		quotaRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "picshelf_quota_rejected_total",
			Help: "容量超過で拒否されたアップロードの合計数",
		}),
		imagesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "picshelf_images_deleted_total",
			Help: "削除された画像レコードの合計数",
		}),
		resizesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "picshelf_resizes_total",
			Help: "リサイズ実行の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "picshelf_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.uploadsTotal,
		c.uploadBytes,
		c.quotaRejected,
		c.imagesDeleted,
		c.resizesTotal,
		c.httpStatus,
	)

	return c
}

// RecordUpload はアップロード成功を記録する。
func (c *Collector) RecordUpload(sizeBytes int64) {
	c.uploadsTotal.Inc()
	c.uploadBytes.Add(float64(sizeBytes))
}

// RecordQuotaRejected は容量超過による拒否を記録する。
func (c *Collector) RecordQuotaRejected() {
	c.quotaRejected.Inc()
}

// RecordImageDeleted は画像レコードの削除を記録する。
func (c *Collector) RecordImageDeleted() {
	c.imagesDeleted.Inc()
}

// RecordResize はリサイズ実行を記録する。
func (c *Collector) RecordResize() {
	c.resizesTotal.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return mux
}
