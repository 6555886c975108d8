// Package metrics holds the Prometheus collectors exposed at /metrics.
//
// Usage:
//
//	metrics.RecordHTTPRequest(http.MethodGet, "/contents/{id}", 200, 3*time.Millisecond)
//	metrics.RecordPrediction(metrics.OutcomeOK, 250*time.Microsecond)
//	metrics.RecordUpload(metrics.OutcomeOK, 2048)
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values shared by the counters below.
const (
	OutcomeOK          = "ok"
	OutcomeRejected    = "rejected"
	OutcomeError       = "error"
	OutcomeUnavailable = "unavailable"
	OutcomeCanceled    = "canceled"
)

var (
	// HTTP

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_hub_http_requests_total",
			Help: "Total number of HTTP requests by method, route pattern and status code",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "content_hub_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Inference

	PredictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_hub_predictions_total",
			Help: "Total number of /ml/predict calls by outcome",
		},
		[]string{"outcome"},
	)

	PredictionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "content_hub_prediction_duration_seconds",
			Help:    "Time spent in the inference pipeline in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
	)

	ModelLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "content_hub_model_loaded",
			Help: "1 when the inference model is loaded, 0 otherwise",
		},
	)

	// Uploads

	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_hub_uploads_total",
			Help: "Total number of file uploads by outcome",
		},
		[]string{"outcome"},
	)

	UploadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "content_hub_upload_bytes_total",
			Help: "Total number of bytes stored by successful uploads",
		},
	)
)

// RecordHTTPRequest records one finished request. route is the chi route
// pattern, not the raw path, to keep label cardinality bounded.
func RecordHTTPRequest(method, route string, status int, d time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func RecordPrediction(outcome string, d time.Duration) {
	PredictionsTotal.WithLabelValues(outcome).Inc()
	if outcome == OutcomeOK {
		PredictionDuration.Observe(d.Seconds())
	}
}

func SetModelLoaded(loaded bool) {
	if loaded {
		ModelLoaded.Set(1)
		return
	}
	ModelLoaded.Set(0)
}

func RecordUpload(outcome string, bytes int64) {
	UploadsTotal.WithLabelValues(outcome).Inc()
	if outcome == OutcomeOK && bytes > 0 {
		UploadBytesTotal.Add(float64(bytes))
	}
}
