package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "promail_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~16s
		},
		[]string{"method", "route", "status"},
	)

	MessagesNormalized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promail_messages_normalized_total",
			Help: "Total number of messages turned into records",
		},
		[]string{"view"}, // view: list, detail
	)

	AttachmentDownloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promail_attachment_downloads_total",
			Help: "Attachment download attempts by outcome",
		},
		[]string{"result"}, // result: ok, not_found, not_attachment, empty, changed, error
	)

	MailboxOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promail_mailbox_operations_total",
			Help: "Mailbox operations by kind and outcome",
		},
		[]string{"operation", "status"},
	)

	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promail_messages_sent_total",
			Help: "Outgoing submissions by outcome",
		},
		[]string{"status"}, // status: success, failed
	)
)

func RecordHTTPRequestDuration(method, route string, status int, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(duration.Seconds())
}

func IncrementMessagesNormalized(view string, count int) {
	MessagesNormalized.WithLabelValues(view).Add(float64(count))
}

func IncrementAttachmentDownload(result string) {
	AttachmentDownloads.WithLabelValues(result).Inc()
}

func RecordMailboxOperation(operation string, err error) {
	status := "success"
	if err != nil {
		status = "failed"
	}
	MailboxOperations.WithLabelValues(operation, status).Inc()
}

func IncrementMessagesSent(err error) {
	status := "success"
	if err != nil {
		status = "failed"
	}
	MessagesSent.WithLabelValues(status).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Instrument records the duration of every request to next under the given route label.
func Instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		RecordHTTPRequestDuration(r.Method, route, rec.status, time.Since(start))
	})
}
