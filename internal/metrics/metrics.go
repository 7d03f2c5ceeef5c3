// Package metrics exposes Prometheus collectors for the download engine.
package metrics

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	downloadsTotal        *prometheus.CounterVec
	downloadBytesTotal    *prometheus.CounterVec
	retriesTotal          *prometheus.CounterVec
	rateLimitDelaySeconds *prometheus.HistogramVec
	blockPausesTotal      prometheus.Counter
	blockedGauge          prometheus.Gauge
	activeWorkers         prometheus.Gauge
	credentialRefreshes   prometheus.Counter

	once sync.Once
)

// Init registers the Prometheus collectors. Safe to call multiple times.
func Init() {
	once.Do(func() {
		downloadsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pdfpull_downloads_total",
				Help: "Total number of resolved download tasks, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		downloadBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pdfpull_download_bytes_total",
				Help: "Total number of payload bytes written, labeled by site.",
			},
			[]string{"site"},
		)

		retriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pdfpull_retries_total",
				Help: "Total retry attempts, labeled by failure kind.",
			},
			[]string{"kind"},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pdfpull_rate_limit_delay_seconds",
				Help:    "Histogram of per-host rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"site"},
		)

		blockPausesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "pdfpull_block_pauses_total",
				Help: "Total number of global block pauses triggered.",
			},
		)

		blockedGauge = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "pdfpull_blocked",
				Help: "1 while the global block circuit breaker is tripped.",
			},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "pdfpull_active_workers",
				Help: "Number of workers currently processing a task.",
			},
		)

		credentialRefreshes = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "pdfpull_credential_refreshes_total",
				Help: "Total number of credential refresh escalations.",
			},
		)
	})
}

// Handler returns the standard Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SanitizeSite extracts a lowercase hostname label from a URL.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// ObserveOutcome records a terminal task resolution.
func ObserveOutcome(outcome string) {
	if downloadsTotal == nil {
		return
	}
	downloadsTotal.WithLabelValues(outcome).Inc()
}

// ObserveBytes records payload bytes written for a site.
func ObserveBytes(site string, n int) {
	if downloadBytesTotal == nil || n <= 0 {
		return
	}
	downloadBytesTotal.WithLabelValues(SanitizeSite(site)).Add(float64(n))
}

// ObserveRetry records one retry attempt of the given failure kind.
func ObserveRetry(kind string) {
	if retriesTotal == nil {
		return
	}
	retriesTotal.WithLabelValues(kind).Inc()
}

// ObserveRateLimitDelay records the duration of a per-host spacing wait.
func ObserveRateLimitDelay(site string, d time.Duration) {
	if rateLimitDelaySeconds == nil {
		return
	}
	rateLimitDelaySeconds.WithLabelValues(SanitizeSite(site)).Observe(d.Seconds())
}

// ObserveBlockPause records a global block trip.
func ObserveBlockPause() {
	if blockPausesTotal == nil {
		return
	}
	blockPausesTotal.Inc()
}

// SetBlocked flips the blocked gauge.
func SetBlocked(blocked bool) {
	if blockedGauge == nil {
		return
	}
	if blocked {
		blockedGauge.Set(1)
	} else {
		blockedGauge.Set(0)
	}
}

// IncActiveWorkers increments the active worker count.
func IncActiveWorkers() {
	if activeWorkers == nil {
		return
	}
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active worker count.
func DecActiveWorkers() {
	if activeWorkers == nil {
		return
	}
	activeWorkers.Dec()
}

// ObserveCredentialRefresh records one credential refresh escalation.
func ObserveCredentialRefresh() {
	if credentialRefreshes == nil {
		return
	}
	credentialRefreshes.Inc()
}
