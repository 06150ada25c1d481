package observability

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "wbreviews", Name: "http_requests_total", Help: "HTTP requests."},
		[]string{"route", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wbreviews", Name: "http_request_duration_seconds",
			Help:    "HTTP request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	ExternalRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "wbreviews", Name: "external_requests_total", Help: "Outbound requests."},
		[]string{"service", "endpoint", "status"},
	)
	ExternalLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wbreviews", Name: "external_request_duration_seconds",
			Help:    "Outbound request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "wbreviews", Name: "cache_events_total", Help: "Cache hits/misses/sets/dels."},
		[]string{"cache", "event"}, // event: hit|miss|set|del
	)
	IngestEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "wbreviews", Name: "ingest_records_total", Help: "Feedback records by ingestion outcome."},
		[]string{"outcome"}, // saved|duplicate|invalid|failed
	)
	IngestFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "wbreviews", Name: "ingest_failures_total", Help: "Skipped feedback records by outcome and error type."},
		[]string{"outcome", "type"},
	)
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{HTTPRequests, HTTPLatency, ExternalRequests, ExternalLatency, CacheEvents, IngestEvents, IngestFailures}
}

// Serve exposes the default registry on addr in the background. Empty addr disables it.
func Serve(addr string) {
	if addr == "" {
		return
	}
	for _, c := range collectors() {
		if err := prometheus.Register(c); err != nil {
			log.Warn().Err(err).Msg("metrics collector not registered")
		}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		srv := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		log.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors()...)
	return reg
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func ObserveHTTP(route, method string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

func ObserveExternal(service, endpoint string, status int, dur time.Duration) {
	ExternalRequests.WithLabelValues(service, endpoint, strconv.Itoa(status)).Inc()
	ExternalLatency.WithLabelValues(service, endpoint).Observe(dur.Seconds())
}

func ObserveCache(cache, event string) { // event: hit|miss|set|del
	CacheEvents.WithLabelValues(cache, event).Inc()
}

func ObserveIngest(outcome string) {
	IngestEvents.WithLabelValues(outcome).Inc()
}

// ObserveIngestFailure counts a skipped record under outcome (invalid|failed) and the Go type of err.
func ObserveIngestFailure(outcome string, err error) {
	IngestEvents.WithLabelValues(outcome).Inc()
	IngestFailures.WithLabelValues(outcome, LabelErr(err)).Inc()
}

func LabelErr(err error) string {
	if err == nil {
		return "none"
	}
	return fmt.Sprintf("%T", err)
}
