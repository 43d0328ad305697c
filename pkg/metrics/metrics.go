// Package metrics provides Prometheus instrumentation for the shop service.
//
// `shop serve` mounts Handler on /metrics; everything else records through
// the helpers at the bottom of this file.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "shop"

var (
	// CustomerOperations counts protocol outcomes, e.g.
	// operation="update", result="lost_update".
	CustomerOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "customer",
			Name:      "operations_total",
			Help:      "Customer protocol calls by operation and result.",
		},
		[]string{"operation", "result"},
	)

	// OperationDuration tracks end-to-end protocol latency.
	OperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "customer",
			Name:      "operation_duration_seconds",
			Help:      "Duration of customer protocol calls in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// IdentityCallDuration tracks identity store latency by backend and call.
	IdentityCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "identity",
			Name:      "call_duration_seconds",
			Help:      "Duration of identity store calls in seconds.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .5, 1},
		},
		[]string{"backend", "call"},
	)

	// DBQueryDuration tracks customer store latency.
	DBQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Duration of database queries in seconds.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .5, 1},
		},
		[]string{"operation"},
	)

	// AttachmentWrites counts background writer outcomes:
	// "written" | "skipped" | "failed" | "dropped".
	AttachmentWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "attachment",
			Name:      "writes_total",
			Help:      "Background attachment writes by result.",
		},
		[]string{"result"},
	)

	// CacheHits / CacheMisses track the role cache.
	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total cache hits.",
		},
		[]string{"driver"},
	)
	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Total cache misses.",
		},
		[]string{"driver"},
	)

	// StoreDrift is the number of records found by the last reconciliation,
	// kind="customer_without_identity" | "identity_without_customer".
	StoreDrift = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "drift_records",
			Help:      "Records present in one store but not the other.",
		},
		[]string{"kind"},
	)

	// RequestTotal counts requests to the ops HTTP endpoints.
	RequestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of ops HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
)

// DefaultRegistry holds every shop metric plus Go runtime and process collectors.
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(collectors.NewGoCollector())
	DefaultRegistry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	DefaultRegistry.MustRegister(
		CustomerOperations,
		OperationDuration,
		IdentityCallDuration,
		DBQueryDuration,
		AttachmentWrites,
		CacheHits,
		CacheMisses,
		StoreDrift,
		RequestTotal,
	)
}

type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware counts every request to the ops endpoints.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rr := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rr, r)
		RequestTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rr.status)).Inc()
	})
}

// Handler exposes the Prometheus metrics page.
func Handler() http.Handler {
	return promhttp.HandlerFor(DefaultRegistry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// ObserveOperation records the outcome and latency of a protocol call.
func ObserveOperation(operation string, result string, start time.Time) {
	CustomerOperations.WithLabelValues(operation, result).Inc()
	OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// ObserveDBQuery records a DB query duration:
//
//	defer metrics.ObserveDBQuery("merge", time.Now())
func ObserveDBQuery(operation string, start time.Time) {
	DBQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// ObserveIdentityCall records an identity store call duration.
func ObserveIdentityCall(backend, call string, start time.Time) {
	IdentityCallDuration.WithLabelValues(backend, call).Observe(time.Since(start).Seconds())
}
