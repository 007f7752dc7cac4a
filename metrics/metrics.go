// Package metrics exposes prometheus collectors for serial exchanges and
// HTTP requests.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	monoprice "github.com/abates/monoprice-zones"
)

var (
	registerOnce sync.Once

	exchanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "monoprice",
			Subsystem: "link",
			Name:      "exchanges_total",
			Help:      "Serial request/response exchanges by kind and result.",
		},
		[]string{"kind", "result"},
	)
	exchangeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "monoprice",
			Subsystem: "link",
			Name:      "exchange_duration_seconds",
			Help:      "Serial exchange duration in seconds.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2, 5},
		},
		[]string{"kind"},
	)
	exchangesInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "monoprice",
			Subsystem: "link",
			Name:      "exchanges_in_flight",
			Help:      "Exchanges currently on the wire. Never more than one.",
		},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "monoprice",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "monoprice",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(exchanges, exchangeDuration, exchangesInFlight, httpRequests, httpDuration)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	RegisterMetrics()
	return promhttp.Handler()
}

// ExchangeKind labels a request line as a query or a command.
func ExchangeKind(request []byte) string {
	if len(request) > 0 && request[0] == '?' {
		return "query"
	}
	return "command"
}

// ExchangeResult labels the outcome of an exchange.
func ExchangeResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, monoprice.ErrTimeout):
		return "timeout"
	case errors.Is(err, monoprice.ErrDisconnected):
		return "disconnected"
	case errors.Is(err, monoprice.ErrDecode):
		return "decode"
	}
	return "error"
}

func RecordExchange(kind, result string, duration time.Duration) {
	RegisterMetrics()
	exchanges.WithLabelValues(kind, result).Inc()
	exchangeDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

// Observer records every Transport exchange.
type Observer struct{}

func (Observer) ExchangeStarted(request []byte) {
	RegisterMetrics()
	exchangesInFlight.Inc()
}

func (Observer) ExchangeFinished(request, response []byte, err error, elapsed time.Duration) {
	exchangesInFlight.Dec()
	RecordExchange(ExchangeKind(request), ExchangeResult(err), elapsed)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Middleware records every request routed by a mux.Router. The path label
// is the route template so zone numbers do not explode the label set.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		path := "unmatched"
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				path = tmpl
			}
		}
		RecordHTTPRequest(r.Method, path, rec.status, time.Since(start))
	})
}
