package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jengzang/sites-backend-go/internal/loader"
)

// Recorder exports loader measurements as Prometheus metrics.
// It implements loader.Observer.
type Recorder struct {
	registry *prometheus.Registry

	QueryDurationMs prometheus.Histogram
	QueriesTotal    *prometheus.CounterVec
	FetchedSites    prometheus.Histogram
	CurrentLimit    prometheus.Gauge
	SafeMode        prometheus.Gauge
	EscalationTotal *prometheus.CounterVec
	FallbackTotal   prometheus.Counter
	WarmupTotal     *prometheus.CounterVec
	BootstrapTotal  *prometheus.CounterVec
}

var _ loader.Observer = (*Recorder)(nil)

// New creates a recorder registered on its own registry
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		QueryDurationMs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sites_viewport_query_duration_ms",
			Help:    "Viewport query duration in milliseconds",
			Buckets: []float64{5, 10, 25, 50, 100, 200, 350, 500, 1000, 2500},
		}),
		QueriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sites_viewport_queries_total",
			Help: "Completed viewport queries by result",
		}, []string{"result"}),
		FetchedSites: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sites_viewport_fetched_sites",
			Help:    "Sites returned per successful viewport query",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10),
		}),
		CurrentLimit: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sites_viewport_limit",
			Help: "Current adaptive row cap for viewport queries",
		}),
		SafeMode: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sites_safe_mode",
			Help: "1 while safe mode is active",
		}),
		EscalationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sites_safe_mode_escalations_total",
			Help: "Safe mode activation requests by reason",
		}, []string{"reason"}),
		FallbackTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sites_fallback_shown_total",
			Help: "Times the fallback sample replaced a failed or empty query",
		}),
		WarmupTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sites_warmup_total",
			Help: "Full dataset warmups by result",
		}, []string{"result"}),
		BootstrapTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sites_bootstrap_total",
			Help: "Bootstrap loads by result",
		}, []string{"result"}),
	}

	r.registry.MustRegister(
		r.QueryDurationMs,
		r.QueriesTotal,
		r.FetchedSites,
		r.CurrentLimit,
		r.SafeMode,
		r.EscalationTotal,
		r.FallbackTotal,
		r.WarmupTotal,
		r.BootstrapTotal,
	)
	return r
}

// Registry returns the registry holding the loader metrics
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the Prometheus text format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

func (r *Recorder) ObserveQuery(duration time.Duration, fetched int, succeeded bool) {
	r.QueryDurationMs.Observe(float64(duration) / float64(time.Millisecond))
	r.QueriesTotal.WithLabelValues(result(succeeded)).Inc()
	if succeeded {
		r.FetchedSites.Observe(float64(fetched))
	}
}

func (r *Recorder) ObserveLimit(limit int) {
	r.CurrentLimit.Set(float64(limit))
}

func (r *Recorder) ObserveSafeMode(enabled bool) {
	if enabled {
		r.SafeMode.Set(1)
		return
	}
	r.SafeMode.Set(0)
}

func (r *Recorder) ObserveEscalation(reason loader.EscalationReason) {
	r.EscalationTotal.WithLabelValues(string(reason)).Inc()
}

func (r *Recorder) ObserveFallback() {
	r.FallbackTotal.Inc()
}

func (r *Recorder) ObserveWarmup(succeeded bool) {
	r.WarmupTotal.WithLabelValues(result(succeeded)).Inc()
}

func (r *Recorder) ObserveColdStart(succeeded bool) {
	r.BootstrapTotal.WithLabelValues(result(succeeded)).Inc()
}
