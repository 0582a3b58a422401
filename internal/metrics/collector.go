package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector exposes alert-engine telemetry. All recording methods are
// nil-safe so callers can run without metrics wired.
type Collector struct {
	registry *prometheus.Registry

	evaluations     prometheus.Counter
	evalDuration    prometheus.Histogram
	trustedSkips    prometheus.Counter
	rulesTriggered  *prometheus.CounterVec
	rulesSkipped    *prometheus.CounterVec
	alertsCreated   prometheus.Counter
	dispatchFailed  prometheus.Counter
	cooldownCacheOK prometheus.Counter
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		evaluations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alert_engine_evaluations_total",
			Help: "Events evaluated against the rule set",
		}),
		evalDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "alert_engine_evaluate_duration_seconds",
			Help:    "Wall time of a single event evaluation",
			Buckets: prometheus.DefBuckets,
		}),
		trustedSkips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alert_engine_trusted_skips_total",
			Help: "Evaluations short-circuited by a trusted entity",
		}),
		rulesTriggered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alert_engine_rules_triggered_total",
			Help: "Rules that fired, by effective severity",
		}, []string{"severity"}),
		rulesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alert_engine_rules_skipped_total",
			Help: "Rules suppressed or errored, by reason class",
		}, []string{"reason"}),
		alertsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alert_engine_alerts_created_total",
			Help: "Alert rows persisted",
		}),
		dispatchFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alert_engine_dispatch_failures_total",
			Help: "Fire-and-forget dispatch attempts that errored",
		}),
		cooldownCacheOK: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alert_engine_cooldown_cache_hits_total",
			Help: "Cooldown suppressions answered by the cache fast path",
		}),
	}

	c.registry.MustRegister(
		c.evaluations, c.evalDuration, c.trustedSkips, c.rulesTriggered,
		c.rulesSkipped, c.alertsCreated, c.dispatchFailed, c.cooldownCacheOK,
	)
	return c
}

// Handler returns the /metrics HTTP handler for the ops router.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) ObserveEvaluation(seconds float64) {
	if c == nil {
		return
	}
	c.evaluations.Inc()
	c.evalDuration.Observe(seconds)
}

func (c *Collector) IncTrustedSkip() {
	if c == nil {
		return
	}
	c.trustedSkips.Inc()
}

func (c *Collector) IncTriggered(severity string) {
	if c == nil {
		return
	}
	c.rulesTriggered.WithLabelValues(severity).Inc()
}

func (c *Collector) IncSkipped(reason string) {
	if c == nil {
		return
	}
	c.rulesSkipped.WithLabelValues(reason).Inc()
}

func (c *Collector) AddAlertsCreated(n int) {
	if c == nil {
		return
	}
	c.alertsCreated.Add(float64(n))
}

func (c *Collector) IncDispatchFailure() {
	if c == nil {
		return
	}
	c.dispatchFailed.Inc()
}

func (c *Collector) IncCooldownCacheHit() {
	if c == nil {
		return
	}
	c.cooldownCacheOK.Inc()
}
