package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the control-plane metrics on a private registry. A nil
// *Collector is valid and records nothing.
type Collector struct {
	registry        *prometheus.Registry
	postsProcessed  *prometheus.CounterVec
	rotations       *prometheus.CounterVec
	limitViolations *prometheus.CounterVec
	tickDuration    prometheus.Histogram
	activeCampaigns prometheus.Gauge
}

func NewCollector() (*Collector, error) {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		postsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "postdispatch",
			Name:      "posts_processed_total",
			Help:      "Scheduled posts processed, by platform and outcome.",
		}, []string{"platform", "outcome"}),
		rotations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "postdispatch",
			Name:      "ip_rotations_total",
			Help:      "IP rotation attempts, by pool type, trigger and outcome.",
		}, []string{"pool_type", "trigger", "outcome"}),
		limitViolations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "postdispatch",
			Name:      "limit_violations_total",
			Help:      "Rate limit violations reported by capacity checks, by scope.",
		}, []string{"scope"}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "postdispatch",
			Name:      "scheduler_tick_seconds",
			Help:      "Duration of one scheduler polling tick.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120},
		}),
		activeCampaigns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "postdispatch",
			Name:      "campaigns_active",
			Help:      "Campaigns currently running.",
		}),
	}

	for _, col := range []prometheus.Collector{c.postsProcessed, c.rotations, c.limitViolations, c.tickDuration, c.activeCampaigns} {
		if err := registry.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Handler returns an HTTP handler exposing the registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) PostProcessed(platform, outcome string) {
	if c == nil {
		return
	}
	c.postsProcessed.WithLabelValues(platform, outcome).Inc()
}

func (c *Collector) Rotation(poolType, trigger string, success bool) {
	if c == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	c.rotations.WithLabelValues(poolType, trigger, outcome).Inc()
}

func (c *Collector) LimitViolation(scope string) {
	if c == nil {
		return
	}
	c.limitViolations.WithLabelValues(scope).Inc()
}

func (c *Collector) ObserveTick(d time.Duration) {
	if c == nil {
		return
	}
	c.tickDuration.Observe(d.Seconds())
}

func (c *Collector) SetActiveCampaigns(n int) {
	if c == nil {
		return
	}
	c.activeCampaigns.Set(float64(n))
}
