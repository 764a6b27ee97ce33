// Package telemetry exports simulation counters as Prometheus metrics.
//
// Every method is safe on a nil *Metrics, so components can take an
// optional metrics handle without branching.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/matchstick/internal/event"
)

const namespace = "matchstick"

// Metrics holds the collectors registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	ticks        *prometheus.CounterVec
	tickPanics   *prometheus.CounterVec
	tickDuration *prometheus.HistogramVec
	events       *prometheus.CounterVec
	produced     *prometheus.CounterVec
	sold         prometheus.Counter
	revenue      prometheus.Counter
	saves        *prometheus.CounterVec
	price        prometheus.Gauge
	money        prometheus.Gauge
}

// New creates and registers every collector.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_jobs_total",
			Help:      "Scheduler jobs executed, by job name.",
		}, []string{"job"}),
		tickPanics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_job_panics_total",
			Help:      "Scheduler jobs that panicked, by job name.",
		}, []string{"job"}),
		tickDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scheduler_job_seconds",
			Help:      "Scheduler job run time.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}, []string{"job"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Events emitted by the simulation, by type.",
		}, []string{"type"}),
		produced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matchsticks_produced_total",
			Help:      "Matchsticks produced, by origin.",
		}, []string{"origin"}),
		sold: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matchsticks_sold_total",
			Help:      "Matchsticks sold on the market.",
		}),
		revenue: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "revenue_total",
			Help:      "Money earned from sales.",
		}),
		saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saves_total",
			Help:      "Save attempts, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		price: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "market_price",
			Help:      "Current price per matchstick.",
		}),
		money: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "money",
			Help:      "Money held.",
		}),
	}
	m.registry.MustRegister(
		m.ticks, m.tickPanics, m.tickDuration,
		m.events, m.produced, m.sold, m.revenue,
		m.saves, m.price, m.money,
	)
	return m
}

// Registry exposes the registry for tests and custom handlers.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveJob records one scheduler job. Its signature matches
// scheduler.Observer.
func (m *Metrics) ObserveJob(name string, elapsed time.Duration, panicked bool) {
	if m == nil {
		return
	}
	m.ticks.WithLabelValues(name).Inc()
	m.tickDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	if panicked {
		m.tickPanics.WithLabelValues(name).Inc()
	}
}

// ObserveEvent records an emitted event. Its signature matches
// state.Subscriber.
func (m *Metrics) ObserveEvent(e event.Event) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(string(e.Type)).Inc()
	switch p := e.Payload.(type) {
	case event.Produced:
		origin := "manual"
		if p.Automated {
			origin = "automated"
		}
		m.produced.WithLabelValues(origin).Add(p.Amount.Float64())
	case event.Sold:
		m.sold.Add(p.Amount.Float64())
		m.revenue.Add(p.Revenue)
		m.price.Set(p.PriceAfter)
	}
}

// ObserveSave records a save attempt.
func (m *Metrics) ObserveSave(auto bool, err error) {
	if m == nil {
		return
	}
	kind := "manual"
	if auto {
		kind = "auto"
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.saves.WithLabelValues(kind, outcome).Inc()
}

// SetMarket updates the price and money gauges.
func (m *Metrics) SetMarket(price, money float64) {
	if m == nil {
		return
	}
	m.price.Set(price)
	m.money.Set(money)
}
