package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/alejandrodnm/energymatch/internal/domain"
	"github.com/alejandrodnm/energymatch/internal/ports"
)

var _ ports.CycleObserver = (*Observer)(nil)

// Observer traduce los eventos del orquestador a métricas de Prometheus.
type Observer struct {
	cycles         *prometheus.CounterVec
	fetchRetries   *prometheus.CounterVec
	submitFailures *prometheus.CounterVec
	dropped        *prometheus.CounterVec
	matches        *prometheus.CounterVec
	energy         *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	inFlight       prometheus.Gauge
}

// NewObserver registra las métricas en reg.
func NewObserver(reg prometheus.Registerer) *Observer {
	f := promauto.With(reg)
	return &Observer{
		cycles: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "energymatch_cycles_total",
				Help: "Finished matching cycles by terminal state",
			},
			[]string{"market", "state"},
		),
		fetchRetries: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "energymatch_fetch_retries_total",
				Help: "Failed order source fetch attempts that were retried",
			},
			[]string{"market"},
		),
		submitFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "energymatch_submit_failures_total",
				Help: "Settlement submissions that returned an error",
			},
			[]string{"market"},
		),
		dropped: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "energymatch_triggers_dropped_total",
				Help: "Triggers dropped because a cycle was already running for the market",
			},
			[]string{"market"},
		),
		matches: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "energymatch_matches_total",
				Help: "Bid/offer matches produced by completed cycles",
			},
			[]string{"market"},
		),
		energy: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "energymatch_matched_energy_total",
				Help: "Energy traded by completed cycles",
			},
			[]string{"market"},
		),
		duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "energymatch_cycle_duration_seconds",
				Help:    "Wall time of a matching cycle, retries included",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"market"},
		),
		inFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "energymatch_cycles_in_flight",
			Help: "Cycles currently holding a market lease",
		}),
	}
}

func (o *Observer) OnEvent(_ context.Context, ev domain.CycleEvent) {
	switch ev.Kind {
	case domain.EventCycleStarted:
		o.inFlight.Inc()
	case domain.EventFetchRetry:
		o.fetchRetries.WithLabelValues(ev.MarketID).Inc()
	case domain.EventSubmitFailed:
		o.submitFailures.WithLabelValues(ev.MarketID).Inc()
	case domain.EventTriggerDropped:
		o.dropped.WithLabelValues(ev.MarketID).Inc()
	case domain.EventCycleCompleted:
		o.inFlight.Dec()
		o.cycles.WithLabelValues(ev.MarketID, string(domain.StateCompleted)).Inc()
		o.matches.WithLabelValues(ev.MarketID).Add(float64(ev.Matches))
		o.energy.WithLabelValues(ev.MarketID).Add(ev.Energy)
		o.duration.WithLabelValues(ev.MarketID).Observe(ev.Duration.Seconds())
	case domain.EventCycleFailed:
		o.inFlight.Dec()
		o.cycles.WithLabelValues(ev.MarketID, string(domain.StateFailed)).Inc()
		o.duration.WithLabelValues(ev.MarketID).Observe(ev.Duration.Seconds())
	}
}
