package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mr1hm/go-rupture-hazard/internal/rupture"
)

const metricPrefix = "rupture_hazard_"

const (
	ReasonInvalidArgument = "invalid_argument"
	ReasonMalformed       = "malformed"
	ReasonStorage         = "storage"
)

type Metrics struct {
	registry       *prometheus.Registry
	eventsStored   *prometheus.CounterVec
	eventsRejected *prometheus.CounterVec
	probabilities  prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		eventsStored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "events_stored_total",
			Help: "Ruptures added to the catalog",
		}, []string{"source"}),
		eventsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "events_rejected_total",
			Help: "Ruptures that failed validation or could not be stored",
		}, []string{"source", "reason"}),
		probabilities: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "probability_queries_total",
			Help: "Occurrence probabilities computed",
		}),
	}

	m.registry.MustRegister(
		m.eventsStored,
		m.eventsRejected,
		m.probabilities,
		collectors.NewGoCollector(),
	)
	return m
}

// RegisterCatalogSize exposes the number of cataloged events, read through
// count on every scrape.
func (m *Metrics) RegisterCatalogSize(count func(ctx context.Context) (int64, error)) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "catalog_events",
			Help: "Events currently in the catalog",
		},
		func() float64 {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			n, err := count(ctx)
			if err != nil {
				slog.Warn("metrics query failed", "metric", "catalog_events", "error", err)
				return 0
			}
			return float64(n)
		},
	))
}

func (m *Metrics) EventStored(source string) {
	m.eventsStored.WithLabelValues(source).Inc()
}

func (m *Metrics) EventRejected(source string, err error) {
	m.eventsRejected.WithLabelValues(source, Reason(err)).Inc()
}

func (m *Metrics) ProbabilityComputed() {
	m.probabilities.Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Reason classifies a rejection for the reason label.
func Reason(err error) string {
	switch {
	case errors.Is(err, rupture.ErrInvalidArgument):
		return ReasonInvalidArgument
	case errors.Is(err, ErrMalformed):
		return ReasonMalformed
	default:
		return ReasonStorage
	}
}

// ErrMalformed marks input that could not be turned into rupture arguments
// at all (missing coordinates, null magnitude).
var ErrMalformed = errors.New("malformed event")
