package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"skill_persistence/internal/core"
	"skill_persistence/internal/storage"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "skill"

// Metrics records cycle outcomes and attribute store traffic on its own registry
type Metrics struct {
	registry *prometheus.Registry

	cycles        *prometheus.CounterVec
	cycleErrors   *prometheus.CounterVec
	cycleDuration *prometheus.HistogramVec
	storeOps      *prometheus.CounterVec
	storeDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them on a fresh registry
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		cycles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Finished request/response cycles by request type and final persistence state",
		}, []string{"request_type", "state"}),
		cycleErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycle_errors_total",
			Help:      "Cycle failures by kind",
		}, []string{"kind"}),
		cycleDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Time spent in one request/response cycle",
			Buckets:   prometheus.DefBuckets,
		}, []string{"request_type"}),
		storeOps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Attribute store operations by operation and outcome",
		}, []string{"operation", "outcome"}),
		storeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_duration_seconds",
			Help:      "Attribute store latency by operation",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}

// Registry exposes the registry for tests and custom exporters
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// CycleFinished implements core.Observer
func (m *Metrics) CycleFinished(requestType string, state core.CycleState, err error, elapsed time.Duration) {
	m.cycles.WithLabelValues(requestType, state.String()).Inc()
	m.cycleDuration.WithLabelValues(requestType).Observe(elapsed.Seconds())
	if err != nil {
		m.cycleErrors.WithLabelValues(errorKind(err)).Inc()
	}
}

func errorKind(err error) string {
	var retrieval *core.RetrievalError
	var persistence *core.PersistenceError
	var configuration *core.ConfigurationError
	switch {
	case errors.As(err, &retrieval):
		return "retrieval"
	case errors.As(err, &persistence):
		return "persistence"
	case errors.As(err, &configuration):
		return "configuration"
	case errors.Is(err, core.ErrNoHandlerMatched):
		return "no_handler"
	default:
		return "other"
	}
}

// ====================== Store instrumentation ======================

// InstrumentStore wraps store so every call is counted and timed
func (m *Metrics) InstrumentStore(store storage.AttributeStore) storage.AttributeStore {
	return &instrumentedStore{next: store, metrics: m}
}

type instrumentedStore struct {
	next    storage.AttributeStore
	metrics *Metrics
}

func (s *instrumentedStore) Get(ctx context.Context, key string) (storage.Attributes, bool, error) {
	start := time.Now()
	attributes, found, err := s.next.Get(ctx, key)
	outcome := "hit"
	switch {
	case err != nil:
		outcome = "error"
	case !found:
		outcome = "miss"
	}
	s.observe("get", outcome, start)
	return attributes, found, err
}

func (s *instrumentedStore) Put(ctx context.Context, key string, attributes storage.Attributes) error {
	start := time.Now()
	err := s.next.Put(ctx, key, attributes)
	s.observe("put", outcomeOf(err), start)
	return err
}

func (s *instrumentedStore) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := s.next.Delete(ctx, key)
	s.observe("delete", outcomeOf(err), start)
	return err
}

func (s *instrumentedStore) observe(operation, outcome string, start time.Time) {
	s.metrics.storeOps.WithLabelValues(operation, outcome).Inc()
	s.metrics.storeDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func outcomeOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
