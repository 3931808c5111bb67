package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the applications module.
// Tracks mutation counts, token rejections and store latency.
type Metrics struct {
	ApplicationsCreated prometheus.Counter
	ApplicationsUpdated prometheus.Counter
	ApplicationsDeleted prometheus.Counter
	TokenRejections     *prometheus.CounterVec
	ListResultSize      prometheus.Histogram
	OperationDuration   *prometheus.HistogramVec
}

// New creates a new Metrics instance registered on the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers on reg so tests can use an isolated registry.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ApplicationsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "nietos_applications_created_total",
			Help: "Total number of applications created",
		}),
		ApplicationsUpdated: f.NewCounter(prometheus.CounterOpts{
			Name: "nietos_applications_updated_total",
			Help: "Total number of applications updated",
		}),
		ApplicationsDeleted: f.NewCounter(prometheus.CounterOpts{
			Name: "nietos_applications_deleted_total",
			Help: "Total number of applications deleted",
		}),
		TokenRejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "nietos_edit_token_rejections_total",
			Help: "Mutations refused for a missing or mismatched edit token",
		}, []string{"reason"}),
		ListResultSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "nietos_list_result_size",
			Help:    "Number of applications returned by list queries",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
		OperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nietos_application_operation_duration_seconds",
			Help:    "Duration of application service operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),
	}
}

// ObserveOperation records the duration of a service operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveOperation(op string, start time.Time) {
	m.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
