// Package metrics exports workflow activity as Prometheus collectors.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/rfqflow/pkg/domain"
)

const namespace = "rfqflow"

// Collectors groups the workflow metrics.
type Collectors struct {
	NodeVisits   *prometheus.CounterVec
	NodeDuration *prometheus.HistogramVec
	Interrupts   *prometheus.CounterVec
	Resumes      *prometheus.CounterVec
	Errors       *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		NodeVisits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_visits_total",
			Help:      "Total number of node executions.",
		}, []string{"node"}),
		NodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "node_duration_seconds",
			Help:      "Duration of node executions.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"node"}),
		Interrupts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interrupts_total",
			Help:      "Runs suspended for human review.",
		}, []string{"node"}),
		Resumes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resumes_total",
			Help:      "Runs resumed with reviewer feedback.",
		}, []string{"node"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_errors_total",
			Help:      "Node executions that failed.",
		}, []string{"node"}),
	}
	reg.MustRegister(c.NodeVisits, c.NodeDuration, c.Interrupts, c.Resumes, c.Errors)
	return c
}

// Hooks returns lifecycle hooks that feed the collectors.
func (c *Collectors) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(_ context.Context, e *domain.NodeEvent) {
			c.NodeVisits.WithLabelValues(e.Node).Inc()
		},
		OnNodeLeave: func(_ context.Context, e *domain.NodeEvent) {
			c.NodeDuration.WithLabelValues(e.Node).Observe(e.Duration.Seconds())
		},
		OnInterrupt: func(_ context.Context, e *domain.NodeEvent) {
			c.Interrupts.WithLabelValues(e.Node).Inc()
		},
		OnResume: func(_ context.Context, e *domain.NodeEvent) {
			c.Resumes.WithLabelValues(e.Node).Inc()
		},
		OnError: func(_ context.Context, e *domain.NodeEvent) {
			c.Errors.WithLabelValues(e.Node).Inc()
		},
	}
}
