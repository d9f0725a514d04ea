package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/statforge/pkg/domain"
)

// Metrics holds the Prometheus collectors of the conversion workflow.
type Metrics struct {
	StageRuns      *prometheus.CounterVec
	StageDuration  *prometheus.HistogramVec
	ParseWarnings  *prometheus.CounterVec
	SessionsDone   *prometheus.CounterVec
	RevisionsTaken prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		StageRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "statforge_stage_runs_total",
				Help: "Total number of workflow stage executions",
			},
			[]string{"stage", "outcome"},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "statforge_stage_duration_seconds",
				Help:    "Duration of workflow stage executions",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
			},
			[]string{"stage"},
		),
		ParseWarnings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "statforge_parse_warnings_total",
				Help: "Retrieved documents dropped for missing required fields",
			},
			[]string{"entity_type"},
		),
		SessionsDone: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "statforge_sessions_completed_total",
				Help: "Sessions that reached the done stage",
			},
			[]string{"entity_type"},
		),
		RevisionsTaken: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "statforge_session_revisions",
				Help:    "Generation count of completed sessions",
				Buckets: prometheus.LinearBuckets(1, 1, 6),
			},
		),
	}

	if reg != nil {
		reg.MustRegister(m.StageRuns, m.StageDuration, m.ParseWarnings, m.SessionsDone, m.RevisionsTaken)
	}
	return m
}

// Hooks returns lifecycle hooks that record into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStageLeave: func(_ context.Context, e *domain.StageEvent) {
			outcome := "ok"
			if e.Err != nil {
				outcome = "error"
			}
			m.StageRuns.WithLabelValues(string(e.Stage), outcome).Inc()
			m.StageDuration.WithLabelValues(string(e.Stage)).Observe(e.Duration.Seconds())
		},
		OnParseWarning: func(_ context.Context, e *domain.ParseWarningEvent) {
			m.ParseWarnings.WithLabelValues(string(e.EntityType)).Inc()
		},
		OnSessionDone: func(_ context.Context, s *domain.WorkflowState) {
			m.SessionsDone.WithLabelValues(string(s.EntityType)).Inc()
			m.RevisionsTaken.Observe(float64(s.RevisionNumber))
		},
	}
}
