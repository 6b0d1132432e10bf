package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var durationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}

// Metrics provides observability for admissions and moderation.
type Metrics struct {
	Admissions         *prometheus.CounterVec
	Refusals           *prometheus.CounterVec
	Replays            prometheus.Counter
	Transitions        *prometheus.CounterVec
	TransitionConflict prometheus.Counter
	BatchSize          prometheus.Histogram
	NotifyFailures     prometheus.Counter
	LifecycleChanges   *prometheus.CounterVec
	SubmitDuration     prometheus.Histogram
	TransitionDuration prometheus.Histogram
}

// New registers the registration metrics with reg, or the default
// registerer when reg is nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Admissions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "podium_submissions_admitted_total",
			Help: "Submissions admitted, by kind",
		}, []string{"kind"}),
		Refusals: f.NewCounterVec(prometheus.CounterOpts{
			Name: "podium_submissions_refused_total",
			Help: "Submissions refused at admission, by reason",
		}, []string{"reason"}),
		Replays: f.NewCounter(prometheus.CounterOpts{
			Name: "podium_submissions_replayed_total",
			Help: "Submit requests answered from an idempotency key",
		}),
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "podium_submission_transitions_total",
			Help: "Successful moderation transitions, by target status",
		}, []string{"status"}),
		TransitionConflict: f.NewCounter(prometheus.CounterOpts{
			Name: "podium_submission_transition_conflicts_total",
			Help: "Moderation attempts that lost a race or hit a terminal submission",
		}),
		BatchSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "podium_batch_transition_size",
			Help:    "Distinct ids per batch moderation request",
			Buckets: []float64{1, 5, 10, 25, 50, 100},
		}),
		NotifyFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "podium_transition_notify_failures_total",
			Help: "Transition notifications that failed to publish",
		}),
		LifecycleChanges: f.NewCounterVec(prometheus.CounterOpts{
			Name: "podium_lifecycle_changes_total",
			Help: "Soft delete, restore and erase operations, by entity",
		}, []string{"entity", "action"}),
		SubmitDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "podium_submit_duration_seconds",
			Help:    "Duration of the admission critical path",
			Buckets: durationBuckets,
		}),
		TransitionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "podium_transition_duration_seconds",
			Help:    "Duration of a single moderation transition",
			Buckets: durationBuckets,
		}),
	}
}

func (m *Metrics) IncAdmitted(kind string) {
	if m == nil {
		return
	}
	m.Admissions.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncRefused(reason string) {
	if m == nil {
		return
	}
	m.Refusals.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncReplayed() {
	if m == nil {
		return
	}
	m.Replays.Inc()
}

func (m *Metrics) IncTransition(status string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(status).Inc()
}

func (m *Metrics) IncTransitionConflict() {
	if m == nil {
		return
	}
	m.TransitionConflict.Inc()
}

func (m *Metrics) ObserveBatchSize(n int) {
	if m == nil {
		return
	}
	m.BatchSize.Observe(float64(n))
}

func (m *Metrics) IncNotifyFailure() {
	if m == nil {
		return
	}
	m.NotifyFailures.Inc()
}

func (m *Metrics) IncLifecycle(entity, action string) {
	if m == nil {
		return
	}
	m.LifecycleChanges.WithLabelValues(entity, action).Inc()
}

// ObserveSubmit records the duration of an admission.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveSubmit(start time.Time) {
	if m == nil {
		return
	}
	m.SubmitDuration.Observe(time.Since(start).Seconds())
}

// ObserveTransition records the duration of a single transition.
func (m *Metrics) ObserveTransition(start time.Time) {
	if m == nil {
		return
	}
	m.TransitionDuration.Observe(time.Since(start).Seconds())
}
