package metricsvc

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/trezcool/examroutine/core/exam"
)

const namespace = "exams"

// Recorder counts exam engine events on a prometheus registry.
type Recorder struct {
	transitions *prometheus.CounterVec
	merges      *prometheus.CounterVec
	copies      *prometheus.CounterVec
	invalid     prometheus.Counter
}

var _ exam.Metrics = (*Recorder)(nil)

// NewRecorder registers the exam counters on reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_transitions_total",
			Help:      "Exam status changes, by target status.",
		}, []string{"to"}),
		merges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merge_attempts_total",
			Help:      "Class routine merge attempts, by outcome.",
		}, []string{"outcome"}),
		copies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "copy_entries_total",
			Help:      "Entries handled by routine copies, by result.",
		}, []string{"result"}),
		invalid: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_failures_total",
			Help:      "Exam saves rejected by validation.",
		}),
	}
	for _, c := range []prometheus.Collector{r.transitions, r.merges, r.copies, r.invalid} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Recorder) StatusChanged(to exam.Status) {
	r.transitions.WithLabelValues(string(to)).Inc()
}

func (r *Recorder) MergeAttempt(outcome string) {
	r.merges.WithLabelValues(outcome).Inc()
}

func (r *Recorder) CopyEntries(result string, n int) {
	if n <= 0 {
		return
	}
	r.copies.WithLabelValues(result).Add(float64(n))
}

func (r *Recorder) ValidationFailed() {
	r.invalid.Inc()
}
