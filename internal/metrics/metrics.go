// Package metrics exposes Prometheus collectors for the quiz service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics implements app.Recorder. A nil *Metrics records nothing.
type Metrics struct {
	sessionsStarted  *prometheus.CounterVec
	questionsGraded  *prometheus.CounterVec
	questionScore    *prometheus.HistogramVec
	submissionErrors *prometheus.CounterVec
	quizzesCompleted *prometheus.CounterVec
	eventsConsumed   prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		sessionsStarted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quiz_sessions_started_total",
				Help: "Quiz sessions opened, by topic",
			},
			[]string{"topic"},
		),
		questionsGraded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quiz_questions_graded_total",
				Help: "Ordering questions graded, by topic",
			},
			[]string{"topic"},
		),
		questionScore: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quiz_question_percentage",
				Help:    "Per-question score percentage",
				Buckets: []float64{0, 25, 40, 50, 60, 75, 80, 90, 100},
			},
			[]string{"topic"},
		),
		submissionErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quiz_submissions_rejected_total",
				Help: "Submissions rejected, by reason",
			},
			[]string{"reason"},
		),
		quizzesCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quiz_sessions_completed_total",
				Help: "Quiz sessions completed, by topic",
			},
			[]string{"topic"},
		),
		eventsConsumed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "quiz_completed_events_consumed_total",
				Help: "Quiz completed events processed by the consumer",
			},
		),
	}
}

func (m *Metrics) SessionStarted(topicID string) {
	if m == nil {
		return
	}
	m.sessionsStarted.WithLabelValues(topicID).Inc()
}

func (m *Metrics) QuestionGraded(topicID string, percentage float64) {
	if m == nil {
		return
	}
	m.questionsGraded.WithLabelValues(topicID).Inc()
	m.questionScore.WithLabelValues(topicID).Observe(percentage)
}

func (m *Metrics) SubmissionRejected(reason string) {
	if m == nil {
		return
	}
	m.submissionErrors.WithLabelValues(reason).Inc()
}

func (m *Metrics) QuizCompleted(topicID string) {
	if m == nil {
		return
	}
	m.quizzesCompleted.WithLabelValues(topicID).Inc()
}

func (m *Metrics) EventConsumed() {
	if m == nil {
		return
	}
	m.eventsConsumed.Inc()
}
