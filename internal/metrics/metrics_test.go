package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecord(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.SessionStarted("planets")
	m.SessionStarted("planets")
	m.QuestionGraded("planets", 87.5)
	m.SubmissionRejected("duplicate")
	m.QuizCompleted("planets")
	m.EventConsumed()

	if got := testutil.ToFloat64(m.sessionsStarted.WithLabelValues("planets")); got != 2 {
		t.Fatalf("expected 2 sessions started, got %v", got)
	}
	if got := testutil.ToFloat64(m.submissionErrors.WithLabelValues("duplicate")); got != 1 {
		t.Fatalf("expected 1 rejection, got %v", got)
	}
	if got := testutil.CollectAndCount(m.questionScore); got != 1 {
		t.Fatalf("expected one histogram series, got %d", got)
	}
	if got := testutil.ToFloat64(m.eventsConsumed); got != 1 {
		t.Fatalf("expected 1 consumed event, got %v", got)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.SessionStarted("planets")
	m.QuestionGraded("planets", 10)
	m.SubmissionRejected("invalid")
	m.QuizCompleted("planets")
	m.EventConsumed()
}
