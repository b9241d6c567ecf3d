// Package ledger holds the quiz-session state machine as pure transition functions.
//
// A session is InProgress from Open until the last question is graded, then
// Completed for good. Storage adapters apply Advance inside their own
// serialization point; the ledger itself never touches storage.
package ledger

import (
	"fmt"
	"time"

	"ordering-quiz-service/internal/domain"
	"ordering-quiz-service/internal/scoring"

	"github.com/shopspring/decimal"
)

// State is the lifecycle state of a stored session.
type State string

const (
	InProgress State = "in_progress"
	Completed  State = "completed"
)

// Graded is the event applied when the current question has been scored.
type Graded struct {
	QuestionIndex int
	Result        domain.GradingResult
}

// Open creates a fresh session over the topic's current question list.
func Open(id, ownerID string, topic domain.Topic, nickname string, now time.Time) (domain.QuizSession, error) {
	if len(topic.QuestionIDs) == 0 {
		return domain.QuizSession{}, fmt.Errorf("%w: %s", domain.ErrEmptyTopic, topic.ID)
	}
	questionIDs := make([]string, len(topic.QuestionIDs))
	copy(questionIDs, topic.QuestionIDs)

	return domain.QuizSession{
		ID:                   id,
		OwnerID:              ownerID,
		TopicID:              topic.ID,
		TopicName:            topic.Name,
		ChapterName:          topic.ChapterName,
		Nickname:             nickname,
		QuestionIDs:          questionIDs,
		CurrentQuestionIndex: 0,
		TotalQuestions:       len(questionIDs),
		TotalScore:           decimal.Zero,
		MaxPossibleScore:     decimal.Zero,
		Percentage:           decimal.Zero,
		StartedAt:            now,
	}, nil
}

// Advance applies a graded question to the session and returns the new value.
// The event must target the session's current question; anything else is a
// duplicate submission and is rejected without changing totals.
func Advance(s domain.QuizSession, ev Graded, now time.Time) (domain.QuizSession, error) {
	if s.Completed {
		return s, domain.ErrAlreadyCompleted
	}
	if ev.QuestionIndex != s.CurrentQuestionIndex {
		return s, fmt.Errorf("%w: question %d already graded", domain.ErrAlreadyCompleted, ev.QuestionIndex)
	}

	next := s
	next.CurrentQuestionIndex = s.CurrentQuestionIndex + 1
	next.TotalScore = s.TotalScore.Add(ev.Result.TotalScore)
	next.MaxPossibleScore = s.MaxPossibleScore.Add(ev.Result.MaxPossibleScore)
	next.Percentage = scoring.Percentage(next.TotalScore, next.MaxPossibleScore)
	next.Completed = next.CurrentQuestionIndex >= next.TotalQuestions
	if next.Completed {
		completedAt := now
		next.CompletedAt = &completedAt
	}
	return next, nil
}

// StateOf reports the lifecycle state of s.
func StateOf(s domain.QuizSession) State {
	if s.Completed {
		return Completed
	}
	return InProgress
}

// CurrentQuestionID returns the question the session is waiting on.
func CurrentQuestionID(s domain.QuizSession) (string, bool) {
	if s.Completed || s.CurrentQuestionIndex < 0 || s.CurrentQuestionIndex >= len(s.QuestionIDs) {
		return "", false
	}
	return s.QuestionIDs[s.CurrentQuestionIndex], true
}

// ProgressOf snapshots the running totals of s.
func ProgressOf(s domain.QuizSession) domain.Progress {
	return domain.Progress{
		CurrentQuestionIndex: s.CurrentQuestionIndex,
		TotalQuestions:       s.TotalQuestions,
		RunningScore:         s.TotalScore,
		RunningMaxScore:      s.MaxPossibleScore,
		RunningPercentage:    s.Percentage,
		Completed:            s.Completed,
	}
}

// OwnedBy reports whether ownerID may read or mutate s.
func OwnedBy(s domain.QuizSession, ownerID string) bool {
	return ownerID != "" && s.OwnerID == ownerID
}
