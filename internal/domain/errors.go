package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a quiz session does not exist or belongs to another owner.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrTopicNotFound indicates the topic could not be loaded.
	ErrTopicNotFound = errors.New("topic not found")
	// ErrQuestionNotFound indicates a question referenced by a session could not be loaded.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrEmptyTopic is returned when starting a quiz for a topic without questions.
	ErrEmptyTopic = errors.New("topic has no questions")
	// ErrAlreadyCompleted rejects submissions against a finished session or an already graded question.
	ErrAlreadyCompleted = errors.New("quiz already completed")
	// ErrInvalidSubmission indicates a malformed submitted ordering.
	ErrInvalidSubmission = errors.New("invalid submission")
	// ErrInvalidRequest indicates missing or malformed caller input outside the ordering itself.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidQuestion indicates stored items whose correct positions are not exactly 1..N.
	ErrInvalidQuestion = errors.New("invalid question content")
	// ErrStatsUnavailable is returned when the session store cannot aggregate answers.
	ErrStatsUnavailable = errors.New("question stats unavailable for this store")
	// ErrStorageUnavailable wraps transient persistence failures.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// IsDomainError reports whether err carries one of the sentinel errors above.
func IsDomainError(err error) bool {
	for _, target := range []error{
		ErrSessionNotFound, ErrTopicNotFound, ErrQuestionNotFound, ErrEmptyTopic,
		ErrAlreadyCompleted, ErrInvalidSubmission, ErrInvalidRequest, ErrInvalidQuestion,
		ErrStatsUnavailable, ErrStorageUnavailable,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
