package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"ordering-quiz-service/internal/app"
	"ordering-quiz-service/internal/domain"
	"ordering-quiz-service/internal/scoring"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry
}

type sessionEntry struct {
	mu      sync.Mutex
	session domain.QuizSession
	answers []domain.AnswerRecord
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*sessionEntry),
	}
}

func (s *SessionStore) Create(_ context.Context, session domain.QuizSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; ok {
		return fmt.Errorf("session %s already exists", session.ID)
	}
	s.sessions[session.ID] = &sessionEntry{session: cloneSession(session)}
	return nil
}

func (s *SessionStore) Load(_ context.Context, sessionID string) (domain.QuizSession, error) {
	entry, ok := s.entry(sessionID)
	if !ok {
		return domain.QuizSession{}, domain.ErrSessionNotFound
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return cloneSession(entry.session), nil
}

// Update holds the session's lock across mutate and the answer append.
func (s *SessionStore) Update(_ context.Context, sessionID string, mutate app.Mutation, record *domain.AnswerRecord) (domain.QuizSession, error) {
	entry, ok := s.entry(sessionID)
	if !ok {
		return domain.QuizSession{}, domain.ErrSessionNotFound
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	next, err := mutate(cloneSession(entry.session))
	if err != nil {
		return domain.QuizSession{}, err
	}
	if record != nil {
		for _, a := range entry.answers {
			if a.QuestionIndex == record.QuestionIndex {
				return domain.QuizSession{}, fmt.Errorf("%w: question %d already recorded", domain.ErrAlreadyCompleted, record.QuestionIndex)
			}
		}
		entry.answers = append(entry.answers, *record)
	}
	entry.session = next
	return cloneSession(next), nil
}

func (s *SessionStore) ListAnswers(_ context.Context, sessionID string) ([]domain.AnswerRecord, error) {
	entry, ok := s.entry(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	entry.mu.Lock()
	answers := make([]domain.AnswerRecord, len(entry.answers))
	copy(answers, entry.answers)
	entry.mu.Unlock()

	sort.Slice(answers, func(i, j int) bool { return answers[i].QuestionIndex < answers[j].QuestionIndex })
	return answers, nil
}

// QuestionStats aggregates the answers recorded for questionID in every session.
func (s *SessionStore) QuestionStats(_ context.Context, questionID string) (domain.QuestionStats, error) {
	s.mu.RLock()
	entries := make([]*sessionEntry, 0, len(s.sessions))
	for _, entry := range s.sessions {
		entries = append(entries, entry)
	}
	s.mu.RUnlock()

	var results []domain.GradingResult
	for _, entry := range entries {
		entry.mu.Lock()
		for _, a := range entry.answers {
			if a.QuestionID == questionID {
				results = append(results, a.Result)
			}
		}
		entry.mu.Unlock()
	}
	return scoring.Aggregate(questionID, results), nil
}

func (s *SessionStore) entry(sessionID string) (*sessionEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.sessions[sessionID]
	return entry, ok
}

func cloneSession(in domain.QuizSession) domain.QuizSession {
	out := in
	out.QuestionIDs = append([]string(nil), in.QuestionIDs...)
	if in.CompletedAt != nil {
		t := *in.CompletedAt
		out.CompletedAt = &t
	}
	return out
}
