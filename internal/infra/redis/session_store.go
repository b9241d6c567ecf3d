package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"ordering-quiz-service/internal/app"
	"ordering-quiz-service/internal/domain"

	"github.com/redis/go-redis/v9"
)

const maxUpdateRetries = 8

// SessionStore is a Redis implementation of app.SessionRepository.
// Sessions are stored as:  SET   quiz:session:{id}         {json}
// Answers are appended to: RPUSH quiz:session:{id}:answers {json}
// Update runs under WATCH so the session write and answer append commit in one
// MULTI/EXEC; a lost race is retried against the fresh value.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func (s *SessionStore) Create(ctx context.Context, session domain.QuizSession) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	ok, err := s.client.SetNX(ctx, s.key(session.ID), payload, s.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("session %s already exists", session.ID)
	}
	return nil
}

func (s *SessionStore) Load(ctx context.Context, sessionID string) (domain.QuizSession, error) {
	raw, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.QuizSession{}, domain.ErrSessionNotFound
		}
		return domain.QuizSession{}, err
	}
	return decodeSession(raw)
}

func (s *SessionStore) Update(ctx context.Context, sessionID string, mutate app.Mutation, record *domain.AnswerRecord) (domain.QuizSession, error) {
	key := s.key(sessionID)
	answersKey := s.answersKey(sessionID)

	var next domain.QuizSession
	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return domain.ErrSessionNotFound
			}
			return err
		}
		current, err := decodeSession(raw)
		if err != nil {
			return err
		}
		next, err = mutate(current)
		if err != nil {
			return err
		}
		payload, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode session: %w", err)
		}
		var answer []byte
		if record != nil {
			if answer, err = json.Marshal(record); err != nil {
				return fmt.Errorf("encode answer: %w", err)
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, redis.KeepTTL)
			if answer != nil {
				pipe.RPush(ctx, answersKey, answer)
				if s.ttl > 0 {
					pipe.Expire(ctx, answersKey, s.ttl)
				}
			}
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxUpdateRetries; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return next, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return domain.QuizSession{}, err
	}
	return domain.QuizSession{}, fmt.Errorf("%w: session %s is contended", domain.ErrStorageUnavailable, sessionID)
}

func (s *SessionStore) ListAnswers(ctx context.Context, sessionID string) ([]domain.AnswerRecord, error) {
	raws, err := s.client.LRange(ctx, s.answersKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	answers := make([]domain.AnswerRecord, 0, len(raws))
	for _, raw := range raws {
		var a domain.AnswerRecord
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			return nil, fmt.Errorf("decode answer: %w", err)
		}
		answers = append(answers, a)
	}
	sort.Slice(answers, func(i, j int) bool { return answers[i].QuestionIndex < answers[j].QuestionIndex })
	return answers, nil
}

func (s *SessionStore) key(sessionID string) string {
	return "quiz:session:" + sessionID
}

func (s *SessionStore) answersKey(sessionID string) string {
	return "quiz:session:" + sessionID + ":answers"
}

func decodeSession(raw []byte) (domain.QuizSession, error) {
	var session domain.QuizSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return domain.QuizSession{}, fmt.Errorf("decode session: %w", err)
	}
	return session, nil
}
