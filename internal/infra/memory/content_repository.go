package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"ordering-quiz-service/internal/domain"

	"golang.org/x/sync/singleflight"
)

// ContentLoader fetches topics and questions from the backing content store.
type ContentLoader interface {
	LoadTopic(ctx context.Context, topicID string) (domain.Topic, error)
	LoadQuestion(ctx context.Context, questionID string) (domain.Question, error)
}

// ContentRepository caches topics and questions with TTL to avoid repeated DB hits.
// Item positions used for grading always come straight from the loader.
type ContentRepository struct {
	loader ContentLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu        sync.RWMutex
	topics    map[string]cached[domain.Topic]
	questions map[string]cached[domain.Question]
}

type cached[T any] struct {
	value     T
	expiresAt time.Time
}

func NewContentRepository(loader ContentLoader, ttl time.Duration) *ContentRepository {
	return &ContentRepository{
		loader:    loader,
		ttl:       ttl,
		clock:     time.Now,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
		topics:    make(map[string]cached[domain.Topic]),
		questions: make(map[string]cached[domain.Question]),
	}
}

func (r *ContentRepository) GetTopic(ctx context.Context, topicID string) (domain.Topic, error) {
	return getCached(ctx, r, r.topics, "topic:"+topicID, func(ctx context.Context) (domain.Topic, error) {
		return r.loader.LoadTopic(ctx, topicID)
	}, topicID)
}

func (r *ContentRepository) GetQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	return getCached(ctx, r, r.questions, "question:"+questionID, func(ctx context.Context) (domain.Question, error) {
		return r.loader.LoadQuestion(ctx, questionID)
	}, questionID)
}

// QuestionItems bypasses the cache so grading never sees stale positions.
func (r *ContentRepository) QuestionItems(ctx context.Context, questionID string) ([]domain.QuestionItem, error) {
	q, err := r.loader.LoadQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}
	return q.Items, nil
}

// Invalidate drops cached entries for a topic and its questions after a content edit.
func (r *ContentRepository) Invalidate(topicID string, questionIDs ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.topics, topicID)
	for _, id := range questionIDs {
		delete(r.questions, id)
	}
}

func getCached[T any](ctx context.Context, r *ContentRepository, cache map[string]cached[T], flightKey string, load func(context.Context) (T, error), id string) (T, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := cache[id]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.value, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(flightKey, func() (any, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := cache[id]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.value, nil
		}
		r.mu.RUnlock()

		value, err := load(ctx)
		if err != nil {
			return value, err
		}

		r.mu.Lock()
		cache[id] = cached[T]{value: value, expiresAt: now.Add(r.ttlWithJitter())}
		r.mu.Unlock()
		return value, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil
}

func (r *ContentRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
