package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"ordering-quiz-service/internal/domain"
	"ordering-quiz-service/internal/infra/memory"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// ContentRepository caches topics and questions in Redis and falls back to a loader on cache miss.
// Topics are stored as:    SET content:topic:{topicID}       {json}
// Questions are stored as: SET content:question:{questionID} {json}
type ContentRepository struct {
	client *redis.Client
	loader memory.ContentLoader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewContentRepository(client *redis.Client, loader memory.ContentLoader, ttl time.Duration) *ContentRepository {
	return &ContentRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *ContentRepository) GetTopic(ctx context.Context, topicID string) (domain.Topic, error) {
	var topic domain.Topic
	err := r.cached(ctx, topicKey(topicID), &topic, func() (any, error) {
		return r.loader.LoadTopic(ctx, topicID)
	})
	return topic, err
}

func (r *ContentRepository) GetQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	var question domain.Question
	err := r.cached(ctx, questionKey(questionID), &question, func() (any, error) {
		return r.loader.LoadQuestion(ctx, questionID)
	})
	return question, err
}

// QuestionItems reads through to the loader; grading never uses cached positions.
func (r *ContentRepository) QuestionItems(ctx context.Context, questionID string) ([]domain.QuestionItem, error) {
	q, err := r.loader.LoadQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}
	return q.Items, nil
}

// Invalidate removes cached content after an edit.
func (r *ContentRepository) Invalidate(ctx context.Context, topicID string, questionIDs ...string) error {
	keys := []string{topicKey(topicID)}
	for _, id := range questionIDs {
		keys = append(keys, questionKey(id))
	}
	return r.client.Del(ctx, keys...).Err()
}

// cached decodes key into dst, filling it from load on a miss. Redis errors
// degrade to a direct load so an unavailable cache never blocks reads.
func (r *ContentRepository) cached(ctx context.Context, key string, dst any, load func() (any, error)) error {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err == nil && json.Unmarshal(raw, dst) == nil {
		return nil
	}

	result, err, _ := r.sf.Do(key, func() (any, error) {
		// Re-check cache in case another goroutine filled it.
		if raw, err := r.client.Get(ctx, key).Bytes(); err == nil {
			return raw, nil
		}

		value, err := load()
		if err != nil {
			return nil, err
		}
		payload, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		// best-effort cache fill
		_ = r.client.Set(ctx, key, payload, r.ttlWithJitter()).Err()
		return payload, nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(result.([]byte), dst)
}

func topicKey(topicID string) string {
	return "content:topic:" + topicID
}

func questionKey(questionID string) string {
	return "content:question:" + questionID
}

func (r *ContentRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
