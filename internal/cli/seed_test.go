package cli

import (
	"context"
	"testing"

	"ordering-quiz-service/internal/domain"
	"ordering-quiz-service/internal/infra/memory"
	redisstore "ordering-quiz-service/internal/infra/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestInvalidateSeededDropsCachedContent(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	for _, key := range []string{"content:topic:t1", "content:question:q1", "content:question:q2", "content:topic:other"} {
		if err := mr.Set(key, "{}"); err != nil {
			t.Fatalf("set %s: %v", key, err)
		}
	}
	fixture := memory.Fixture{
		Topics: []domain.Topic{{ID: "t1", QuestionIDs: []string{"q1", "q2"}}},
	}

	if err := invalidateSeeded(context.Background(), redisstore.NewContentRepository(client, nil, 0), fixture); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	for _, key := range []string{"content:topic:t1", "content:question:q1", "content:question:q2"} {
		if mr.Exists(key) {
			t.Fatalf("expected %s to be dropped", key)
		}
	}
	if !mr.Exists("content:topic:other") {
		t.Fatalf("expected unrelated topic to stay cached")
	}
}
