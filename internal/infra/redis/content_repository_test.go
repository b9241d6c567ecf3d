package redis

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"ordering-quiz-service/internal/domain"
	"ordering-quiz-service/internal/infra/memory"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestContentRepositoryCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{ContentLoader: sampleLoader()}
	repo := NewContentRepository(newClient(mr), loader, time.Minute)

	topic, err := repo.GetTopic(context.Background(), "planets")
	if err != nil {
		t.Fatalf("get topic: %v", err)
	}
	if topic.Name != "Planets" || len(topic.QuestionIDs) != 1 {
		t.Fatalf("unexpected topic %+v", topic)
	}
	if !mr.Exists("content:topic:planets") {
		t.Fatalf("expected topic to be cached")
	}

	// Second call should hit cache, loader not incremented.
	_, _ = repo.GetTopic(context.Background(), "planets")
	if loader.topics.Load() != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.topics.Load())
	}

	q, err := repo.GetQuestion(context.Background(), "q1")
	if err != nil {
		t.Fatalf("get question: %v", err)
	}
	if len(q.Items) != 2 || q.Items[1].CorrectPosition != 2 {
		t.Fatalf("unexpected cached question %+v", q)
	}
}

func TestContentRepositoryInvalidate(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{ContentLoader: sampleLoader()}
	repo := NewContentRepository(newClient(mr), loader, time.Minute)

	_, _ = repo.GetQuestion(context.Background(), "q1")
	if err := repo.Invalidate(context.Background(), "planets", "q1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if mr.Exists("content:question:q1") {
		t.Fatalf("expected question key removed")
	}
	_, _ = repo.GetQuestion(context.Background(), "q1")
	if loader.questions.Load() != 2 {
		t.Fatalf("expected reload after invalidate, got %d", loader.questions.Load())
	}
}

func TestQuestionItemsReadsThrough(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{ContentLoader: sampleLoader()}
	repo := NewContentRepository(newClient(mr), loader, time.Minute)

	_, _ = repo.GetQuestion(context.Background(), "q1")
	if _, err := repo.QuestionItems(context.Background(), "q1"); err != nil {
		t.Fatalf("items: %v", err)
	}
	if loader.questions.Load() != 2 {
		t.Fatalf("expected items to bypass cache, loader calls=%d", loader.questions.Load())
	}
}

func TestContentRepositorySurvivesRedisOutage(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	client := newClient(mr)
	mr.Close()

	repo := NewContentRepository(client, sampleLoader(), time.Minute)
	if _, err := repo.GetTopic(context.Background(), "planets"); err != nil {
		t.Fatalf("expected loader fallback, got %v", err)
	}
}

type countingLoader struct {
	memory.ContentLoader
	topics    atomic.Int32
	questions atomic.Int32
}

func (l *countingLoader) LoadTopic(ctx context.Context, topicID string) (domain.Topic, error) {
	l.topics.Add(1)
	return l.ContentLoader.LoadTopic(ctx, topicID)
}

func (l *countingLoader) LoadQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	l.questions.Add(1)
	return l.ContentLoader.LoadQuestion(ctx, questionID)
}

func sampleLoader() *memory.StaticContentLoader {
	return memory.NewStaticContentLoader(
		[]domain.Topic{{ID: "planets", Name: "Planets", QuestionIDs: []string{"q1"}}},
		[]domain.Question{{
			ID:      "q1",
			TopicID: "planets",
			Title:   "Order by distance from the Sun",
			Items: []domain.QuestionItem{
				{ID: "a", Text: "Mercury", CorrectPosition: 1},
				{ID: "b", Text: "Venus", CorrectPosition: 2},
			},
		}},
	)
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
