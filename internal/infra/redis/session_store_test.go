package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ordering-quiz-service/internal/domain"
	"ordering-quiz-service/internal/ledger"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
)

func TestSessionStoreRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewSessionStore(newClient(mr), time.Hour)
	ctx := context.Background()
	session := openSession(t)

	if err := store.Create(ctx, session); err != nil {
		t.Fatalf("create: %v", err)
	}
	if !mr.Exists("quiz:session:s1") {
		t.Fatalf("expected redis key to be set")
	}
	if err := store.Create(ctx, session); err == nil {
		t.Fatalf("expected duplicate create to fail")
	}

	updated, err := store.Update(ctx, "s1", advance(0), &domain.AnswerRecord{SessionID: "s1", QuestionID: "q1", QuestionIndex: 0})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.CurrentQuestionIndex != 1 {
		t.Fatalf("expected index 1, got %d", updated.CurrentQuestionIndex)
	}

	loaded, err := store.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !loaded.TotalScore.Equal(decimal.RequireFromString("27.5")) || loaded.QuestionIDs[1] != "q2" {
		t.Fatalf("unexpected stored session %+v", loaded)
	}
	if ttl := mr.TTL("quiz:session:s1"); ttl <= 0 {
		t.Fatalf("expected session ttl to be kept, got %v", ttl)
	}

	answers, err := store.ListAnswers(ctx, "s1")
	if err != nil || len(answers) != 1 || answers[0].QuestionID != "q1" {
		t.Fatalf("unexpected answers %+v (%v)", answers, err)
	}
}

func TestSessionStoreNotFound(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewSessionStore(newClient(mr), time.Hour)
	if _, err := store.Load(context.Background(), "missing"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := store.Update(context.Background(), "missing", advance(0), nil); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSessionStoreCommitsOnceUnderContention(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewSessionStore(newClient(mr), time.Hour)
	_ = store.Create(context.Background(), openSession(t))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Update(context.Background(), "s1", advance(0), &domain.AnswerRecord{SessionID: "s1", QuestionIndex: 0})
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	answers, _ := store.ListAnswers(context.Background(), "s1")
	if successes != 1 || len(answers) != 1 {
		t.Fatalf("expected one commit, got %d successes and %d answers", successes, len(answers))
	}
}

func openSession(t *testing.T) domain.QuizSession {
	t.Helper()
	s, err := ledger.Open("s1", "owner", domain.Topic{ID: "planets", QuestionIDs: []string{"q1", "q2"}}, "Ada", time.Now().UTC())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return s
}

func advance(index int) func(domain.QuizSession) (domain.QuizSession, error) {
	return func(s domain.QuizSession) (domain.QuizSession, error) {
		return ledger.Advance(s, ledger.Graded{
			QuestionIndex: index,
			Result: domain.GradingResult{
				TotalScore:       decimal.RequireFromString("27.5"),
				MaxPossibleScore: decimal.NewFromInt(40),
			},
		}, time.Now().UTC())
	}
}
