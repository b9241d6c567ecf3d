package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ordering-quiz-service/internal/app"
	"ordering-quiz-service/internal/domain"
	"ordering-quiz-service/internal/infra/memory"

	"github.com/shopspring/decimal"
)

var fixedNow = time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC)

func TestFullQuizFlow(t *testing.T) {
	ctx := context.Background()
	events := &recordingPublisher{}
	service := newTestService(app.WithEvents(events))

	started, err := service.Start(ctx, "planets", "student-1", "Ada")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if started.TotalQuestions != 2 || started.TopicName != "Planets" {
		t.Fatalf("unexpected start %+v", started)
	}

	current, err := service.CurrentQuestion(ctx, started.SessionID, "student-1")
	if err != nil {
		t.Fatalf("current failed: %v", err)
	}
	if current.Question == nil || current.Question.ID != "q1" || current.IsLastQuestion {
		t.Fatalf("unexpected current question %+v", current)
	}

	first, err := service.SubmitAndAdvance(ctx, started.SessionID, "student-1", app.Submission{Order: []string{"a", "b", "d", "c"}, TimeTaken: 12})
	if err != nil {
		t.Fatalf("submit q1 failed: %v", err)
	}
	assertDecimal(t, first.Result.TotalScore, "35")
	if first.Progress.Completed || first.Progress.CurrentQuestionIndex != 1 {
		t.Fatalf("unexpected progress %+v", first.Progress)
	}

	current, _ = service.CurrentQuestion(ctx, started.SessionID, "student-1")
	if !current.IsLastQuestion || current.Question.ID != "q2" {
		t.Fatalf("expected last question q2, got %+v", current)
	}

	second, err := service.SubmitAndAdvance(ctx, started.SessionID, "student-1", app.Submission{Order: []string{"e", "f"}})
	if err != nil {
		t.Fatalf("submit q2 failed: %v", err)
	}
	if !second.Progress.Completed {
		t.Fatalf("expected completion, got %+v", second.Progress)
	}

	results, err := service.Results(ctx, started.SessionID, "student-1")
	if err != nil {
		t.Fatalf("results failed: %v", err)
	}
	assertDecimal(t, results.TotalScore, "55")
	assertDecimal(t, results.MaxPossibleScore, "60")
	assertDecimal(t, results.Percentage, "91.67")
	if results.Summary.Tier != domain.SummaryExcellent || len(results.Answers) != 2 {
		t.Fatalf("unexpected results %+v", results)
	}
	if results.Answers[0].TimeTaken != 12 || results.Answers[0].QuestionTitle == "" {
		t.Fatalf("expected answer audit data, got %+v", results.Answers[0])
	}
	if results.CompletedAt == nil || !results.CompletedAt.Equal(fixedNow) {
		t.Fatalf("expected completion time, got %v", results.CompletedAt)
	}

	if got := events.completed(); len(got) != 1 || got[0].SessionID != started.SessionID {
		t.Fatalf("expected one completion event, got %+v", got)
	}

	done, err := service.CurrentQuestion(ctx, started.SessionID, "student-1")
	if err != nil || !done.Completed || done.Question != nil {
		t.Fatalf("expected completed view, got %+v (%v)", done, err)
	}
	if _, err := service.SubmitAndAdvance(ctx, started.SessionID, "student-1", app.Submission{Order: []string{"e", "f"}}); !errors.Is(err, domain.ErrAlreadyCompleted) {
		t.Fatalf("expected already completed, got %v", err)
	}
}

func TestReadsAreIdempotent(t *testing.T) {
	ctx := context.Background()
	service := newTestService()
	started, _ := service.Start(ctx, "planets", "student-1", "")

	a, err := service.CurrentQuestion(ctx, started.SessionID, "student-1")
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	b, _ := service.CurrentQuestion(ctx, started.SessionID, "student-1")
	for i := range a.Question.Items {
		if a.Question.Items[i] != b.Question.Items[i] {
			t.Fatalf("expected identical item order across reads")
		}
	}
	r1, _ := service.Results(ctx, started.SessionID, "student-1")
	r2, _ := service.Results(ctx, started.SessionID, "student-1")
	if !r1.TotalScore.Equal(r2.TotalScore) || len(r1.Answers) != len(r2.Answers) || r1.Completed {
		t.Fatalf("expected stable results")
	}
}

func TestShuffleIsStableAcrossInstances(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSessionStore()
	content := memory.NewContentRepository(sampleLoader(), time.Minute)

	started, err := app.NewQuizService(store, content).Start(ctx, "planets", "student-1", "")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	first, err := app.NewQuizService(store, content).CurrentQuestion(ctx, started.SessionID, "student-1")
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	for i := 0; i < 10; i++ {
		// a fresh instance stands in for a restart or another replica
		other, err := app.NewQuizService(store, content).CurrentQuestion(ctx, started.SessionID, "student-1")
		if err != nil {
			t.Fatalf("current on instance %d: %v", i, err)
		}
		assertSameOrder(t, first.Question.Items, other.Question.Items)
	}

	seeded, _ := app.NewQuizService(store, content, app.WithShuffleSeed(7)).CurrentQuestion(ctx, started.SessionID, "student-1")
	again, _ := app.NewQuizService(store, content, app.WithShuffleSeed(7)).CurrentQuestion(ctx, started.SessionID, "student-1")
	assertSameOrder(t, seeded.Question.Items, again.Question.Items)
}

func TestServedItemsFollowContentEdits(t *testing.T) {
	ctx := context.Background()
	loader := &editableLoader{StaticContentLoader: sampleLoader()}
	content := memory.NewContentRepository(loader, time.Hour)
	service := app.NewQuizService(memory.NewSessionStore(), content, app.WithShuffleSeed(7))

	started, _ := service.Start(ctx, "solo", "student-1", "")
	if _, err := service.CurrentQuestion(ctx, started.SessionID, "student-1"); err != nil {
		t.Fatalf("current: %v", err)
	}

	// edited without Invalidate, so the cached question still has the old items
	loader.replaceItems("q1", []domain.QuestionItem{
		{ID: "w", Text: "Mercury", CorrectPosition: 1},
		{ID: "x", Text: "Venus", CorrectPosition: 2},
		{ID: "y", Text: "Earth", CorrectPosition: 3},
	})
	current, err := service.CurrentQuestion(ctx, started.SessionID, "student-1")
	if err != nil {
		t.Fatalf("current after edit: %v", err)
	}
	served := make([]string, 0, len(current.Question.Items))
	for _, item := range current.Question.Items {
		served = append(served, item.ID)
	}
	if len(served) != 3 {
		t.Fatalf("expected the edited item set, got %v", served)
	}

	outcome, err := service.SubmitAndAdvance(ctx, started.SessionID, "student-1", app.Submission{Order: served})
	if err != nil {
		t.Fatalf("served items must grade, got %v", err)
	}
	assertDecimal(t, outcome.Result.MaxPossibleScore, "30")
}

func TestOwnershipIsolation(t *testing.T) {
	ctx := context.Background()
	service := newTestService()
	started, _ := service.Start(ctx, "planets", "student-1", "")

	if _, err := service.CurrentQuestion(ctx, started.SessionID, "student-2"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected not found for other owner, got %v", err)
	}
	if _, err := service.SubmitAndAdvance(ctx, started.SessionID, "student-2", app.Submission{Order: []string{"a", "b", "c", "d"}}); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected not found for other owner, got %v", err)
	}
	if _, err := service.Results(ctx, started.SessionID, "student-2"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected not found for other owner, got %v", err)
	}
	if _, err := service.Results(ctx, started.SessionID, ""); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected not found without owner, got %v", err)
	}

	results, _ := service.Results(ctx, started.SessionID, "student-1")
	if len(results.Answers) != 0 || !results.TotalScore.IsZero() {
		t.Fatalf("foreign submit must not touch the session, got %+v", results)
	}
}

func TestInvalidSubmissionDoesNotAdvance(t *testing.T) {
	ctx := context.Background()
	service := newTestService()
	started, _ := service.Start(ctx, "planets", "student-1", "")

	_, err := service.SubmitAndAdvance(ctx, started.SessionID, "student-1", app.Submission{Order: []string{"a", "a", "b", "c"}})
	if !errors.Is(err, domain.ErrInvalidSubmission) {
		t.Fatalf("expected invalid submission, got %v", err)
	}
	current, _ := service.CurrentQuestion(ctx, started.SessionID, "student-1")
	if current.QuestionIndex != 0 {
		t.Fatalf("expected session to stay on first question, got %d", current.QuestionIndex)
	}
}

func TestStartErrors(t *testing.T) {
	ctx := context.Background()
	service := newTestService()

	if _, err := service.Start(ctx, "empty", "student-1", ""); !errors.Is(err, domain.ErrEmptyTopic) {
		t.Fatalf("expected empty topic, got %v", err)
	}
	if _, err := service.Start(ctx, "unknown", "student-1", ""); !errors.Is(err, domain.ErrTopicNotFound) {
		t.Fatalf("expected topic not found, got %v", err)
	}
	if _, err := service.Start(ctx, "planets", "", ""); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected invalid request, got %v", err)
	}
}

func TestConcurrentSubmitsCommitOnce(t *testing.T) {
	ctx := context.Background()
	service := newTestService()
	started, _ := service.Start(ctx, "solo", "student-1", "")

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		rejected  int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.SubmitAndAdvance(ctx, started.SessionID, "student-1", app.Submission{Order: []string{"a", "b", "c", "d"}})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, domain.ErrAlreadyCompleted):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 || rejected != 7 {
		t.Fatalf("expected 1 commit and 7 rejections, got %d/%d", successes, rejected)
	}
	results, _ := service.Results(ctx, started.SessionID, "student-1")
	assertDecimal(t, results.TotalScore, "40")
	if len(results.Answers) != 1 {
		t.Fatalf("expected one answer record, got %d", len(results.Answers))
	}
}

func TestQuestionStatsAcrossSessions(t *testing.T) {
	ctx := context.Background()
	service := newTestService()

	for _, order := range [][]string{{"a", "b", "c", "d"}, {"a", "b", "d", "c"}} {
		started, _ := service.Start(ctx, "solo", "student-1", "")
		if _, err := service.SubmitAndAdvance(ctx, started.SessionID, "student-1", app.Submission{Order: order}); err != nil {
			t.Fatalf("submit %v: %v", order, err)
		}
	}

	stats, err := service.QuestionStats(ctx, "q1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalAttempts != 2 || stats.PerfectScores != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	assertDecimal(t, stats.AverageScore, "93.75")
	assertDecimal(t, stats.HighestScore, "100")
	assertDecimal(t, stats.LowestScore, "87.5")

	if _, err := service.QuestionStats(ctx, "missing"); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected question not found, got %v", err)
	}
	if _, err := service.QuestionStats(ctx, ""); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected invalid request, got %v", err)
	}
}

func TestQuestionStatsNeedAggregatingStore(t *testing.T) {
	service := app.NewQuizService(failingSessions{}, memory.NewContentRepository(sampleLoader(), time.Minute))
	if _, err := service.QuestionStats(context.Background(), "q1"); !errors.Is(err, domain.ErrStatsUnavailable) {
		t.Fatalf("expected stats unavailable, got %v", err)
	}
}

func TestStorageFailuresAreRetryable(t *testing.T) {
	service := app.NewQuizService(failingSessions{}, memory.NewContentRepository(sampleLoader(), time.Minute))
	_, err := service.Start(context.Background(), "planets", "student-1", "")
	if !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("expected storage unavailable, got %v", err)
	}
}

func newTestService(opts ...app.Option) *app.QuizService {
	content := memory.NewContentRepository(sampleLoader(), time.Minute)
	opts = append([]app.Option{
		app.WithClock(func() time.Time { return fixedNow }),
		app.WithShuffleSeed(7),
	}, opts...)
	return app.NewQuizService(memory.NewSessionStore(), content, opts...)
}

func sampleLoader() *memory.StaticContentLoader {
	return memory.NewStaticContentLoader(
		[]domain.Topic{
			{ID: "planets", Name: "Planets", ChapterName: "Solar System", QuestionIDs: []string{"q1", "q2"}},
			{ID: "solo", Name: "Inner planets", QuestionIDs: []string{"q1"}},
			{ID: "empty", Name: "Empty"},
		},
		[]domain.Question{
			{
				ID: "q1", TopicID: "planets", Title: "Order by distance from the Sun", Explanation: "Inner planets first.",
				Items: []domain.QuestionItem{
					{ID: "a", Text: "Mercury", CorrectPosition: 1},
					{ID: "b", Text: "Venus", CorrectPosition: 2},
					{ID: "c", Text: "Earth", CorrectPosition: 3},
					{ID: "d", Text: "Mars", CorrectPosition: 4},
				},
			},
			{
				ID: "q2", TopicID: "planets", Title: "Order by size",
				Items: []domain.QuestionItem{
					{ID: "e", Text: "Jupiter", CorrectPosition: 1},
					{ID: "f", Text: "Saturn", CorrectPosition: 2},
				},
			},
		},
	)
}

type editableLoader struct {
	*memory.StaticContentLoader
	mu    sync.Mutex
	items map[string][]domain.QuestionItem
}

func (l *editableLoader) LoadQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	q, err := l.StaticContentLoader.LoadQuestion(ctx, questionID)
	if err != nil {
		return q, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if items, ok := l.items[questionID]; ok {
		q.Items = items
	}
	return q, nil
}

func (l *editableLoader) replaceItems(questionID string, items []domain.QuestionItem) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.items == nil {
		l.items = make(map[string][]domain.QuestionItem)
	}
	l.items[questionID] = items
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.QuizCompleted
}

func (p *recordingPublisher) PublishCompleted(_ context.Context, ev domain.QuizCompleted) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) completed() []domain.QuizCompleted {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.QuizCompleted(nil), p.events...)
}

type failingSessions struct{}

var errDown = errors.New("connection refused")

func (failingSessions) Create(context.Context, domain.QuizSession) error { return errDown }
func (failingSessions) Load(context.Context, string) (domain.QuizSession, error) {
	return domain.QuizSession{}, errDown
}
func (failingSessions) Update(context.Context, string, app.Mutation, *domain.AnswerRecord) (domain.QuizSession, error) {
	return domain.QuizSession{}, errDown
}
func (failingSessions) ListAnswers(context.Context, string) ([]domain.AnswerRecord, error) {
	return nil, errDown
}

func assertSameOrder(t *testing.T, a, b []app.PresentedItem) {
	t.Helper()
	if len(a) != len(b) {
		t.Fatalf("expected %d items, got %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("item order differs at %d: %v vs %v", i, a, b)
		}
	}
}

func assertDecimal(t *testing.T, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}
