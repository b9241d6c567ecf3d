package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"ordering-quiz-service/internal/domain"
	"ordering-quiz-service/internal/ledger"
	"ordering-quiz-service/internal/scoring"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ContentRepository resolves topics and questions from the content store.
type ContentRepository interface {
	// GetTopic returns the topic with its ordered question IDs.
	GetTopic(ctx context.Context, topicID string) (domain.Topic, error)
	// GetQuestion returns question text for presentation; it may be served from a cache.
	GetQuestion(ctx context.Context, questionID string) (domain.Question, error)
	// QuestionItems returns the authoritative items, including correct positions.
	// Implementations must not serve this from a cache.
	QuestionItems(ctx context.Context, questionID string) ([]domain.QuestionItem, error)
}

// Mutation computes the next session value from the stored one.
type Mutation func(domain.QuizSession) (domain.QuizSession, error)

// SessionRepository abstracts how quiz sessions are stored (in-memory, Redis, Postgres).
type SessionRepository interface {
	Create(ctx context.Context, session domain.QuizSession) error
	// Load returns domain.ErrSessionNotFound when the session does not exist.
	Load(ctx context.Context, sessionID string) (domain.QuizSession, error)
	// Update applies mutate to the stored session and, when record is non-nil,
	// appends it to the session's answers. Both happen atomically or not at all,
	// and concurrent updates of one session are serialized.
	Update(ctx context.Context, sessionID string, mutate Mutation, record *domain.AnswerRecord) (domain.QuizSession, error)
	// ListAnswers returns the audit records ordered by question index.
	ListAnswers(ctx context.Context, sessionID string) ([]domain.AnswerRecord, error)
}

// StatsRepository is implemented by session stores that can aggregate answer
// records across sessions.
type StatsRepository interface {
	QuestionStats(ctx context.Context, questionID string) (domain.QuestionStats, error)
}

// Recorder receives service measurements.
type Recorder interface {
	SessionStarted(topicID string)
	QuestionGraded(topicID string, percentage float64)
	SubmissionRejected(reason string)
	QuizCompleted(topicID string)
}

// EventPublisher announces finished quizzes.
type EventPublisher interface {
	PublishCompleted(ctx context.Context, ev domain.QuizCompleted) error
}

// QuizService runs quiz attempts: start, serve, grade-and-advance, results.
type QuizService struct {
	sessions SessionRepository
	content  ContentRepository

	now         func() time.Time
	newID       func() string
	shuffleSalt int64
	timeout     time.Duration
	logger      *slog.Logger
	metrics     Recorder
	events      EventPublisher
}

// Option configures a QuizService.
type Option func(*QuizService)

// WithClock overrides time.Now, mainly for deterministic tests.
func WithClock(now func() time.Time) Option { return func(s *QuizService) { s.now = now } }

// WithIDGenerator overrides the session ID generator.
func WithIDGenerator(newID func() string) Option { return func(s *QuizService) { s.newID = newID } }

// WithShuffleSeed salts the per-question shuffle. Every instance serving the
// same sessions must use the same seed; the default is 0.
func WithShuffleSeed(seed int64) Option { return func(s *QuizService) { s.shuffleSalt = seed } }

// WithStorageTimeout bounds every operation's storage calls.
func WithStorageTimeout(d time.Duration) Option { return func(s *QuizService) { s.timeout = d } }

func WithLogger(logger *slog.Logger) Option { return func(s *QuizService) { s.logger = logger } }

func WithMetrics(r Recorder) Option { return func(s *QuizService) { s.metrics = r } }

func WithEvents(p EventPublisher) Option { return func(s *QuizService) { s.events = p } }

func NewQuizService(sessions SessionRepository, content ContentRepository, opts ...Option) *QuizService {
	s := &QuizService{
		sessions:    sessions,
		content:     content,
		now:         time.Now,
		newID:       uuid.NewString,
		timeout:     3 * time.Second,
		logger:      slog.Default(),
		metrics:     nopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartedQuiz is returned by Start.
type StartedQuiz struct {
	SessionID            string
	TopicID              string
	TopicName            string
	ChapterName          string
	TotalQuestions       int
	CurrentQuestionIndex int
}

// PresentedItem is an item as shown to the student; it never carries a position.
type PresentedItem struct {
	ID       string
	Text     string
	ImageURL string
}

// PresentedQuestion is a question with its items shuffled.
type PresentedQuestion struct {
	ID          string
	Title       string
	Description string
	Items       []PresentedItem
}

// CurrentQuestion is the view of a session's next question. Question is nil
// once the session is completed.
type CurrentQuestion struct {
	SessionID      string
	TopicName      string
	ChapterName    string
	Completed      bool
	QuestionIndex  int
	TotalQuestions int
	IsLastQuestion bool
	Question       *PresentedQuestion
}

// Submission is a student's ordering for the current question.
type Submission struct {
	Order     []string
	TimeTaken int // seconds
}

// SubmitOutcome is the grading of one question plus the updated progress.
type SubmitOutcome struct {
	QuestionID    string
	QuestionTitle string
	Explanation   string
	Result        domain.GradingResult
	Progress      domain.Progress
}

// QuizResults is the running or final result of a session.
type QuizResults struct {
	SessionID        string
	TopicID          string
	TopicName        string
	ChapterName      string
	Nickname         string
	TotalScore       decimal.Decimal
	MaxPossibleScore decimal.Decimal
	Percentage       decimal.Decimal
	TotalQuestions   int
	Completed        bool
	StartedAt        time.Time
	CompletedAt      *time.Time
	Summary          domain.ScoreSummary
	Answers          []domain.AnswerRecord
}

// Start opens a new attempt at topicID owned by ownerID.
func (s *QuizService) Start(ctx context.Context, topicID, ownerID, nickname string) (StartedQuiz, error) {
	if strings.TrimSpace(topicID) == "" {
		return StartedQuiz{}, fmt.Errorf("%w: topic id is required", domain.ErrInvalidRequest)
	}
	if strings.TrimSpace(ownerID) == "" {
		return StartedQuiz{}, fmt.Errorf("%w: owner id is required", domain.ErrInvalidRequest)
	}

	ctx, cancel := s.storageContext(ctx)
	defer cancel()

	topic, err := s.content.GetTopic(ctx, topicID)
	if err != nil {
		return StartedQuiz{}, storageError("load topic", err)
	}
	session, err := ledger.Open(s.newID(), ownerID, topic, strings.TrimSpace(nickname), s.now())
	if err != nil {
		return StartedQuiz{}, err
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return StartedQuiz{}, storageError("create session", err)
	}

	s.metrics.SessionStarted(topic.ID)
	s.logger.InfoContext(ctx, "quiz started",
		"session_id", session.ID,
		"topic_id", topic.ID,
		"total_questions", session.TotalQuestions)

	return StartedQuiz{
		SessionID:            session.ID,
		TopicID:              topic.ID,
		TopicName:            topic.Name,
		ChapterName:          topic.ChapterName,
		TotalQuestions:       session.TotalQuestions,
		CurrentQuestionIndex: session.CurrentQuestionIndex,
	}, nil
}

// CurrentQuestion returns the session's next question with shuffled items.
// The shuffle is stable for a given session and question, so repeated reads
// return identical views on any instance. Items come from the same
// authoritative source grading uses, so served IDs always grade.
func (s *QuizService) CurrentQuestion(ctx context.Context, sessionID, ownerID string) (CurrentQuestion, error) {
	ctx, cancel := s.storageContext(ctx)
	defer cancel()

	session, err := s.loadOwned(ctx, sessionID, ownerID)
	if err != nil {
		return CurrentQuestion{}, err
	}
	view := CurrentQuestion{
		SessionID:      session.ID,
		TopicName:      session.TopicName,
		ChapterName:    session.ChapterName,
		Completed:      session.Completed,
		QuestionIndex:  session.CurrentQuestionIndex,
		TotalQuestions: session.TotalQuestions,
	}
	if session.Completed {
		return view, nil
	}

	questionID, ok := ledger.CurrentQuestionID(session)
	if !ok {
		return CurrentQuestion{}, fmt.Errorf("%w: session %s index %d", domain.ErrQuestionNotFound, session.ID, session.CurrentQuestionIndex)
	}
	question, err := s.content.GetQuestion(ctx, questionID)
	if err != nil {
		return CurrentQuestion{}, storageError("load question", err)
	}
	items, err := s.content.QuestionItems(ctx, questionID)
	if err != nil {
		return CurrentQuestion{}, storageError("load question items", err)
	}

	rnd := shuffleSource(s.shuffleSalt, session.ID, session.CurrentQuestionIndex)
	view.IsLastQuestion = session.CurrentQuestionIndex == session.TotalQuestions-1
	view.Question = &PresentedQuestion{
		ID:          question.ID,
		Title:       question.Title,
		Description: question.Description,
		Items:       ShuffleItems(items, rnd),
	}
	return view, nil
}

// SubmitAndAdvance grades the current question and moves the session on.
// Each question index commits at most once; a repeated or racing submission
// fails with domain.ErrAlreadyCompleted and leaves totals unchanged.
func (s *QuizService) SubmitAndAdvance(ctx context.Context, sessionID, ownerID string, sub Submission) (SubmitOutcome, error) {
	if sub.TimeTaken < 0 {
		return SubmitOutcome{}, fmt.Errorf("%w: time taken must not be negative", domain.ErrInvalidRequest)
	}

	ctx, cancel := s.storageContext(ctx)
	defer cancel()

	session, err := s.loadOwned(ctx, sessionID, ownerID)
	if err != nil {
		return SubmitOutcome{}, err
	}
	if session.Completed {
		s.metrics.SubmissionRejected("completed")
		return SubmitOutcome{}, domain.ErrAlreadyCompleted
	}
	index := session.CurrentQuestionIndex
	questionID, ok := ledger.CurrentQuestionID(session)
	if !ok {
		return SubmitOutcome{}, fmt.Errorf("%w: session %s index %d", domain.ErrQuestionNotFound, session.ID, index)
	}

	items, err := s.content.QuestionItems(ctx, questionID)
	if err != nil {
		return SubmitOutcome{}, storageError("load question items", err)
	}
	result, err := scoring.GradeSubmission(items, sub.Order)
	if err != nil {
		s.metrics.SubmissionRejected("invalid")
		return SubmitOutcome{}, err
	}
	question, err := s.content.GetQuestion(ctx, questionID)
	if err != nil {
		return SubmitOutcome{}, storageError("load question", err)
	}

	now := s.now()
	record := &domain.AnswerRecord{
		SessionID:     session.ID,
		QuestionID:    questionID,
		QuestionIndex: index,
		QuestionTitle: question.Title,
		Explanation:   question.Explanation,
		Result:        result,
		TimeTaken:     sub.TimeTaken,
		SubmittedAt:   now,
	}
	updated, err := s.sessions.Update(ctx, session.ID, func(current domain.QuizSession) (domain.QuizSession, error) {
		if !ledger.OwnedBy(current, ownerID) {
			return current, domain.ErrSessionNotFound
		}
		return ledger.Advance(current, ledger.Graded{QuestionIndex: index, Result: result}, now)
	}, record)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyCompleted) {
			s.metrics.SubmissionRejected("duplicate")
		}
		return SubmitOutcome{}, storageError("commit answer", err)
	}

	s.metrics.QuestionGraded(updated.TopicID, result.Percentage.InexactFloat64())
	s.logger.InfoContext(ctx, "question graded",
		"session_id", updated.ID,
		"question_id", questionID,
		"question_index", index,
		"score", result.TotalScore.String(),
		"max_score", result.MaxPossibleScore.String())

	if updated.Completed {
		s.completed(ctx, updated)
	}

	return SubmitOutcome{
		QuestionID:    questionID,
		QuestionTitle: question.Title,
		Explanation:   question.Explanation,
		Result:        result,
		Progress:      ledger.ProgressOf(updated),
	}, nil
}

// Results returns running totals and every graded question so far.
func (s *QuizService) Results(ctx context.Context, sessionID, ownerID string) (QuizResults, error) {
	ctx, cancel := s.storageContext(ctx)
	defer cancel()

	session, err := s.loadOwned(ctx, sessionID, ownerID)
	if err != nil {
		return QuizResults{}, err
	}
	answers, err := s.sessions.ListAnswers(ctx, session.ID)
	if err != nil {
		return QuizResults{}, storageError("list answers", err)
	}
	sort.SliceStable(answers, func(i, j int) bool {
		return answers[i].QuestionIndex < answers[j].QuestionIndex
	})

	return QuizResults{
		SessionID:        session.ID,
		TopicID:          session.TopicID,
		TopicName:        session.TopicName,
		ChapterName:      session.ChapterName,
		Nickname:         session.Nickname,
		TotalScore:       session.TotalScore,
		MaxPossibleScore: session.MaxPossibleScore,
		Percentage:       session.Percentage,
		TotalQuestions:   session.TotalQuestions,
		Completed:        session.Completed,
		StartedAt:        session.StartedAt,
		CompletedAt:      session.CompletedAt,
		Summary:          scoring.Summarize(session.Percentage),
		Answers:          answers,
	}, nil
}

// QuestionStats aggregates every graded attempt at questionID across sessions.
// It fails with domain.ErrStatsUnavailable when the session store cannot
// query across sessions.
func (s *QuizService) QuestionStats(ctx context.Context, questionID string) (domain.QuestionStats, error) {
	if strings.TrimSpace(questionID) == "" {
		return domain.QuestionStats{}, fmt.Errorf("%w: question id is required", domain.ErrInvalidRequest)
	}
	stats, ok := s.sessions.(StatsRepository)
	if !ok {
		return domain.QuestionStats{}, domain.ErrStatsUnavailable
	}

	ctx, cancel := s.storageContext(ctx)
	defer cancel()

	if _, err := s.content.GetQuestion(ctx, questionID); err != nil {
		return domain.QuestionStats{}, storageError("load question", err)
	}
	result, err := stats.QuestionStats(ctx, questionID)
	if err != nil {
		return domain.QuestionStats{}, storageError("question stats", err)
	}
	return result, nil
}

// loadOwned hides sessions of other owners behind ErrSessionNotFound.
func (s *QuizService) loadOwned(ctx context.Context, sessionID, ownerID string) (domain.QuizSession, error) {
	if sessionID == "" || ownerID == "" {
		return domain.QuizSession{}, domain.ErrSessionNotFound
	}
	session, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return domain.QuizSession{}, storageError("load session", err)
	}
	if !ledger.OwnedBy(session, ownerID) {
		return domain.QuizSession{}, domain.ErrSessionNotFound
	}
	return session, nil
}

func (s *QuizService) completed(ctx context.Context, session domain.QuizSession) {
	s.metrics.QuizCompleted(session.TopicID)
	s.logger.InfoContext(ctx, "quiz completed",
		"session_id", session.ID,
		"topic_id", session.TopicID,
		"percentage", session.Percentage.StringFixed(2))

	if s.events == nil {
		return
	}
	ev := domain.QuizCompleted{
		SessionID:        session.ID,
		OwnerID:          session.OwnerID,
		TopicID:          session.TopicID,
		TotalScore:       session.TotalScore,
		MaxPossibleScore: session.MaxPossibleScore,
		Percentage:       session.Percentage,
	}
	if session.CompletedAt != nil {
		ev.CompletedAt = *session.CompletedAt
	}
	// the answer is already committed; a lost event must not fail the submission
	if err := s.events.PublishCompleted(ctx, ev); err != nil {
		s.logger.WarnContext(ctx, "publish quiz completed failed", "session_id", session.ID, "error", err)
	}
}

func (s *QuizService) storageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// storageError passes domain errors through and marks everything else retryable.
func storageError(op string, err error) error {
	if domain.IsDomainError(err) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStorageUnavailable, err)
}

type nopRecorder struct{}

func (nopRecorder) SessionStarted(string)          {}
func (nopRecorder) QuestionGraded(string, float64) {}
func (nopRecorder) SubmissionRejected(string)      {}
func (nopRecorder) QuizCompleted(string)           {}
