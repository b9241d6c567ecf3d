package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ordering-quiz-service/internal/app"
	"ordering-quiz-service/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

// SessionStore persists sessions and their answer audit trail with bun.
// Update locks the session row (SELECT ... FOR UPDATE) so the ledger
// transition and the answer insert commit together.
type SessionStore struct {
	db *bun.DB
}

func NewSessionStore(db *bun.DB) *SessionStore {
	return &SessionStore{db: db}
}

type sessionRow struct {
	bun.BaseModel `bun:"table:quiz_sessions"`

	ID                   string          `bun:"id,pk"`
	OwnerID              string          `bun:"owner_id"`
	TopicID              string          `bun:"topic_id"`
	TopicName            string          `bun:"topic_name"`
	ChapterName          string          `bun:"chapter_name"`
	Nickname             string          `bun:"nickname"`
	QuestionIDs          []string        `bun:"question_ids,array"`
	CurrentQuestionIndex int             `bun:"current_question_index"`
	TotalQuestions       int             `bun:"total_questions"`
	TotalScore           decimal.Decimal `bun:"total_score,type:numeric"`
	MaxPossibleScore     decimal.Decimal `bun:"max_possible_score,type:numeric"`
	Percentage           decimal.Decimal `bun:"percentage,type:numeric"`
	Completed            bool            `bun:"is_completed"`
	StartedAt            time.Time       `bun:"started_at"`
	CompletedAt          *time.Time      `bun:"completed_at"`
}

type answerRow struct {
	bun.BaseModel `bun:"table:quiz_answers"`

	ID            int64           `bun:"id,pk,autoincrement"`
	SessionID     string          `bun:"session_id"`
	QuestionID    string          `bun:"question_id"`
	QuestionIndex int             `bun:"question_index"`
	QuestionTitle string          `bun:"question_title"`
	Explanation   string          `bun:"explanation"`
	Score         decimal.Decimal `bun:"score,type:numeric"`
	MaxScore      decimal.Decimal `bun:"max_score,type:numeric"`
	Percentage    decimal.Decimal `bun:"percentage,type:numeric"`
	TimeTaken     int             `bun:"time_taken"`
	SubmittedAt   time.Time       `bun:"submitted_at"`

	Items []answerItemRow `bun:"rel:has-many,join:id=answer_id"`
}

type answerItemRow struct {
	bun.BaseModel `bun:"table:quiz_answer_items"`

	ID                int64           `bun:"id,pk,autoincrement"`
	AnswerID          int64           `bun:"answer_id"`
	ItemID            string          `bun:"item_id"`
	ItemText          string          `bun:"item_text"`
	SubmittedPosition int             `bun:"submitted_position"`
	CorrectPosition   int             `bun:"correct_position"`
	Distance          int             `bun:"distance"`
	PointsEarned      decimal.Decimal `bun:"points_earned,type:numeric"`
	MaxPoints         decimal.Decimal `bun:"max_points,type:numeric"`
	Tier              string          `bun:"tier"`
	Feedback          string          `bun:"feedback"`
}

func (s *SessionStore) Create(ctx context.Context, session domain.QuizSession) error {
	row := toSessionRow(session)
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *SessionStore) Load(ctx context.Context, sessionID string) (domain.QuizSession, error) {
	var row sessionRow
	err := s.db.NewSelect().Model(&row).Where("id = ?", sessionID).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.QuizSession{}, domain.ErrSessionNotFound
		}
		return domain.QuizSession{}, fmt.Errorf("select session: %w", err)
	}
	return row.toDomain(), nil
}

func (s *SessionStore) Update(ctx context.Context, sessionID string, mutate app.Mutation, record *domain.AnswerRecord) (domain.QuizSession, error) {
	var next domain.QuizSession
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var row sessionRow
		err := tx.NewSelect().Model(&row).Where("id = ?", sessionID).For("UPDATE").Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrSessionNotFound
			}
			return fmt.Errorf("lock session: %w", err)
		}

		next, err = mutate(row.toDomain())
		if err != nil {
			return err
		}

		updated := toSessionRow(next)
		if _, err := tx.NewUpdate().Model(&updated).WherePK().Exec(ctx); err != nil {
			return fmt.Errorf("update session: %w", err)
		}
		if record == nil {
			return nil
		}

		answer := toAnswerRow(*record)
		if _, err := tx.NewInsert().Model(&answer).Exec(ctx); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: question %d already recorded", domain.ErrAlreadyCompleted, record.QuestionIndex)
			}
			return fmt.Errorf("insert answer: %w", err)
		}
		if len(answer.Items) == 0 {
			return nil
		}
		for i := range answer.Items {
			answer.Items[i].AnswerID = answer.ID
		}
		if _, err := tx.NewInsert().Model(&answer.Items).Exec(ctx); err != nil {
			return fmt.Errorf("insert answer items: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.QuizSession{}, err
	}
	return next, nil
}

func (s *SessionStore) ListAnswers(ctx context.Context, sessionID string) ([]domain.AnswerRecord, error) {
	var rows []answerRow
	err := s.db.NewSelect().
		Model(&rows).
		Relation("Items", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("id ASC")
		}).
		Where("session_id = ?", sessionID).
		Order("question_index ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select answers: %w", err)
	}
	answers := make([]domain.AnswerRecord, len(rows))
	for i, row := range rows {
		answers[i] = row.toDomain()
	}
	return answers, nil
}

type questionOverviewRow struct {
	TotalAttempts int             `bun:"total_attempts"`
	AverageScore  decimal.Decimal `bun:"average_score"`
	HighestScore  decimal.Decimal `bun:"highest_score"`
	LowestScore   decimal.Decimal `bun:"lowest_score"`
	PerfectScores int             `bun:"perfect_scores"`
}

type itemStatsRow struct {
	ItemID          string          `bun:"item_id"`
	ItemText        string          `bun:"item_text"`
	CorrectPosition int             `bun:"correct_position"`
	AvgDistance     decimal.Decimal `bun:"avg_distance"`
	CorrectCount    int             `bun:"correct_count"`
	TotalCount      int             `bun:"total_count"`
}

// QuestionStats aggregates every answer recorded for questionID, with items
// ordered most misplaced first.
func (s *SessionStore) QuestionStats(ctx context.Context, questionID string) (domain.QuestionStats, error) {
	var overview questionOverviewRow
	err := s.db.NewSelect().
		TableExpr("quiz_answers").
		ColumnExpr("COUNT(*) AS total_attempts").
		ColumnExpr("COALESCE(ROUND(AVG(percentage), 2), 0) AS average_score").
		ColumnExpr("COALESCE(MAX(percentage), 0) AS highest_score").
		ColumnExpr("COALESCE(MIN(percentage), 0) AS lowest_score").
		ColumnExpr("COUNT(*) FILTER (WHERE percentage = 100) AS perfect_scores").
		Where("question_id = ?", questionID).
		Scan(ctx, &overview)
	if err != nil {
		return domain.QuestionStats{}, fmt.Errorf("select question overview: %w", err)
	}

	var items []itemStatsRow
	err = s.db.NewSelect().
		TableExpr("quiz_answer_items AS i").
		Join("JOIN quiz_answers AS a ON a.id = i.answer_id").
		ColumnExpr("i.item_id").
		ColumnExpr("MAX(i.item_text) AS item_text").
		ColumnExpr("i.correct_position").
		ColumnExpr("ROUND(AVG(i.distance), 2) AS avg_distance").
		ColumnExpr("COUNT(*) FILTER (WHERE i.distance = 0) AS correct_count").
		ColumnExpr("COUNT(*) AS total_count").
		Where("a.question_id = ?", questionID).
		GroupExpr("i.item_id, i.correct_position").
		OrderExpr("avg_distance DESC, i.correct_position ASC, i.item_id ASC").
		Scan(ctx, &items)
	if err != nil {
		return domain.QuestionStats{}, fmt.Errorf("select item stats: %w", err)
	}

	stats := domain.QuestionStats{
		QuestionID:    questionID,
		TotalAttempts: overview.TotalAttempts,
		AverageScore:  overview.AverageScore,
		HighestScore:  overview.HighestScore,
		LowestScore:   overview.LowestScore,
		PerfectScores: overview.PerfectScores,
		Items:         make([]domain.ItemStats, len(items)),
	}
	for i, row := range items {
		stats.Items[i] = domain.ItemStats{
			ItemID:          row.ItemID,
			ItemText:        row.ItemText,
			CorrectPosition: row.CorrectPosition,
			AverageDistance: row.AvgDistance,
			CorrectCount:    row.CorrectCount,
			TotalCount:      row.TotalCount,
		}
	}
	return stats, nil
}

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == "23505"
}

func toSessionRow(s domain.QuizSession) sessionRow {
	return sessionRow{
		ID:                   s.ID,
		OwnerID:              s.OwnerID,
		TopicID:              s.TopicID,
		TopicName:            s.TopicName,
		ChapterName:          s.ChapterName,
		Nickname:             s.Nickname,
		QuestionIDs:          s.QuestionIDs,
		CurrentQuestionIndex: s.CurrentQuestionIndex,
		TotalQuestions:       s.TotalQuestions,
		TotalScore:           s.TotalScore,
		MaxPossibleScore:     s.MaxPossibleScore,
		Percentage:           s.Percentage,
		Completed:            s.Completed,
		StartedAt:            s.StartedAt,
		CompletedAt:          s.CompletedAt,
	}
}

func (r sessionRow) toDomain() domain.QuizSession {
	return domain.QuizSession{
		ID:                   r.ID,
		OwnerID:              r.OwnerID,
		TopicID:              r.TopicID,
		TopicName:            r.TopicName,
		ChapterName:          r.ChapterName,
		Nickname:             r.Nickname,
		QuestionIDs:          r.QuestionIDs,
		CurrentQuestionIndex: r.CurrentQuestionIndex,
		TotalQuestions:       r.TotalQuestions,
		TotalScore:           r.TotalScore,
		MaxPossibleScore:     r.MaxPossibleScore,
		Percentage:           r.Percentage,
		Completed:            r.Completed,
		StartedAt:            r.StartedAt,
		CompletedAt:          r.CompletedAt,
	}
}

func toAnswerRow(a domain.AnswerRecord) answerRow {
	row := answerRow{
		SessionID:     a.SessionID,
		QuestionID:    a.QuestionID,
		QuestionIndex: a.QuestionIndex,
		QuestionTitle: a.QuestionTitle,
		Explanation:   a.Explanation,
		Score:         a.Result.TotalScore,
		MaxScore:      a.Result.MaxPossibleScore,
		Percentage:    a.Result.Percentage,
		TimeTaken:     a.TimeTaken,
		SubmittedAt:   a.SubmittedAt,
	}
	for _, item := range a.Result.Items {
		row.Items = append(row.Items, answerItemRow{
			ItemID:            item.ItemID,
			ItemText:          item.ItemText,
			SubmittedPosition: item.SubmittedPosition,
			CorrectPosition:   item.CorrectPosition,
			Distance:          item.Distance,
			PointsEarned:      item.PointsEarned,
			MaxPoints:         item.MaxPoints,
			Tier:              string(item.Tier),
			Feedback:          item.Feedback,
		})
	}
	return row
}

func (r answerRow) toDomain() domain.AnswerRecord {
	record := domain.AnswerRecord{
		SessionID:     r.SessionID,
		QuestionID:    r.QuestionID,
		QuestionIndex: r.QuestionIndex,
		QuestionTitle: r.QuestionTitle,
		Explanation:   r.Explanation,
		TimeTaken:     r.TimeTaken,
		SubmittedAt:   r.SubmittedAt,
		Result: domain.GradingResult{
			TotalScore:       r.Score,
			MaxPossibleScore: r.MaxScore,
			Percentage:       r.Percentage,
		},
	}
	for _, item := range r.Items {
		record.Result.Items = append(record.Result.Items, domain.ItemScore{
			ItemID:            item.ItemID,
			ItemText:          item.ItemText,
			SubmittedPosition: item.SubmittedPosition,
			CorrectPosition:   item.CorrectPosition,
			Distance:          item.Distance,
			PointsEarned:      item.PointsEarned,
			MaxPoints:         item.MaxPoints,
			Tier:              domain.FeedbackTier(item.Tier),
			Feedback:          item.Feedback,
		})
	}
	return record
}
