package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// QuestionItem is one orderable unit of a question.
type QuestionItem struct {
	ID              string `json:"id" yaml:"id"`
	Text            string `json:"text" yaml:"text"`
	ImageURL        string `json:"imageUrl,omitempty" yaml:"image_url"`
	CorrectPosition int    `json:"correctPosition" yaml:"correct_position"` // 1-indexed
}

// Question is an ordering question; Items carry the grading key.
type Question struct {
	ID          string         `json:"id" yaml:"id"`
	TopicID     string         `json:"topicId" yaml:"topic_id"`
	Title       string         `json:"title" yaml:"title"`
	Description string         `json:"description,omitempty" yaml:"description"`
	Explanation string         `json:"explanation,omitempty" yaml:"explanation"`
	Items       []QuestionItem `json:"items" yaml:"items"`
}

// Topic groups questions in the order they are asked.
type Topic struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	ChapterName string   `json:"chapterName,omitempty" yaml:"chapter_name"`
	QuestionIDs []string `json:"questionIds" yaml:"question_ids"`
}

// FeedbackTier buckets an item's distance from its correct position.
type FeedbackTier string

const (
	TierPerfect  FeedbackTier = "perfect"
	TierAlmost   FeedbackTier = "almost"
	TierClose    FeedbackTier = "close"
	TierNearMiss FeedbackTier = "near_miss"
	TierMiss     FeedbackTier = "miss"
)

// ItemScore is the graded outcome for one submitted item.
type ItemScore struct {
	ItemID            string          `json:"itemId"`
	ItemText          string          `json:"itemText"`
	SubmittedPosition int             `json:"submittedPosition"`
	CorrectPosition   int             `json:"correctPosition"`
	Distance          int             `json:"distance"`
	PointsEarned      decimal.Decimal `json:"pointsEarned"`
	MaxPoints         decimal.Decimal `json:"maxPoints"`
	Tier              FeedbackTier    `json:"tier"`
	Feedback          string          `json:"feedback"`
}

// GradingResult aggregates the item scores of one question attempt.
type GradingResult struct {
	Items            []ItemScore     `json:"items"`
	TotalScore       decimal.Decimal `json:"totalScore"`
	MaxPossibleScore decimal.Decimal `json:"maxPossibleScore"`
	Percentage       decimal.Decimal `json:"percentage"`
}

// QuizSession is one owner's attempt at one topic.
type QuizSession struct {
	ID                   string          `json:"id"`
	OwnerID              string          `json:"ownerId"`
	TopicID              string          `json:"topicId"`
	TopicName            string          `json:"topicName,omitempty"`
	ChapterName          string          `json:"chapterName,omitempty"`
	Nickname             string          `json:"nickname,omitempty"`
	QuestionIDs          []string        `json:"questionIds"`
	CurrentQuestionIndex int             `json:"currentQuestionIndex"`
	TotalQuestions       int             `json:"totalQuestions"`
	TotalScore           decimal.Decimal `json:"totalScore"`
	MaxPossibleScore     decimal.Decimal `json:"maxPossibleScore"`
	Percentage           decimal.Decimal `json:"percentage"`
	Completed            bool            `json:"completed"`
	StartedAt            time.Time       `json:"startedAt"`
	CompletedAt          *time.Time      `json:"completedAt,omitempty"`
}

// AnswerRecord is the audit trail of one graded question within a session.
type AnswerRecord struct {
	SessionID     string        `json:"sessionId"`
	QuestionID    string        `json:"questionId"`
	QuestionIndex int           `json:"questionIndex"`
	QuestionTitle string        `json:"questionTitle"`
	Explanation   string        `json:"explanation,omitempty"`
	Result        GradingResult `json:"result"`
	TimeTaken     int           `json:"timeTaken"` // seconds, client reported
	SubmittedAt   time.Time     `json:"submittedAt"`
}

// Progress is the running snapshot returned after each submission.
type Progress struct {
	CurrentQuestionIndex int             `json:"currentQuestionIndex"`
	TotalQuestions       int             `json:"totalQuestions"`
	RunningScore         decimal.Decimal `json:"runningScore"`
	RunningMaxScore      decimal.Decimal `json:"runningMaxScore"`
	RunningPercentage    decimal.Decimal `json:"runningPercentage"`
	Completed            bool            `json:"isCompleted"`
}

// SummaryTier buckets an aggregate percentage.
type SummaryTier string

const (
	SummaryPerfect      SummaryTier = "perfect"
	SummaryExcellent    SummaryTier = "excellent"
	SummaryGood         SummaryTier = "good"
	SummaryKeepLearning SummaryTier = "keep_learning"
	SummaryPractice     SummaryTier = "practice_more"
)

// ScoreSummary is the human-facing verdict for a percentage.
type ScoreSummary struct {
	Tier          SummaryTier `json:"tier"`
	Message       string      `json:"message"`
	Encouragement string      `json:"encouragement"`
}

// QuizCompleted is emitted once a session reaches its last question.
type QuizCompleted struct {
	SessionID        string          `json:"sessionId"`
	OwnerID          string          `json:"ownerId"`
	TopicID          string          `json:"topicId"`
	TotalScore       decimal.Decimal `json:"totalScore"`
	MaxPossibleScore decimal.Decimal `json:"maxPossibleScore"`
	Percentage       decimal.Decimal `json:"percentage"`
	CompletedAt      time.Time       `json:"completedAt"`
}

// QuestionStats aggregates every graded attempt at one question.
// Percentages and distances are rounded to 2 decimals.
type QuestionStats struct {
	QuestionID    string          `json:"questionId"`
	TotalAttempts int             `json:"totalAttempts"`
	AverageScore  decimal.Decimal `json:"averageScore"`
	HighestScore  decimal.Decimal `json:"highestScore"`
	LowestScore   decimal.Decimal `json:"lowestScore"`
	PerfectScores int             `json:"perfectScores"`
	Items         []ItemStats     `json:"items"`
}

// ItemStats shows how often one item lands in place, most misplaced first.
type ItemStats struct {
	ItemID          string          `json:"itemId"`
	ItemText        string          `json:"itemText"`
	CorrectPosition int             `json:"correctPosition"`
	AverageDistance decimal.Decimal `json:"averageDistance"`
	CorrectCount    int             `json:"correctCount"`
	TotalCount      int             `json:"totalCount"`
}
