package http

import (
	"time"

	"ordering-quiz-service/internal/app"
	"ordering-quiz-service/internal/domain"

	"github.com/shopspring/decimal"
)

// score is a JSON number with exactly two decimals, e.g. 87.50.
type score struct{ decimal.Decimal }

func (s score) MarshalJSON() ([]byte, error) {
	return []byte(s.StringFixed(2)), nil
}

type startRequest struct {
	TopicID          string `json:"topic_id" validate:"required,max=128"`
	StudentNickname  string `json:"student_nickname" validate:"max=64"`
	StudentSessionID string `json:"student_session_id" validate:"omitempty,max=128"`
}

type submitRequest struct {
	SubmittedOrder []string `json:"submitted_order" validate:"required,min=1,dive,required"`
	TimeTaken      int      `json:"time_taken" validate:"gte=0"`
}

type startResponse struct {
	SessionID            string `json:"sessionId"`
	TopicID              string `json:"topicId"`
	TopicName            string `json:"topicName"`
	ChapterName          string `json:"chapterName,omitempty"`
	TotalQuestions       int    `json:"totalQuestions"`
	CurrentQuestionIndex int    `json:"currentQuestionIndex"`
}

type itemView struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	ImageURL string `json:"imageUrl,omitempty"`
}

type questionView struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Items       []itemView `json:"items"`
}

type currentResponse struct {
	SessionID      string        `json:"sessionId"`
	TopicName      string        `json:"topicName"`
	ChapterName    string        `json:"chapterName,omitempty"`
	Completed      bool          `json:"isCompleted"`
	QuestionIndex  int           `json:"currentQuestionIndex"`
	TotalQuestions int           `json:"totalQuestions"`
	IsLastQuestion bool          `json:"isLastQuestion"`
	Question       *questionView `json:"question,omitempty"`
}

type itemScoreView struct {
	ItemID            string `json:"itemId"`
	ItemText          string `json:"itemText"`
	SubmittedPosition int    `json:"submittedPosition"`
	CorrectPosition   int    `json:"correctPosition"`
	Distance          int    `json:"distance"`
	PointsEarned      score  `json:"pointsEarned"`
	MaxPoints         score  `json:"maxPoints"`
	Tier              string `json:"tier"`
	Feedback          string `json:"feedback"`
}

type gradingView struct {
	Items            []itemScoreView `json:"items"`
	TotalScore       score           `json:"totalScore"`
	MaxPossibleScore score           `json:"maxPossibleScore"`
	Percentage       score           `json:"percentage"`
}

type progressView struct {
	CurrentQuestionIndex int   `json:"currentQuestionIndex"`
	TotalQuestions       int   `json:"totalQuestions"`
	RunningScore         score `json:"runningScore"`
	RunningMaxScore      score `json:"runningMaxScore"`
	RunningPercentage    score `json:"runningPercentage"`
	Completed            bool  `json:"isCompleted"`
}

type submitResponse struct {
	QuestionID    string       `json:"questionId"`
	QuestionTitle string       `json:"questionTitle"`
	Explanation   string       `json:"explanation,omitempty"`
	Result        gradingView  `json:"result"`
	Progress      progressView `json:"progress"`
}

type answerView struct {
	QuestionID    string      `json:"questionId"`
	QuestionIndex int         `json:"questionIndex"`
	QuestionTitle string      `json:"questionTitle"`
	Explanation   string      `json:"explanation,omitempty"`
	Result        gradingView `json:"result"`
	TimeTaken     int         `json:"timeTaken"`
	SubmittedAt   time.Time   `json:"submittedAt"`
}

type resultsResponse struct {
	SessionID        string              `json:"sessionId"`
	TopicID          string              `json:"topicId"`
	TopicName        string              `json:"topicName"`
	ChapterName      string              `json:"chapterName,omitempty"`
	Nickname         string              `json:"nickname,omitempty"`
	TotalScore       score               `json:"totalScore"`
	MaxPossibleScore score               `json:"maxPossibleScore"`
	Percentage       score               `json:"percentage"`
	TotalQuestions   int                 `json:"totalQuestions"`
	Completed        bool                `json:"isCompleted"`
	StartedAt        time.Time           `json:"startedAt"`
	CompletedAt      *time.Time          `json:"completedAt,omitempty"`
	Summary          domain.ScoreSummary `json:"summary"`
	Questions        []answerView        `json:"questions"`
}

type itemStatsView struct {
	ItemID          string `json:"itemId"`
	ItemText        string `json:"itemText"`
	CorrectPosition int    `json:"correctPosition"`
	AverageDistance score  `json:"averageDistance"`
	CorrectCount    int    `json:"correctCount"`
	TotalCount      int    `json:"totalCount"`
}

type statsResponse struct {
	QuestionID    string          `json:"questionId"`
	TotalAttempts int             `json:"totalAttempts"`
	AverageScore  score           `json:"averageScore"`
	HighestScore  score           `json:"highestScore"`
	LowestScore   score           `json:"lowestScore"`
	PerfectScores int             `json:"perfectScores"`
	Items         []itemStatsView `json:"items"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func toStartResponse(s app.StartedQuiz) startResponse {
	return startResponse{
		SessionID:            s.SessionID,
		TopicID:              s.TopicID,
		TopicName:            s.TopicName,
		ChapterName:          s.ChapterName,
		TotalQuestions:       s.TotalQuestions,
		CurrentQuestionIndex: s.CurrentQuestionIndex,
	}
}

func toCurrentResponse(c app.CurrentQuestion) currentResponse {
	resp := currentResponse{
		SessionID:      c.SessionID,
		TopicName:      c.TopicName,
		ChapterName:    c.ChapterName,
		Completed:      c.Completed,
		QuestionIndex:  c.QuestionIndex,
		TotalQuestions: c.TotalQuestions,
		IsLastQuestion: c.IsLastQuestion,
	}
	if c.Question != nil {
		q := &questionView{
			ID:          c.Question.ID,
			Title:       c.Question.Title,
			Description: c.Question.Description,
			Items:       make([]itemView, len(c.Question.Items)),
		}
		for i, item := range c.Question.Items {
			q.Items[i] = itemView{ID: item.ID, Text: item.Text, ImageURL: item.ImageURL}
		}
		resp.Question = q
	}
	return resp
}

func toGradingView(r domain.GradingResult) gradingView {
	view := gradingView{
		Items:            make([]itemScoreView, len(r.Items)),
		TotalScore:       score{r.TotalScore},
		MaxPossibleScore: score{r.MaxPossibleScore},
		Percentage:       score{r.Percentage},
	}
	for i, item := range r.Items {
		view.Items[i] = itemScoreView{
			ItemID:            item.ItemID,
			ItemText:          item.ItemText,
			SubmittedPosition: item.SubmittedPosition,
			CorrectPosition:   item.CorrectPosition,
			Distance:          item.Distance,
			PointsEarned:      score{item.PointsEarned},
			MaxPoints:         score{item.MaxPoints},
			Tier:              string(item.Tier),
			Feedback:          item.Feedback,
		}
	}
	return view
}

func toSubmitResponse(o app.SubmitOutcome) submitResponse {
	return submitResponse{
		QuestionID:    o.QuestionID,
		QuestionTitle: o.QuestionTitle,
		Explanation:   o.Explanation,
		Result:        toGradingView(o.Result),
		Progress: progressView{
			CurrentQuestionIndex: o.Progress.CurrentQuestionIndex,
			TotalQuestions:       o.Progress.TotalQuestions,
			RunningScore:         score{o.Progress.RunningScore},
			RunningMaxScore:      score{o.Progress.RunningMaxScore},
			RunningPercentage:    score{o.Progress.RunningPercentage},
			Completed:            o.Progress.Completed,
		},
	}
}

func toResultsResponse(r app.QuizResults) resultsResponse {
	resp := resultsResponse{
		SessionID:        r.SessionID,
		TopicID:          r.TopicID,
		TopicName:        r.TopicName,
		ChapterName:      r.ChapterName,
		Nickname:         r.Nickname,
		TotalScore:       score{r.TotalScore},
		MaxPossibleScore: score{r.MaxPossibleScore},
		Percentage:       score{r.Percentage},
		TotalQuestions:   r.TotalQuestions,
		Completed:        r.Completed,
		StartedAt:        r.StartedAt,
		CompletedAt:      r.CompletedAt,
		Summary:          r.Summary,
		Questions:        make([]answerView, len(r.Answers)),
	}
	for i, a := range r.Answers {
		resp.Questions[i] = answerView{
			QuestionID:    a.QuestionID,
			QuestionIndex: a.QuestionIndex,
			QuestionTitle: a.QuestionTitle,
			Explanation:   a.Explanation,
			Result:        toGradingView(a.Result),
			TimeTaken:     a.TimeTaken,
			SubmittedAt:   a.SubmittedAt,
		}
	}
	return resp
}

func toStatsResponse(st domain.QuestionStats) statsResponse {
	resp := statsResponse{
		QuestionID:    st.QuestionID,
		TotalAttempts: st.TotalAttempts,
		AverageScore:  score{st.AverageScore},
		HighestScore:  score{st.HighestScore},
		LowestScore:   score{st.LowestScore},
		PerfectScores: st.PerfectScores,
		Items:         make([]itemStatsView, len(st.Items)),
	}
	for i, item := range st.Items {
		resp.Items[i] = itemStatsView{
			ItemID:          item.ItemID,
			ItemText:        item.ItemText,
			CorrectPosition: item.CorrectPosition,
			AverageDistance: score{item.AverageDistance},
			CorrectCount:    item.CorrectCount,
			TotalCount:      item.TotalCount,
		}
	}
	return resp
}
