package scoring

import (
	"ordering-quiz-service/internal/domain"

	"github.com/shopspring/decimal"
)

type summaryBand struct {
	min     decimal.Decimal
	summary domain.ScoreSummary
}

// summaryBands are evaluated top-down; the first band whose minimum is met wins.
var summaryBands = []summaryBand{
	{decimal.NewFromInt(80), domain.ScoreSummary{
		Tier:          domain.SummaryExcellent,
		Message:       "Excellent!",
		Encouragement: "Great job! You have a strong understanding of the material.",
	}},
	{decimal.NewFromInt(60), domain.ScoreSummary{
		Tier:          domain.SummaryGood,
		Message:       "Good Work!",
		Encouragement: "You're on the right track. Review the items you missed.",
	}},
	{decimal.NewFromInt(40), domain.ScoreSummary{
		Tier:          domain.SummaryKeepLearning,
		Message:       "Keep Learning!",
		Encouragement: "You're making progress. Focus on the order relationships.",
	}},
}

// Summarize buckets an aggregate percentage into a score summary.
func Summarize(percentage decimal.Decimal) domain.ScoreSummary {
	if percentage.Equal(hundred) {
		return domain.ScoreSummary{
			Tier:          domain.SummaryPerfect,
			Message:       "Perfect Score!",
			Encouragement: "Outstanding! You got everything in the exact right order!",
		}
	}
	for _, band := range summaryBands {
		if percentage.GreaterThanOrEqual(band.min) {
			return band.summary
		}
	}
	return domain.ScoreSummary{
		Tier:          domain.SummaryPractice,
		Message:       "Practice More",
		Encouragement: "Don't give up! Review the material and try again.",
	}
}
