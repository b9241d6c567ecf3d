package scoring

import (
	"sort"

	"ordering-quiz-service/internal/domain"

	"github.com/shopspring/decimal"
)

// Aggregate summarizes graded attempts at one question. Items are grouped by
// ID and correct position and ordered most misplaced first, ties broken by
// correct position then ID.
func Aggregate(questionID string, results []domain.GradingResult) domain.QuestionStats {
	stats := domain.QuestionStats{
		QuestionID:    questionID,
		TotalAttempts: len(results),
		AverageScore:  decimal.Zero,
		HighestScore:  decimal.Zero,
		LowestScore:   decimal.Zero,
		Items:         []domain.ItemStats{},
	}
	if len(results) == 0 {
		return stats
	}

	type itemKey struct {
		id       string
		position int
	}
	type itemAcc struct {
		text     string
		distance int64
		correct  int
		total    int
	}
	items := make(map[itemKey]*itemAcc)

	sum := decimal.Zero
	stats.HighestScore = results[0].Percentage
	stats.LowestScore = results[0].Percentage
	for _, r := range results {
		sum = sum.Add(r.Percentage)
		if r.Percentage.GreaterThan(stats.HighestScore) {
			stats.HighestScore = r.Percentage
		}
		if r.Percentage.LessThan(stats.LowestScore) {
			stats.LowestScore = r.Percentage
		}
		if r.Percentage.Equal(hundred) {
			stats.PerfectScores++
		}
		for _, item := range r.Items {
			key := itemKey{id: item.ItemID, position: item.CorrectPosition}
			acc, ok := items[key]
			if !ok {
				acc = &itemAcc{}
				items[key] = acc
			}
			if item.ItemText > acc.text {
				acc.text = item.ItemText
			}
			acc.distance += int64(item.Distance)
			acc.total++
			if item.Distance == 0 {
				acc.correct++
			}
		}
	}
	stats.AverageScore = sum.DivRound(decimal.NewFromInt(int64(len(results))), 2)

	for key, acc := range items {
		stats.Items = append(stats.Items, domain.ItemStats{
			ItemID:          key.id,
			ItemText:        acc.text,
			CorrectPosition: key.position,
			AverageDistance: decimal.NewFromInt(acc.distance).DivRound(decimal.NewFromInt(int64(acc.total)), 2),
			CorrectCount:    acc.correct,
			TotalCount:      acc.total,
		})
	}
	sort.Slice(stats.Items, func(i, j int) bool {
		a, b := stats.Items[i], stats.Items[j]
		if !a.AverageDistance.Equal(b.AverageDistance) {
			return a.AverageDistance.GreaterThan(b.AverageDistance)
		}
		if a.CorrectPosition != b.CorrectPosition {
			return a.CorrectPosition < b.CorrectPosition
		}
		return a.ItemID < b.ItemID
	})
	return stats
}
