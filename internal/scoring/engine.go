// Package scoring grades ordering submissions with distance-based partial credit.
//
// Each item earns a share of MaxPointsPerItem that depends only on how far its
// submitted position is from its correct position. Item points are rounded to
// two decimal places before they are summed, so a question total always equals
// the sum of the stored item scores.
package scoring

import (
	"fmt"

	"ordering-quiz-service/internal/domain"

	"github.com/shopspring/decimal"
)

// MaxPointsPerItem is the score of an item placed exactly right.
const MaxPointsPerItem = 10

// maxCreditDistance is the largest distance that still earns points.
const maxCreditDistance = 3

var (
	hundred      = decimal.NewFromInt(100)
	itemMaxScore = decimal.NewFromInt(MaxPointsPerItem)

	// distanceMultipliers maps distance to the share of MaxPointsPerItem awarded.
	distanceMultipliers = [maxCreditDistance + 1]decimal.Decimal{
		decimal.NewFromInt(1),
		decimal.New(75, -2),
		decimal.New(50, -2),
		decimal.New(25, -2),
	}
)

// Multiplier returns the share of the per-item maximum awarded at distance d.
func Multiplier(distance int) decimal.Decimal {
	if distance < 0 {
		distance = -distance
	}
	if distance > maxCreditDistance {
		return decimal.Zero
	}
	return distanceMultipliers[distance]
}

// PointsFor returns the rounded points earned at the given distance.
func PointsFor(distance int) decimal.Decimal {
	return itemMaxScore.Mul(Multiplier(distance)).Round(2)
}

// ScoreItem grades a single item placed at submittedPosition.
func ScoreItem(item domain.QuestionItem, submittedPosition int) domain.ItemScore {
	distance := abs(submittedPosition - item.CorrectPosition)
	tier := TierFor(distance)
	return domain.ItemScore{
		ItemID:            item.ID,
		ItemText:          item.Text,
		SubmittedPosition: submittedPosition,
		CorrectPosition:   item.CorrectPosition,
		Distance:          distance,
		PointsEarned:      PointsFor(distance),
		MaxPoints:         itemMaxScore,
		Tier:              tier,
		Feedback:          Feedback(tier, item.Text, submittedPosition, item.CorrectPosition),
	}
}

// GradeSubmission grades submittedOrder against the authoritative item set.
// Positions are 1-indexed from the order of submittedOrder.
func GradeSubmission(items []domain.QuestionItem, submittedOrder []string) (domain.GradingResult, error) {
	if err := ValidateItems(items); err != nil {
		return domain.GradingResult{}, err
	}
	if err := ValidateSubmission(items, submittedOrder); err != nil {
		return domain.GradingResult{}, err
	}

	byID := make(map[string]domain.QuestionItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	scores := make([]domain.ItemScore, 0, len(submittedOrder))
	total := decimal.Zero
	for i, id := range submittedOrder {
		score := ScoreItem(byID[id], i+1)
		scores = append(scores, score)
		total = total.Add(score.PointsEarned)
	}

	maxScore := MaxScore(len(items))
	return domain.GradingResult{
		Items:            scores,
		TotalScore:       total,
		MaxPossibleScore: maxScore,
		Percentage:       Percentage(total, maxScore),
	}, nil
}

// MaxScore is the maximum score of a question with n items.
func MaxScore(n int) decimal.Decimal {
	return itemMaxScore.Mul(decimal.NewFromInt(int64(n)))
}

// Percentage returns earned/max as a percentage rounded half-up to 2 places.
// A zero maximum yields zero.
func Percentage(earned, maxScore decimal.Decimal) decimal.Decimal {
	if !maxScore.IsPositive() {
		return decimal.Zero
	}
	return earned.Mul(hundred).DivRound(maxScore, 2)
}

// ValidateSubmission checks that order is a permutation of the item IDs.
func ValidateSubmission(items []domain.QuestionItem, order []string) error {
	if len(order) == 0 {
		return fmt.Errorf("%w: submitted order is empty", domain.ErrInvalidSubmission)
	}
	if len(order) != len(items) {
		return fmt.Errorf("%w: expected %d items, got %d", domain.ErrInvalidSubmission, len(items), len(order))
	}
	known := make(map[string]struct{}, len(items))
	for _, item := range items {
		known[item.ID] = struct{}{}
	}
	seen := make(map[string]struct{}, len(order))
	for _, id := range order {
		if _, ok := known[id]; !ok {
			return fmt.Errorf("%w: unknown item %q", domain.ErrInvalidSubmission, id)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: duplicate item %q", domain.ErrInvalidSubmission, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// ValidateItems checks that the correct positions of items are exactly 1..N.
func ValidateItems(items []domain.QuestionItem) error {
	seen := make([]bool, len(items)+1)
	for _, item := range items {
		p := item.CorrectPosition
		if p < 1 || p > len(items) || seen[p] {
			return fmt.Errorf("%w: item %q has correct position %d", domain.ErrInvalidQuestion, item.ID, p)
		}
		seen[p] = true
	}
	return nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
