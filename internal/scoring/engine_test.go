package scoring_test

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"ordering-quiz-service/internal/domain"
	"ordering-quiz-service/internal/scoring"

	"github.com/shopspring/decimal"
)

func TestGradeSwappedTail(t *testing.T) {
	result, err := scoring.GradeSubmission(fourItems(), []string{"A", "B", "D", "C"})
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	assertDistances(t, result, []int{0, 0, 1, 1})
	assertPoints(t, result, []string{"10", "10", "7.5", "7.5"})
	assertDecimal(t, "total", result.TotalScore, "35")
	assertDecimal(t, "max", result.MaxPossibleScore, "40")
	assertDecimal(t, "percentage", result.Percentage, "87.50")
}

func TestGradeReversed(t *testing.T) {
	result, err := scoring.GradeSubmission(fourItems(), []string{"D", "C", "B", "A"})
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	assertDistances(t, result, []int{3, 1, 1, 3})
	assertPoints(t, result, []string{"2.5", "7.5", "7.5", "2.5"})
	assertDecimal(t, "total", result.TotalScore, "20")
	assertDecimal(t, "max", result.MaxPossibleScore, "40")
	assertDecimal(t, "percentage", result.Percentage, "50.00")
}

func TestGradeFarItemsEarnNothing(t *testing.T) {
	items := makeItems(6)
	// item 1 moved to the end: distance 5; the rest shift one slot left.
	result, err := scoring.GradeSubmission(items, []string{"i2", "i3", "i4", "i5", "i6", "i1"})
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	last := result.Items[5]
	if last.Distance != 5 || !last.PointsEarned.IsZero() || last.Tier != domain.TierMiss {
		t.Fatalf("expected zero points at distance 5, got %+v", last)
	}
	if !scoring.PointsFor(5).Equal(scoring.PointsFor(6)) || !scoring.PointsFor(4).IsZero() {
		t.Fatalf("expected distances >= 4 to be equivalent")
	}
	assertDecimal(t, "total", result.TotalScore, "37.5")
}

func TestPerfectOrderScoresFullMarks(t *testing.T) {
	for n := 1; n <= 12; n++ {
		items := makeItems(n)
		order := make([]string, n)
		for i := range order {
			order[i] = fmt.Sprintf("i%d", i+1)
		}
		// input slice order must not matter
		rand.New(rand.NewSource(int64(n))).Shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })

		result, err := scoring.GradeSubmission(items, order)
		if err != nil {
			t.Fatalf("n=%d: %v", n, err)
		}
		want := decimal.NewFromInt(int64(10 * n))
		if !result.TotalScore.Equal(want) || !result.MaxPossibleScore.Equal(want) {
			t.Fatalf("n=%d: expected %s/%s, got %s/%s", n, want, want, result.TotalScore, result.MaxPossibleScore)
		}
		assertDecimal(t, "percentage", result.Percentage, "100.00")
	}
}

func TestPointsDependOnlyOnDistance(t *testing.T) {
	items := makeItems(7)
	rnd := rand.New(rand.NewSource(42))
	for round := 0; round < 50; round++ {
		perm := rnd.Perm(len(items))
		order := make([]string, len(perm))
		for i, p := range perm {
			order[i] = items[p].ID
		}
		result, err := scoring.GradeSubmission(items, order)
		if err != nil {
			t.Fatalf("grade: %v", err)
		}
		for pos, score := range result.Items {
			d := pos + 1 - score.CorrectPosition
			if d < 0 {
				d = -d
			}
			if score.Distance != d || !score.PointsEarned.Equal(scoring.PointsFor(d)) {
				t.Fatalf("item %s at %d: got distance %d points %s", score.ItemID, pos+1, score.Distance, score.PointsEarned)
			}
		}
	}
}

func TestPointsAreMonotonic(t *testing.T) {
	for d := 0; d < 3; d++ {
		if scoring.PointsFor(d).LessThan(scoring.PointsFor(d + 1)) {
			t.Fatalf("points at %d lower than at %d", d, d+1)
		}
	}
	for d := 4; d < 20; d++ {
		if !scoring.PointsFor(d).IsZero() {
			t.Fatalf("expected zero points at distance %d", d)
		}
	}
}

func TestTotalIsSumOfRoundedItems(t *testing.T) {
	result, err := scoring.GradeSubmission(makeItems(5), []string{"i3", "i1", "i5", "i2", "i4"})
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	sum := decimal.Zero
	for _, item := range result.Items {
		sum = sum.Add(item.PointsEarned)
	}
	if !sum.Equal(result.TotalScore) {
		t.Fatalf("expected total %s to equal item sum %s", result.TotalScore, sum)
	}
}

func TestGradeRejectsMalformedSubmissions(t *testing.T) {
	cases := map[string][]string{
		"empty":     {},
		"too short": {"A", "B", "C"},
		"unknown":   {"A", "B", "C", "Z"},
		"duplicate": {"A", "B", "C", "C"},
	}
	for name, order := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := scoring.GradeSubmission(fourItems(), order)
			if !errors.Is(err, domain.ErrInvalidSubmission) {
				t.Fatalf("expected invalid submission, got %v", err)
			}
		})
	}
}

func TestGradeRejectsBrokenPositions(t *testing.T) {
	items := fourItems()
	items[3].CorrectPosition = 3
	_, err := scoring.GradeSubmission(items, []string{"A", "B", "C", "D"})
	if !errors.Is(err, domain.ErrInvalidQuestion) {
		t.Fatalf("expected invalid question, got %v", err)
	}
}

func TestPercentageGuardsZeroMax(t *testing.T) {
	if !scoring.Percentage(decimal.Zero, decimal.Zero).IsZero() {
		t.Fatalf("expected zero percentage")
	}
	assertDecimal(t, "thirds", scoring.Percentage(decimal.NewFromInt(20), decimal.NewFromInt(30)), "66.67")
}

func TestFeedbackTiers(t *testing.T) {
	want := []domain.FeedbackTier{domain.TierPerfect, domain.TierAlmost, domain.TierClose, domain.TierNearMiss, domain.TierMiss, domain.TierMiss}
	for d, tier := range want {
		if got := scoring.TierFor(d); got != tier {
			t.Fatalf("distance %d: expected %s, got %s", d, tier, got)
		}
	}
	score := scoring.ScoreItem(domain.QuestionItem{ID: "x", Text: "Mercury", CorrectPosition: 1}, 2)
	if score.Feedback == "" || score.Tier != domain.TierAlmost {
		t.Fatalf("unexpected feedback %+v", score)
	}
}

func fourItems() []domain.QuestionItem {
	return []domain.QuestionItem{
		{ID: "A", Text: "Alpha", CorrectPosition: 1},
		{ID: "B", Text: "Bravo", CorrectPosition: 2},
		{ID: "C", Text: "Charlie", CorrectPosition: 3},
		{ID: "D", Text: "Delta", CorrectPosition: 4},
	}
}

func makeItems(n int) []domain.QuestionItem {
	items := make([]domain.QuestionItem, n)
	for i := range items {
		items[i] = domain.QuestionItem{ID: fmt.Sprintf("i%d", i+1), Text: fmt.Sprintf("item %d", i+1), CorrectPosition: i + 1}
	}
	return items
}

func assertDistances(t *testing.T, result domain.GradingResult, want []int) {
	t.Helper()
	for i, item := range result.Items {
		if item.Distance != want[i] {
			t.Fatalf("item %d: expected distance %d, got %d", i, want[i], item.Distance)
		}
	}
}

func assertPoints(t *testing.T, result domain.GradingResult, want []string) {
	t.Helper()
	for i, item := range result.Items {
		assertDecimal(t, fmt.Sprintf("item %d points", i), item.PointsEarned, want[i])
	}
}

func assertDecimal(t *testing.T, what string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Fatalf("%s: expected %s, got %s", what, want, got)
	}
}
