package scoring

import (
	"fmt"

	"ordering-quiz-service/internal/domain"
)

// TierFor maps a distance to its feedback tier.
func TierFor(distance int) domain.FeedbackTier {
	switch abs(distance) {
	case 0:
		return domain.TierPerfect
	case 1:
		return domain.TierAlmost
	case 2:
		return domain.TierClose
	case 3:
		return domain.TierNearMiss
	default:
		return domain.TierMiss
	}
}

// Feedback renders the message shown next to a graded item.
func Feedback(tier domain.FeedbackTier, text string, submitted, correct int) string {
	switch tier {
	case domain.TierPerfect:
		return fmt.Sprintf("Perfect! %q is in the correct position (#%d).", text, correct)
	case domain.TierAlmost:
		return fmt.Sprintf("Almost! %q should be #%d, you put it at #%d. Just one spot off!", text, correct, submitted)
	case domain.TierClose:
		return fmt.Sprintf("Close! %q belongs at #%d, but you placed it at #%d.", text, correct, submitted)
	case domain.TierNearMiss:
		return fmt.Sprintf("%q should be at position #%d. You put it at #%d.", text, correct, submitted)
	default:
		return fmt.Sprintf("%q is at position #%d, but it should be at #%d.", text, submitted, correct)
	}
}
