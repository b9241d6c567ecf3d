package app

import (
	"hash/fnv"
	"math/rand"
	"strconv"

	"ordering-quiz-service/internal/domain"
)

// ShuffleItems returns the items in a random order drawn from rnd, stripped of
// their correct positions. The input slice is left untouched.
func ShuffleItems(items []domain.QuestionItem, rnd *rand.Rand) []PresentedItem {
	out := make([]PresentedItem, len(items))
	for i, item := range items {
		out[i] = PresentedItem{ID: item.ID, Text: item.Text, ImageURL: item.ImageURL}
	}
	for i := len(out) - 1; i > 0; i-- {
		j := rnd.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// shuffleSource seeds a generator from the session and question index so that
// every read of the same question sees the same order.
func shuffleSource(salt int64, sessionID string, questionIndex int) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(sessionID))
	h.Write([]byte{':'})
	h.Write([]byte(strconv.Itoa(questionIndex)))
	return rand.New(rand.NewSource(int64(h.Sum64()) ^ salt))
}
